package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"non\u00a0breaking", "non breaking"},
		{"Shaw\u2019s Cove", "Shaw's Cove"},
		{"\u2018quoted\u2019", "'quoted'"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in))
	}
}

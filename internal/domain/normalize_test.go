package domain

import "testing"

func TestNormalizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim spaces", input: "  Groton  ", want: "Groton"},
		{name: "case preserved", input: "HSI facility", want: "HSI facility"},
		{name: "compress multiple spaces", input: "Groton   Sub  Base", want: "Groton Sub Base"},
		{name: "apostrophes preserved", input: "Shaw's Cove", want: "Shaw's Cove"},
		{name: "parentheses preserved", input: "Washington Engineering Office (WEO)", want: "Washington Engineering Office (WEO)"},
		{name: "tabs and newlines", input: "\tNew\nLondon \t", want: "New London"},
		{name: "empty string", input: "", want: ""},
		{name: "only spaces", input: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeNamePtr(t *testing.T) {
	t.Parallel()

	if got := NormalizeNamePtr(nil); got != nil {
		t.Errorf("NormalizeNamePtr(nil) = %q, want nil", *got)
	}

	blank := "  "
	if got := NormalizeNamePtr(&blank); got != nil {
		t.Errorf("NormalizeNamePtr(blank) = %q, want nil", *got)
	}

	raw := " Bldg  88 "
	got := NormalizeNamePtr(&raw)
	if got == nil || *got != "Bldg 88" {
		t.Errorf("NormalizeNamePtr(%q) = %v, want %q", raw, got, "Bldg 88")
	}
}

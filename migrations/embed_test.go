package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"postgres", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			t.Parallel()

			fsys, err := FS(driver)
			require.NoError(t, err)

			names, err := fs.Glob(fsys, "*.sql")
			require.NoError(t, err)
			assert.Equal(t, []string{"00001_entities.sql", "00002_covid_cases.sql"}, names)
		})
	}
}

func TestFS_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := FS("mysql")
	assert.Error(t, err)
}

package db

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	cases := map[string]string{
		"postgres://u:p@localhost:5432/feedhub":   "pgx5://u:p@localhost:5432/feedhub",
		"postgresql://u:p@localhost:5432/feedhub": "pgx5://u:p@localhost:5432/feedhub",
		"u:p@localhost/feedhub":                   "pgx5://u:p@localhost/feedhub",
	}
	for in, want := range cases {
		assert.Equal(t, want, migrationURL(in), in)
	}
}

func TestEmbeddedMigrationsPaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)

	require.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))
}

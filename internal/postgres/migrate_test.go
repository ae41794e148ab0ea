package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://app:secret@db:5432/market?sslmode=disable",
		migrateURL("postgres://app:secret@db:5432/market?sslmode=disable"))
	assert.Equal(t, "pgx5://db/market", migrateURL("postgresql://db/market"))
	assert.Equal(t, "pgx5://db/market", migrateURL("pgx5://db/market"))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	assert.NoError(t, err)
	assert.Len(t, entries, 6)
}

package migrations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Participation teardown relies on the database removing dependent
// submissions and results. Without the cascade the delete trips the foreign
// key as soon as a participation has history.
func TestSchemaCascadesParticipationDeletes(t *testing.T) {
	schema, err := migrationFiles.ReadFile("0001_init.up.sql")
	require.NoError(t, err)

	ddl := string(schema)
	require.Contains(t, ddl, "REFERENCES participations (id) ON DELETE CASCADE")
	require.Contains(t, ddl, "REFERENCES submissions (id) ON DELETE CASCADE")
}

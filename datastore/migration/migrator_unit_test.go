package migration //nolint:testpackage // tests access package internals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSaveMigrationStringWithoutDB(t *testing.T) {
	t.Parallel()

	m := NewMigrator(context.Background(), func(context.Context) *gorm.DB { return nil })
	err := m.SaveMigrationString(context.Background(), "001_test.sql", "SELECT 1;", "")
	require.ErrorIs(t, err, ErrNoDatabase)
}

func TestApplyNewMigrationsWithoutDB(t *testing.T) {
	t.Parallel()

	m := NewMigrator(context.Background(), func(context.Context) *gorm.DB { return nil })
	_, err := m.ApplyNewMigrations(context.Background())
	require.ErrorIs(t, err, ErrNoDatabase)
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		patch string
		want  []string
	}{
		{
			name:  "single statement without terminator",
			patch: "SELECT 1",
			want:  []string{"SELECT 1"},
		},
		{
			name:  "multiple statements",
			patch: "CREATE TABLE a (id int);\nCREATE INDEX i ON a (id);\n",
			want:  []string{"CREATE TABLE a (id int)", "CREATE INDEX i ON a (id)"},
		},
		{
			name:  "semicolons in quotes are kept",
			patch: `INSERT INTO a VALUES ('x;y'); SELECT "we;ird" FROM a;`,
			want:  []string{`INSERT INTO a VALUES ('x;y')`, `SELECT "we;ird" FROM a`},
		},
		{
			name:  "line comments are dropped",
			patch: "-- header; with semicolon\nSELECT 1; -- trailing\n",
			want:  []string{"SELECT 1"},
		},
		{
			name:  "empty",
			patch: " ;; \n",
			want:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, SplitStatements(tc.patch))
		})
	}
}

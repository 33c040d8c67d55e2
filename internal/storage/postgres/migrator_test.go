package postgres

import (
	"testing"
	"testing/fstest"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		t.Fatalf("load embedded migrations failed: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].Version >= migrations[i].Version {
			t.Fatalf("migrations must be sorted by version: %d before %d",
				migrations[i-1].Version, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_MissingDown(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql": &fstest.MapFile{Data: []byte("CREATE TABLE t (id TEXT)")},
	}

	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for migration without down file")
	}
}

func TestLoadMigrations_InvalidName(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/init.sql": &fstest.MapFile{Data: []byte("CREATE TABLE t (id TEXT)")},
	}

	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for invalid migration file name")
	}
}

func TestLoadMigrations_EmptyFile(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0001_init.up.sql":   &fstest.MapFile{Data: []byte("  ")},
		"sql/migrations/0001_init.down.sql": &fstest.MapFile{Data: []byte("DROP TABLE t")},
	}

	if _, err := loadMigrations(fsys); err == nil {
		t.Fatal("expected error for empty migration body")
	}
}

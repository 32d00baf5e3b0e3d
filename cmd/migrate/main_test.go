package main

import (
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestMigrationFilenamePattern(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  string
		name     string
	}{
		{"0001_init_schema_migrations.sql", true, "0001", "init_schema_migrations"},
		{"001_invalid.sql", false, "", ""},
		{"0001_test", false, "", ""},
		{"0001.sql", false, "", ""},
		{"invalid_0001_test.sql", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			matches := migrationPattern.FindStringSubmatch(tt.filename)
			if (matches != nil) != tt.valid {
				t.Fatalf("match = %v, want %v", matches != nil, tt.valid)
			}
			if tt.valid && (matches[1] != tt.version || matches[2] != tt.name) {
				t.Errorf("matches = %v, want version %s name %s", matches, tt.version, tt.name)
			}
		})
	}
}

func TestReadMigrations(t *testing.T) {
	source := fstest.MapFS{
		"0002_second.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")},
		"0001_first.sql":  {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")},
		"README.md":       {Data: []byte("ignored")},
	}

	migrations, err := readMigrations(source, "proj", "ds")
	if err != nil {
		t.Fatalf("readMigrations() error = %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("readMigrations() = %d migrations, want 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("versions = %d, %d, want sorted 1, 2", migrations[0].Version, migrations[1].Version)
	}
	if !strings.Contains(migrations[0].SQL, "`proj.ds.a`") {
		t.Errorf("SQL = %q, placeholders not substituted", migrations[0].SQL)
	}
	if len(migrations[0].Checksum) != 64 {
		t.Errorf("Checksum = %q, want hex sha256", migrations[0].Checksum)
	}
}

func TestReadMigrations_ChecksumIgnoresTarget(t *testing.T) {
	source := fstest.MapFS{
		"0001_first.sql": {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")},
	}

	a, err := readMigrations(source, "proj-a", "ds")
	if err != nil {
		t.Fatal(err)
	}
	b, err := readMigrations(source, "proj-b", "ds")
	if err != nil {
		t.Fatal(err)
	}
	if a[0].Checksum != b[0].Checksum {
		t.Error("checksum should not depend on project or dataset")
	}
}

func TestReadMigrations_DuplicateVersion(t *testing.T) {
	source := fstest.MapFS{
		"0001_first.sql": {Data: []byte("SELECT 1;")},
		"0001_other.sql": {Data: []byte("SELECT 2;")},
	}
	if _, err := readMigrations(source, "p", "d"); err == nil {
		t.Error("readMigrations() should reject duplicate versions")
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	sub, err := fs.Sub(embeddedMigrations, "migrations")
	if err != nil {
		t.Fatal(err)
	}
	migrations, err := readMigrations(sub, "proj", "ds")
	if err != nil {
		t.Fatalf("readMigrations() error = %v", err)
	}
	if len(migrations) < 3 || migrations[0].Name != "init_schema_migrations" {
		t.Fatalf("embedded migrations = %+v", migrations)
	}
	for _, m := range migrations {
		if strings.Contains(m.SQL, "{{") {
			t.Errorf("%s still has placeholders", m.Filename)
		}
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	applied := []AppliedMigration{{Version: 1}, {Version: 3}}

	pending := pendingMigrations(all, applied)
	if len(pending) != 1 || pending[0].Version != 2 {
		t.Errorf("pendingMigrations() = %+v, want only version 2", pending)
	}
	if !containsVersion(pending, 2) || containsVersion(pending, 1) {
		t.Error("containsVersion() mismatch")
	}
}

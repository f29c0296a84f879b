package main

import (
	"testing"
)

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename string
		valid    bool
		version  int
		name     string
	}{
		{"0001_create_reconciliation_runs.sql", true, 1, "create_reconciliation_runs"},
		{"0012_add_tagged_uri.sql", true, 12, "add_tagged_uri"},
		{"001_invalid.sql", false, 0, ""},        // wrong number format
		{"0001_test", false, 0, ""},              // missing .sql
		{"0001.sql", false, 0, ""},               // missing name
		{"invalid_0001_test.sql", false, 0, ""},  // wrong order
		{"README.md", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.valid {
				t.Fatalf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.valid)
			}
			if !tt.valid {
				return
			}
			if version != tt.version {
				t.Errorf("version = %d, want %d", version, tt.version)
			}
			if name != tt.name {
				t.Errorf("name = %q, want %q", name, tt.name)
			}
		})
	}
}

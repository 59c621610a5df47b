package database

import (
	"strings"
	"testing"
)

func TestMigrations_Embedded(t *testing.T) {
	migrations, err := Migrations().FindMigrations()
	if err != nil {
		t.Fatalf("find migrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatalf("no migrations embedded")
	}
	first := migrations[0]
	if first.Id != "0001_create_meetings.sql" {
		t.Fatalf("unexpected first migration %q", first.Id)
	}
	if len(first.Up) == 0 || len(first.Down) == 0 {
		t.Fatalf("migration needs both directions")
	}
	if !strings.Contains(strings.Join(first.Up, "\n"), "CREATE TABLE IF NOT EXISTS meetings") {
		t.Fatalf("meetings table missing from up migration")
	}
}

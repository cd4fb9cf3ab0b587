package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSQLiteLicenseColumns(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"key", "revoked", "valid_for_days", "issued_at", "bound_device_id"} {
		if !conn.Migrator().HasColumn("licenses", column) {
			t.Fatalf("licenses missing column %s", column)
		}
	}
}

func TestMigrateSQLiteValidationEventColumns(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"kind", "license_key", "decision", "detail", "occurred_at"} {
		if !conn.Migrator().HasColumn("validation_events", column) {
			t.Fatalf("validation_events missing column %s", column)
		}
	}
}

func TestMigrateExistingLicensesTableGainsBindingColumns(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errExec := conn.Exec(`
		CREATE TABLE licenses (
			id integer primary key autoincrement,
			key text not null unique,
			revoked boolean not null default 0,
			valid_for_days integer not null default 0,
			created_at datetime
		)
	`).Error; errExec != nil {
		t.Fatalf("create legacy licenses table: %v", errExec)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"issued_at", "bound_device_id", "notes"} {
		if !conn.Migrator().HasColumn("licenses", column) {
			t.Fatalf("licenses missing column %s after backfill migration", column)
		}
	}
}

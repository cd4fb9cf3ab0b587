package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/licensegate/licensegate/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupRecorder(t *testing.T) *GormRecorder {
	t.Helper()
	dsn := fmt.Sprintf("file:audit_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	sqlDB, errDB := db.DB()
	if errDB != nil {
		t.Fatalf("unwrap db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := db.AutoMigrate(&models.ValidationEvent{}); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return NewGormRecorder(db)
}

func TestGormRecorderRoundTrip(t *testing.T) {
	t.Parallel()

	recorder := setupRecorder(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

	recorder.RecordValidation(ctx, "ABCD-1234-EFGH", "grant_bind", map[string]any{"device": "abc123"}, base)
	recorder.RecordAdmin(ctx, "ABCD-1234-EFGH", "revoke", nil, base.Add(time.Minute))

	rows, errList := recorder.List(ctx, 10)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 events, got %d", len(rows))
	}

	// Newest first.
	if rows[0].Kind != models.EventKindAdmin || rows[0].Decision != "revoke" {
		t.Fatalf("unexpected first event: %+v", rows[0])
	}
	if rows[1].Kind != models.EventKindValidation || rows[1].Decision != "grant_bind" {
		t.Fatalf("unexpected second event: %+v", rows[1])
	}

	// Keys are stored truncated.
	if rows[1].LicenseKey != "ABCD…EFGH" {
		t.Fatalf("expected truncated key, got %q", rows[1].LicenseKey)
	}

	var detail map[string]any
	if errUnmarshal := json.Unmarshal(rows[1].Detail, &detail); errUnmarshal != nil {
		t.Fatalf("unmarshal detail: %v", errUnmarshal)
	}
	if detail["device"] != "abc123" {
		t.Fatalf("unexpected detail %v", detail)
	}
}

func TestGormRecorderListLimit(t *testing.T) {
	t.Parallel()

	recorder := setupRecorder(t)
	ctx := context.Background()
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		recorder.RecordValidation(ctx, fmt.Sprintf("KEY-%d", i), "not_found", nil, base.Add(time.Duration(i)*time.Second))
	}

	rows, errList := recorder.List(ctx, 3)
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 events, got %d", len(rows))
	}
	if rows[0].LicenseKey != "KEY-4" {
		t.Fatalf("expected newest event first, got %q", rows[0].LicenseKey)
	}

	// Out-of-range limits fall back to the default.
	if _, errBad := recorder.List(ctx, -1); errBad != nil {
		t.Fatalf("list with bad limit: %v", errBad)
	}
}

func TestTruncateKey(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":                 "",
		"SHORT":            "SHORT",
		"EXACTLY8":         "EXACTLY8",
		"ABCD-1234-EFGH":   "ABCD…EFGH",
		"  TRIMMED-KEY  ":  "TRIM…-KEY",
		"AAAA-BBBB-CCCC-D": "AAAA…CC-D",
	}
	for in, want := range cases {
		if got := TruncateKey(in); got != want {
			t.Fatalf("TruncateKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeviceDigest(t *testing.T) {
	t.Parallel()

	if DeviceDigest("") != "" {
		t.Fatalf("empty device must produce empty digest")
	}

	a := DeviceDigest("device-a")
	b := DeviceDigest("device-b")
	if a == b {
		t.Fatalf("different devices must not collide: %q", a)
	}
	if len(a) != 12 {
		t.Fatalf("expected 12-char digest, got %q", a)
	}
	if a != DeviceDigest("device-a") {
		t.Fatalf("digest must be stable")
	}
	if a == "device-a" {
		t.Fatalf("digest must not leak the raw identifier")
	}
}

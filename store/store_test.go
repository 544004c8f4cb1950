// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/opine-hq/opine/lib/clock"
)

var storeTestEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.Default()
}

func openTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()

	fakeClock := clock.Fake(storeTestEpoch)

	store, err := Open(Config{
		Path:     filepath.Join(t.TempDir(), "opine_test.db"),
		PoolSize: 2,
		Clock:    fakeClock,
		Logger:   testLogger(t),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("store.Close: %v", err)
		}
	})
	return store, fakeClock
}

func testResult(userID int64) *Result {
	return &Result{
		UserID:        userID,
		ChatID:        userID,
		Lang:          "ru",
		SurveyKey:     "grit",
		SurveyVersion: "1",
		SurveyHash:    "deadbeef",
		Answers:       []int{4, 2, 3},
		Scales:        map[string]float64{"persistence": 4.0, "focus": 3.0},
	}
}

func TestSaveAndLatest(t *testing.T) {
	store, fakeClock := openTestStore(t)
	ctx := context.Background()

	first := testResult(100)
	if err := store.SaveResult(ctx, first); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	if first.ID == 0 {
		t.Error("SaveResult did not fill in ID")
	}
	if !first.Timestamp.Equal(storeTestEpoch) {
		t.Errorf("timestamp = %v, want %v", first.Timestamp, storeTestEpoch)
	}

	fakeClock.Advance(time.Hour)

	second := testResult(100)
	second.Answers = []int{5, 1, 5}
	second.Scales = map[string]float64{"persistence": 5.0, "focus": 5.0}
	if err := store.SaveResult(ctx, second); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	latest, err := store.Latest(ctx, 100)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("Latest returned result %d, want %d", latest.ID, second.ID)
	}
	if len(latest.Answers) != 3 || latest.Answers[0] != 5 {
		t.Errorf("answers = %v, want [5 1 5]", latest.Answers)
	}
	if latest.Scales["focus"] != 5.0 {
		t.Errorf("focus = %v, want 5.0", latest.Scales["focus"])
	}
	if latest.Shared {
		t.Error("new result marked shared")
	}
}

func TestLatestNoResults(t *testing.T) {
	store, _ := openTestStore(t)

	_, err := store.Latest(context.Background(), 999)
	if !errors.Is(err, ErrNoResults) {
		t.Errorf("Latest = %v, want ErrNoResults", err)
	}
}

func TestMarkShared(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	result := testResult(100)
	if err := store.SaveResult(ctx, result); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	if err := store.MarkShared(ctx, result.ID); err != nil {
		t.Fatalf("MarkShared: %v", err)
	}

	latest, err := store.Latest(ctx, 100)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !latest.Shared {
		t.Error("result not marked shared")
	}
}

func TestUserLang(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	lang, err := store.UserLang(ctx, 100)
	if err != nil {
		t.Fatalf("UserLang: %v", err)
	}
	if lang != "" {
		t.Errorf("lang for unknown user = %q, want empty", lang)
	}

	if err := store.SetUserLang(ctx, 100, "uz"); err != nil {
		t.Fatalf("SetUserLang: %v", err)
	}
	if err := store.SetUserLang(ctx, 100, "ru"); err != nil {
		t.Fatalf("SetUserLang (update): %v", err)
	}

	lang, err = store.UserLang(ctx, 100)
	if err != nil {
		t.Fatalf("UserLang: %v", err)
	}
	if lang != "ru" {
		t.Errorf("lang = %q, want ru", lang)
	}
}

func TestExportCSV(t *testing.T) {
	store, fakeClock := openTestStore(t)
	ctx := context.Background()

	older := testResult(100)
	if err := store.SaveResult(ctx, older); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	fakeClock.Advance(time.Hour)
	newer := testResult(200)
	newer.Lang = "uz"
	if err := store.SaveResult(ctx, newer); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	var buf bytes.Buffer
	if err := store.ExportCSV(ctx, &buf); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("reading export: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("export has %d records, want header + 2 rows", len(records))
	}

	wantHeader := "ts,user_id,lang,survey,version,raw,scores,shared"
	if got := strings.Join(records[0], ","); got != wantHeader {
		t.Errorf("header = %q, want %q", got, wantHeader)
	}

	// Newest first.
	if records[1][1] != "200" || records[2][1] != "100" {
		t.Errorf("row order = %s, %s; want 200, 100", records[1][1], records[2][1])
	}

	// Raw answers come back as a JSON array string.
	if records[1][5] != "[4,2,3]" {
		t.Errorf("raw = %q, want [4,2,3]", records[1][5])
	}
	if records[1][7] != "0" {
		t.Errorf("shared = %q, want 0", records[1][7])
	}
}

func TestExportGzip(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveResult(ctx, testResult(100)); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	var buf bytes.Buffer
	gzipped, err := store.Export(ctx, &buf, ExportOptions{Gzip: true})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !gzipped {
		t.Fatal("Export with Gzip option did not report compression")
	}

	reader, err := gzip.NewReader(&buf)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	decompressed, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("reading gzip stream: %v", err)
	}
	if !strings.HasPrefix(string(decompressed), "ts,user_id") {
		t.Errorf("decompressed export does not start with header: %q", decompressed[:20])
	}
}

func TestExportSmallStaysPlain(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	if err := store.SaveResult(ctx, testResult(100)); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	var buf bytes.Buffer
	gzipped, err := store.Export(ctx, &buf, ExportOptions{})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if gzipped {
		t.Error("small export was compressed without being asked")
	}
	if !strings.HasPrefix(buf.String(), "ts,user_id") {
		t.Error("plain export does not start with header")
	}
}

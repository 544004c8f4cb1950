// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/opine-hq/opine/lib/codec"
)

// gzipThreshold is the row count above which Export compresses the
// CSV even when the caller did not ask for it. Telegram caps document
// uploads at 50 MB; compressing early keeps large exports well clear
// of the limit.
const gzipThreshold = 5000

// exportHeader is the CSV column order.
var exportHeader = []string{"ts", "user_id", "lang", "survey", "version", "raw", "scores", "shared"}

// ExportOptions controls Export behavior.
type ExportOptions struct {
	// Gzip forces compression regardless of row count.
	Gzip bool
}

// ExportCSV writes every stored result to w as CSV, newest first.
// Raw answers are decoded from their CBOR blobs back to JSON array
// strings so the export is readable without tooling.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("result store: export: %w", err)
	}
	defer s.pool.Put(conn)

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return fmt.Errorf("result store: export header: %w", err)
	}

	err = sqlitex.Execute(conn,
		`SELECT ts, user_id, lang, survey_key, survey_version, raw, scores, shared
		 FROM results ORDER BY ts DESC, id DESC`,
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := exportRecord(stmt)
				if err != nil {
					return err
				}
				return writer.Write(record)
			},
		})
	if err != nil {
		return fmt.Errorf("result store: export: %w", err)
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("result store: export flush: %w", err)
	}
	return nil
}

// Export writes the CSV export to w, gzip-compressed when the options
// ask for it or the row count exceeds the compression threshold.
// Returns whether the output was compressed so the caller can pick
// the right filename.
func (s *Store) Export(ctx context.Context, w io.Writer, opts ExportOptions) (bool, error) {
	compress := opts.Gzip
	if !compress {
		count, err := s.Count(ctx)
		if err != nil {
			return false, err
		}
		compress = count > gzipThreshold
	}

	if !compress {
		return false, s.ExportCSV(ctx, w)
	}

	gz := gzip.NewWriter(w)
	if err := s.ExportCSV(ctx, gz); err != nil {
		gz.Close()
		return true, err
	}
	if err := gz.Close(); err != nil {
		return true, fmt.Errorf("result store: export gzip: %w", err)
	}
	return true, nil
}

// exportRecord formats one results row as a CSV record.
//
// Columns: ts(0), user_id(1), lang(2), survey_key(3),
// survey_version(4), raw(5), scores(6), shared(7)
func exportRecord(stmt *sqlite.Stmt) ([]string, error) {
	raw := make([]byte, stmt.ColumnLen(5))
	stmt.ColumnBytes(5, raw)

	var answers []int
	if err := codec.Unmarshal(raw, &answers); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	answersJSON, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}

	shared := "0"
	if stmt.ColumnInt64(7) != 0 {
		shared = "1"
	}

	return []string{
		time.Unix(stmt.ColumnInt64(0), 0).UTC().Format(time.RFC3339),
		strconv.FormatInt(stmt.ColumnInt64(1), 10),
		stmt.ColumnText(2),
		stmt.ColumnText(3),
		stmt.ColumnText(4),
		string(answersJSON),
		stmt.ColumnText(6),
		shared,
	}, nil
}

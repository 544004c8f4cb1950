// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/opine-hq/opine/store"
	"github.com/opine-hq/opine/telegram"
)

// handleReload re-reads the survey directory. On failure the previous
// snapshot keeps serving and the admin gets the per-file issues; on
// success they get the survey count and fingerprints. Admin replies
// are Russian only.
func (e *Engine) handleReload(ctx context.Context, chatID int64) {
	if err := e.registry.Reload(e.surveyDir); err != nil {
		e.logger.Error("survey reload failed", "dir", e.surveyDir, "error", err)
		e.send(ctx, telegram.SendMessageRequest{
			ChatID: chatID,
			Text:   fmt.Sprintf("Ошибка перезагрузки, действует прежний набор:\n%v", err),
		})
		return
	}

	var b strings.Builder
	entries := e.registry.Entries()
	fmt.Fprintf(&b, "Опросники перезагружены: %d", len(entries))
	for _, entry := range entries {
		fmt.Fprintf(&b, "\n• %s v%s (%s) %s", entry.Survey.Key, entry.Survey.Version, entry.Survey.EffectiveStatus(), entry.Fingerprint[:12])
	}

	e.logger.Info("surveys reloaded", "dir", e.surveyDir, "count", len(entries))
	e.send(ctx, telegram.SendMessageRequest{ChatID: chatID, Text: b.String()})
}

// handleExport streams the full results CSV as a document, gzipped
// when the store decides the export is large.
func (e *Engine) handleExport(ctx context.Context, chatID int64) {
	var buf bytes.Buffer
	gzipped, err := e.store.Export(ctx, &buf, store.ExportOptions{})
	if err != nil {
		e.logger.Error("export failed", "error", err)
		e.send(ctx, telegram.SendMessageRequest{
			ChatID: chatID,
			Text:   fmt.Sprintf("Ошибка экспорта: %v", err),
		})
		return
	}

	fileName := "results.csv"
	if gzipped {
		fileName = "results.csv.gz"
	}

	_, err = e.api.SendDocument(ctx, telegram.SendDocumentRequest{
		ChatID:   chatID,
		FileName: fileName,
		Content:  buf.Bytes(),
		Caption:  exportCaption.get(e.defaultLocale),
	})
	if err != nil {
		e.logger.Error("sending export failed", "chat_id", chatID, "error", err)
	}
}

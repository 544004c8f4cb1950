// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

// Package bot implements the Opine conversation engine: language
// selection, survey menu, consent, the question loop, result
// summaries, sharing, and the admin commands.
//
// The engine is transport-thin: it consumes telegram.Update batches
// from the client's long-poll loop and replies through the same
// client. All conversation state lives in an in-memory session table;
// completed runs are persisted through the result store. Send
// failures are logged and never crash the update loop — Telegram
// users block bots and delete chats at any time.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opine-hq/opine/lib/clock"
	"github.com/opine-hq/opine/scoring"
	"github.com/opine-hq/opine/store"
	"github.com/opine-hq/opine/surveydef"
	"github.com/opine-hq/opine/telegram"
)

// Config holds the parameters for creating an Engine.
type Config struct {
	// API is the Telegram client used for all sends.
	API *telegram.Client

	// Registry holds the loaded survey definitions.
	Registry *surveydef.Registry

	// Store persists completed results and user locales.
	Store *store.Store

	// Clock drives session expiry and the housekeeping ticker.
	Clock clock.Clock

	// Logger receives operational messages.
	Logger *slog.Logger

	// Admins are the user IDs allowed to run /reload and /export and
	// the recipients of shared results.
	Admins []int64

	// SurveyDir is the definition directory /reload re-reads.
	SurveyDir string

	// DefaultLocale is used before a user picks a language. Defaults
	// to "ru".
	DefaultLocale string

	// IdleTTL is how long an inactive session survives. Defaults to
	// 30 minutes.
	IdleTTL time.Duration
}

// Engine routes updates to handlers and owns the conversation state.
type Engine struct {
	api      *telegram.Client
	registry *surveydef.Registry
	store    *store.Store
	clock    clock.Clock
	logger   *slog.Logger

	admins        map[int64]bool
	surveyDir     string
	defaultLocale string
	idleTTL       time.Duration

	sessions *sessionTable

	// langs caches each user's locale so the store is only consulted
	// on the first message after a restart.
	langMu sync.Mutex
	langs  map[int64]string
}

// New creates an Engine. All of API, Registry, Store, Clock, and
// Logger are required.
func New(cfg Config) (*Engine, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("bot: API is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("bot: Registry is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("bot: Store is required")
	}
	if cfg.Clock == nil {
		return nil, fmt.Errorf("bot: Clock is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("bot: Logger is required")
	}

	defaultLocale := cfg.DefaultLocale
	if defaultLocale == "" {
		defaultLocale = LocaleRU
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}

	admins := make(map[int64]bool, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = true
	}

	return &Engine{
		api:           cfg.API,
		registry:      cfg.Registry,
		store:         cfg.Store,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		admins:        admins,
		surveyDir:     cfg.SurveyDir,
		defaultLocale: defaultLocale,
		idleTTL:       idleTTL,
		sessions:      newSessionTable(),
		langs:         make(map[int64]string),
	}, nil
}

// Run starts the housekeeping sweep and the update long-poll loop,
// blocking until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, updateConfig telegram.UpdateConfig) {
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		e.runSweep(ctx)
	}()

	updateConfig.AllowedUpdates = []string{"message", "callback_query"}
	e.api.RunUpdateLoop(ctx, updateConfig, e.HandleUpdates, e.clock, e.logger)

	<-sweepDone
}

// runSweep expires idle sessions and stale per-chat rate limiters on
// a ticker at half the idle TTL.
func (e *Engine) runSweep(ctx context.Context) {
	ticker := e.clock.NewTicker(e.idleTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := e.clock.Now().Add(-e.idleTTL)
			if removed := e.sessions.sweep(cutoff); removed > 0 {
				e.logger.Info("expired idle sessions", "count", removed)
			}
			e.api.SweepLimiters(e.idleTTL)
		}
	}
}

// HandleUpdates processes one getUpdates batch in order.
func (e *Engine) HandleUpdates(ctx context.Context, updates []telegram.Update) {
	for _, update := range updates {
		switch {
		case update.Message != nil:
			e.handleMessage(ctx, update.Message)
		case update.CallbackQuery != nil:
			e.handleCallback(ctx, update.CallbackQuery)
		}
	}
}

// handleMessage routes a plain message: commands, language buttons,
// menu buttons, and survey titles. Anything else is ignored, matching
// the original bot's behavior for stray text.
func (e *Engine) handleMessage(ctx context.Context, message *telegram.Message) {
	if message.From == nil || message.From.IsBot || message.Chat.Type != "private" {
		return
	}

	userID := message.From.ID
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch text {
	case "/start":
		e.send(ctx, telegram.SendMessageRequest{
			ChatID:      chatID,
			Text:        startText.get(e.defaultLocale),
			ReplyMarkup: langKeyboard(),
		})
		return
	case langButtonRU:
		e.setLang(ctx, userID, LocaleRU)
		e.sendMenu(ctx, chatID, LocaleRU)
		return
	case langButtonUZ:
		e.setLang(ctx, userID, LocaleUZ)
		e.sendMenu(ctx, chatID, LocaleUZ)
		return
	case "/reload":
		// Non-admins are ignored silently.
		if e.admins[userID] {
			e.handleReload(ctx, chatID)
		}
		return
	case "/export":
		if e.admins[userID] {
			e.handleExport(ctx, chatID)
		}
		return
	}

	lang := e.langFor(ctx, userID)

	if text == aboutButton.get(LocaleRU) || text == aboutButton.get(LocaleUZ) {
		e.send(ctx, telegram.SendMessageRequest{ChatID: chatID, Text: consentText.get(lang)})
		return
	}

	// A survey title from the menu keyboard starts the consent step.
	entry, ok := e.registry.ResolveByTitle(text, lang, e.defaultLocale)
	if !ok {
		return
	}

	e.sessions.put(&Session{
		UserID:     userID,
		ChatID:     chatID,
		Lang:       lang,
		Entry:      entry,
		LastActive: e.clock.Now(),
	})

	e.send(ctx, telegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        consentText.get(lang),
		ReplyMarkup: consentKeyboard(lang),
	})
}

// handleCallback routes an inline button press.
func (e *Engine) handleCallback(ctx context.Context, callback *telegram.CallbackQuery) {
	if callback.Message == nil {
		// The originating message is too old; nothing to act on.
		e.answerCallback(ctx, callback.ID, "", false)
		return
	}

	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	switch {
	case callback.Data == callbackAgree:
		e.handleAgree(ctx, callback, userID, chatID)
	case strings.HasPrefix(callback.Data, callbackAnswerPrefix):
		e.handleAnswer(ctx, callback, userID)
	case callback.Data == callbackBack:
		e.handleBack(ctx, callback, userID)
	case callback.Data == callbackShare:
		e.handleShare(ctx, callback, userID)
	case callback.Data == callbackHome:
		e.answerCallback(ctx, callback.ID, "", false)
		e.sendMenu(ctx, chatID, e.langFor(ctx, userID))
	default:
		e.answerCallback(ctx, callback.ID, "", false)
	}
}

// handleAgree resets the session's progress and asks the first
// question. Agree on a dead session (expired, or bot restarted) gets
// an alert instead.
func (e *Engine) handleAgree(ctx context.Context, callback *telegram.CallbackQuery, userID, chatID int64) {
	session, ok := e.sessions.get(userID, e.clock.Now())
	if !ok {
		e.answerCallback(ctx, callback.ID, noSessionAlert.get(e.langFor(ctx, userID)), true)
		return
	}

	session.Index = 0
	session.Answers = session.Answers[:0]

	e.answerCallback(ctx, callback.ID, "", false)
	e.send(ctx, telegram.SendMessageRequest{ChatID: chatID, Text: scaleText.get(session.Lang)})
	e.askNext(ctx, session)
}

// handleAnswer records one Likert answer and advances.
func (e *Engine) handleAnswer(ctx context.Context, callback *telegram.CallbackQuery, userID int64) {
	session, ok := e.sessions.get(userID, e.clock.Now())
	if !ok {
		e.answerCallback(ctx, callback.ID, noSessionAlert.get(e.langFor(ctx, userID)), true)
		return
	}

	value, err := strconv.Atoi(strings.TrimPrefix(callback.Data, callbackAnswerPrefix))
	if err != nil || !session.Entry.Survey.Scale.Contains(value) {
		e.answerCallback(ctx, callback.ID, noSessionAlert.get(session.Lang), true)
		return
	}

	// A stale button press from an already-answered question would
	// double-record; only accept answers for the current index.
	if session.Index >= len(session.Entry.Survey.Items) {
		e.answerCallback(ctx, callback.ID, "", false)
		return
	}

	session.Answers = append(session.Answers, value)
	session.Index++

	e.answerCallback(ctx, callback.ID, "", false)
	e.askNext(ctx, session)
}

// handleBack steps one question back. At the first question it is a
// silent no-op acknowledgement, like the original.
func (e *Engine) handleBack(ctx context.Context, callback *telegram.CallbackQuery, userID int64) {
	session, ok := e.sessions.get(userID, e.clock.Now())
	if !ok || session.Index == 0 {
		e.answerCallback(ctx, callback.ID, "—", false)
		return
	}

	session.Index--
	session.Answers = session.Answers[:len(session.Answers)-1]

	e.answerCallback(ctx, callback.ID, "", false)
	e.askNext(ctx, session)
}

// askNext sends the next question, or finishes the run when all items
// are answered: score, persist, summary with the share keyboard, and
// drop the session.
func (e *Engine) askNext(ctx context.Context, session *Session) {
	survey := session.Entry.Survey

	if session.Index < len(survey.Items) {
		item := survey.Items[session.Index]
		prompt := fmt.Sprintf("%d/%d. %s", session.Index+1, len(survey.Items), item.Text.Get(session.Lang, e.defaultLocale))
		e.send(ctx, telegram.SendMessageRequest{
			ChatID:      session.ChatID,
			Text:        prompt,
			ReplyMarkup: likertKeyboard(session.Lang, survey.Scale),
		})
		return
	}

	result, err := scoring.Score(survey, session.Answers)
	if err != nil {
		// Session state drifted from the definition; can only happen
		// through a bug, so log loudly and reset.
		e.logger.Error("scoring failed", "user_id", session.UserID, "survey", survey.Key, "error", err)
		e.sessions.drop(session.UserID)
		return
	}

	saved := &store.Result{
		UserID:        session.UserID,
		ChatID:        session.ChatID,
		Lang:          session.Lang,
		SurveyKey:     survey.Key,
		SurveyVersion: survey.Version,
		SurveyHash:    session.Entry.Fingerprint,
		Answers:       session.Answers,
		Scales:        result.Scales,
	}
	if err := e.store.SaveResult(ctx, saved); err != nil {
		e.logger.Error("saving result failed", "user_id", session.UserID, "survey", survey.Key, "error", err)
		// The user still gets their summary; only persistence failed.
	}

	e.send(ctx, telegram.SendMessageRequest{
		ChatID:      session.ChatID,
		Text:        resultSummary(survey, result),
		ParseMode:   "Markdown",
		ReplyMarkup: shareKeyboard(session.Lang),
	})

	e.sessions.drop(session.UserID)
}

// handleShare forwards the user's latest stored result to every
// administrator and marks it shared. Per-admin failures are logged
// and skipped; one blocked admin must not stop the rest.
func (e *Engine) handleShare(ctx context.Context, callback *telegram.CallbackQuery, userID int64) {
	lang := e.langFor(ctx, userID)

	latest, err := e.store.Latest(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNoResults) {
			e.logger.Error("loading latest result failed", "user_id", userID, "error", err)
		}
		e.answerCallback(ctx, callback.ID, noDataAlert.get(lang), true)
		return
	}

	entry, ok := e.registry.Get(latest.SurveyKey)
	if !ok {
		// The survey was removed since the result was stored. The raw
		// scale keys are still meaningful to HR.
		e.logger.Warn("shared result references unknown survey", "survey", latest.SurveyKey)
		e.answerCallback(ctx, callback.ID, noDataAlert.get(lang), true)
		return
	}

	text := shareText(callback.From.Username, userID, entry.Survey, latest.SurveyVersion, scoring.FromScales(latest.Scales))

	delivered := 0
	for adminID := range e.admins {
		_, err := e.api.SendMessage(ctx, telegram.SendMessageRequest{ChatID: adminID, Text: text})
		if err != nil {
			e.logger.Error("forwarding result to admin failed", "admin_id", adminID, "error", err)
			continue
		}
		delivered++
	}

	if delivered > 0 {
		if err := e.store.MarkShared(ctx, latest.ID); err != nil {
			e.logger.Error("marking result shared failed", "result_id", latest.ID, "error", err)
		}
	}

	e.answerCallback(ctx, callback.ID, sharedAlert.get(lang), true)
}

// sendMenu shows the survey menu keyboard.
func (e *Engine) sendMenu(ctx context.Context, chatID int64, lang string) {
	e.send(ctx, telegram.SendMessageRequest{
		ChatID:      chatID,
		Text:        menuText.get(lang),
		ReplyMarkup: menuKeyboard(lang, e.registry.Active()),
	})
}

// send delivers a message, logging failures instead of propagating
// them: a user who blocked the bot must not take down the loop.
func (e *Engine) send(ctx context.Context, request telegram.SendMessageRequest) {
	if _, err := e.api.SendMessage(ctx, request); err != nil {
		e.logger.Error("send failed", "chat_id", request.ChatID, "error", err)
	}
}

// answerCallback acknowledges a button press, logging failures.
func (e *Engine) answerCallback(ctx context.Context, callbackID, text string, alert bool) {
	err := e.api.AnswerCallbackQuery(ctx, telegram.AnswerCallbackRequest{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		e.logger.Error("answering callback failed", "error", err)
	}
}

// setLang records the user's locale in the cache and the store.
func (e *Engine) setLang(ctx context.Context, userID int64, lang string) {
	e.langMu.Lock()
	e.langs[userID] = lang
	e.langMu.Unlock()

	if err := e.store.SetUserLang(ctx, userID, lang); err != nil {
		e.logger.Error("persisting user locale failed", "user_id", userID, "error", err)
	}
}

// langFor resolves the user's locale: cache, then store, then the
// default.
func (e *Engine) langFor(ctx context.Context, userID int64) string {
	e.langMu.Lock()
	lang, ok := e.langs[userID]
	e.langMu.Unlock()
	if ok {
		return lang
	}

	stored, err := e.store.UserLang(ctx, userID)
	if err != nil {
		e.logger.Error("loading user locale failed", "user_id", userID, "error", err)
		return e.defaultLocale
	}
	if stored == "" {
		return e.defaultLocale
	}

	e.langMu.Lock()
	e.langs[userID] = stored
	e.langMu.Unlock()
	return stored
}

// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opine-hq/opine/lib/clock"
	"github.com/opine-hq/opine/lib/secret"
	"github.com/opine-hq/opine/store"
	"github.com/opine-hq/opine/surveydef"
	"github.com/opine-hq/opine/telegram"
)

var engineTestEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const testSurvey = `{
	"key": "psychotype",
	"version": "1",
	"title": {"ru": "Психотип", "uz": "Psixotip"},
	"items": [
		{"text": {"ru": "Мне легко выступать на публике", "uz": "Omma oldida chiqish men uchun oson"}, "scale": "gipertim"},
		{"text": {"ru": "Я предпочитаю работать один", "uz": "Men yolg'iz ishlashni afzal ko'raman"}, "scale": "shizoid", "reversed": true},
	],
	"scoring": {
		"gipertim": {"ru": "Гипертим", "uz": "Gipertim"},
		"shizoid": {"ru": "Шизоид", "uz": "Shizoid"},
	},
}`

// sentMessage is one recorded sendMessage call.
type sentMessage struct {
	ChatID      int64           `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode"`
	ReplyMarkup json.RawMessage `json:"reply_markup"`
}

// sentDocument is one recorded sendDocument upload.
type sentDocument struct {
	ChatID   string
	FileName string
	Content  []byte
}

// fakeAPI records every Bot API call the engine makes.
type fakeAPI struct {
	t      *testing.T
	server *httptest.Server

	mu        sync.Mutex
	messages  []sentMessage
	answers   []telegram.AnswerCallbackRequest
	documents []sentDocument
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{t: t}
	api.server = httptest.NewServer(http.HandlerFunc(api.handle))
	t.Cleanup(api.server.Close)
	return api
}

func (f *fakeAPI) handle(writer http.ResponseWriter, request *http.Request) {
	method := request.URL.Path[strings.LastIndex(request.URL.Path, "/")+1:]

	f.mu.Lock()
	defer f.mu.Unlock()

	switch method {
	case "sendMessage":
		var message sentMessage
		if err := json.NewDecoder(request.Body).Decode(&message); err != nil {
			f.t.Errorf("decoding sendMessage: %v", err)
		}
		f.messages = append(f.messages, message)
		writeOK(writer, map[string]any{"message_id": len(f.messages), "chat": map[string]any{"id": message.ChatID, "type": "private"}})
	case "answerCallbackQuery":
		var answer telegram.AnswerCallbackRequest
		if err := json.NewDecoder(request.Body).Decode(&answer); err != nil {
			f.t.Errorf("decoding answerCallbackQuery: %v", err)
		}
		f.answers = append(f.answers, answer)
		writeOK(writer, true)
	case "sendDocument":
		_, params, err := mime.ParseMediaType(request.Header.Get("Content-Type"))
		if err != nil {
			f.t.Errorf("parsing upload content type: %v", err)
			return
		}
		form, err := multipart.NewReader(request.Body, params["boundary"]).ReadForm(1 << 20)
		if err != nil {
			f.t.Errorf("parsing upload form: %v", err)
			return
		}
		document := sentDocument{ChatID: form.Value["chat_id"][0]}
		if files := form.File["document"]; len(files) == 1 {
			document.FileName = files[0].Filename
			file, _ := files[0].Open()
			document.Content, _ = io.ReadAll(file)
			file.Close()
		}
		f.documents = append(f.documents, document)
		writeOK(writer, map[string]any{"message_id": 1, "chat": map[string]any{"id": 0, "type": "private"}})
	default:
		f.t.Errorf("unexpected Bot API method: %s", method)
		writer.WriteHeader(http.StatusNotFound)
	}
}

func writeOK(writer http.ResponseWriter, result any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(map[string]any{"ok": true, "result": result})
}

// lastMessage returns the most recent sendMessage call.
func (f *fakeAPI) lastMessage(t *testing.T) sentMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("no messages sent")
	}
	return f.messages[len(f.messages)-1]
}

func (f *fakeAPI) lastAnswer(t *testing.T) telegram.AnswerCallbackRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		t.Fatal("no callbacks answered")
	}
	return f.answers[len(f.answers)-1]
}

func (f *fakeAPI) messageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// messagesTo returns the texts sent to one chat, in order.
func (f *fakeAPI) messagesTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var texts []string
	for _, message := range f.messages {
		if message.ChatID == chatID {
			texts = append(texts, message.Text)
		}
	}
	return texts
}

// testEngine wires an Engine against the fake API, a temp-dir store,
// and a single-survey registry.
type testEngine struct {
	engine    *Engine
	api       *fakeAPI
	store     *store.Store
	clock     *clock.FakeClock
	surveyDir string
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	api := newFakeAPI(t)
	fakeClock := clock.Fake(engineTestEpoch)

	token, err := secret.NewFromString("12345:TESTTOKEN")
	if err != nil {
		t.Fatalf("creating token: %v", err)
	}
	t.Cleanup(func() { token.Close() })

	client, err := telegram.NewClient(telegram.ClientConfig{
		APIBaseURL: api.server.URL,
		Token:      token,
		Clock:      fakeClock,
		SendRate:   1000,
		SendBurst:  1000,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	surveyDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(surveyDir, "psychotype.jsonc"), []byte(testSurvey), 0644); err != nil {
		t.Fatalf("writing survey: %v", err)
	}

	registry := surveydef.NewRegistry(Locales)
	if err := registry.LoadDir(surveyDir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	resultStore, err := store.Open(store.Config{
		Path:     filepath.Join(t.TempDir(), "opine_test.db"),
		PoolSize: 2,
		Clock:    fakeClock,
		Logger:   slog.Default(),
	})
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { resultStore.Close() })

	engine, err := New(Config{
		API:       client,
		Registry:  registry,
		Store:     resultStore,
		Clock:     fakeClock,
		Logger:    slog.Default(),
		Admins:    []int64{900},
		SurveyDir: surveyDir,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &testEngine{engine: engine, api: api, store: resultStore, clock: fakeClock, surveyDir: surveyDir}
}

// message builds a private text message update from the given user.
func message(userID int64, text string) telegram.Update {
	return telegram.Update{
		Message: &telegram.Message{
			From: &telegram.User{ID: userID, FirstName: "U", Username: "user"},
			Chat: telegram.Chat{ID: userID, Type: "private"},
			Text: text,
		},
	}
}

// callback builds an inline button press update from the given user.
func callback(userID int64, data string) telegram.Update {
	return telegram.Update{
		CallbackQuery: &telegram.CallbackQuery{
			ID:   "cb",
			From: telegram.User{ID: userID, Username: "user"},
			Message: &telegram.Message{
				Chat: telegram.Chat{ID: userID, Type: "private"},
			},
			Data: data,
		},
	}
}

func (te *testEngine) handle(updates ...telegram.Update) {
	te.engine.HandleUpdates(context.Background(), updates)
}

func TestStartShowsLanguageKeyboard(t *testing.T) {
	te := newTestEngine(t)

	te.handle(message(1, "/start"))

	sent := te.api.lastMessage(t)
	if sent.Text != startText.get(LocaleRU) {
		t.Errorf("text = %q", sent.Text)
	}
	if !strings.Contains(string(sent.ReplyMarkup), langButtonRU) || !strings.Contains(string(sent.ReplyMarkup), langButtonUZ) {
		t.Errorf("keyboard missing language buttons: %s", sent.ReplyMarkup)
	}
}

func TestLanguageSelectionShowsMenu(t *testing.T) {
	te := newTestEngine(t)

	te.handle(message(1, "/start"), message(1, langButtonUZ))

	sent := te.api.lastMessage(t)
	if sent.Text != menuText.get(LocaleUZ) {
		t.Errorf("text = %q, want uz menu", sent.Text)
	}
	if !strings.Contains(string(sent.ReplyMarkup), "Psixotip") {
		t.Errorf("menu missing uz survey title: %s", sent.ReplyMarkup)
	}

	// The locale is persisted, not just cached.
	lang, err := te.store.UserLang(context.Background(), 1)
	if err != nil {
		t.Fatalf("UserLang: %v", err)
	}
	if lang != LocaleUZ {
		t.Errorf("stored lang = %q, want uz", lang)
	}
}

func TestSurveyTitleStartsConsent(t *testing.T) {
	te := newTestEngine(t)

	te.handle(message(1, langButtonRU), message(1, "Психотип"))

	sent := te.api.lastMessage(t)
	if sent.Text != consentText.get(LocaleRU) {
		t.Errorf("text = %q, want consent", sent.Text)
	}
	if !strings.Contains(string(sent.ReplyMarkup), callbackAgree) {
		t.Errorf("consent keyboard missing agree: %s", sent.ReplyMarkup)
	}
	if te.engine.sessions.len() != 1 {
		t.Errorf("sessions = %d, want 1", te.engine.sessions.len())
	}
}

func TestAboutButtonShowsDisclaimer(t *testing.T) {
	te := newTestEngine(t)

	te.handle(message(1, langButtonRU), message(1, aboutButton.get(LocaleRU)))

	if got := te.api.lastMessage(t).Text; got != consentText.get(LocaleRU) {
		t.Errorf("text = %q, want consent text", got)
	}
	// About must not create a session.
	if te.engine.sessions.len() != 0 {
		t.Errorf("sessions = %d, want 0", te.engine.sessions.len())
	}
}

func TestFullSurveyRun(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.handle(
		message(1, langButtonRU),
		message(1, "Психотип"),
		callback(1, callbackAgree),
	)

	// Agree sends the scale hint, then question 1 of 2.
	texts := te.api.messagesTo(1)
	if texts[len(texts)-2] != scaleText.get(LocaleRU) {
		t.Errorf("expected scale hint, got %q", texts[len(texts)-2])
	}
	if !strings.HasPrefix(texts[len(texts)-1], "1/2. ") {
		t.Errorf("first question = %q", texts[len(texts)-1])
	}

	te.handle(callback(1, "ans:5"))
	if got := te.api.lastMessage(t).Text; !strings.HasPrefix(got, "2/2. ") {
		t.Errorf("second question = %q", got)
	}

	te.handle(callback(1, "ans:1"))

	// Run complete: bilingual summary with the share keyboard, session
	// dropped, result persisted.
	summary := te.api.lastMessage(t)
	if !strings.Contains(summary.Text, "📊 *Психотип*") || !strings.Contains(summary.Text, "📊 *Psixotip*") {
		t.Errorf("summary missing locale blocks:\n%s", summary.Text)
	}
	if summary.ParseMode != "Markdown" {
		t.Errorf("summary parse mode = %q", summary.ParseMode)
	}
	if !strings.Contains(string(summary.ReplyMarkup), callbackShare) {
		t.Errorf("summary keyboard missing share: %s", summary.ReplyMarkup)
	}
	if te.engine.sessions.len() != 0 {
		t.Errorf("sessions = %d after completion, want 0", te.engine.sessions.len())
	}

	saved, err := te.store.Latest(ctx, 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if saved.SurveyKey != "psychotype" || saved.SurveyVersion != "1" {
		t.Errorf("saved survey = %s v%s", saved.SurveyKey, saved.SurveyVersion)
	}
	if len(saved.Answers) != 2 || saved.Answers[0] != 5 || saved.Answers[1] != 1 {
		t.Errorf("saved answers = %v, want [5 1]", saved.Answers)
	}
	// Item 2 is reversed: answer 1 scores as (1+5)-1 = 5.
	if saved.Scales["gipertim"] != 5.0 || saved.Scales["shizoid"] != 5.0 {
		t.Errorf("saved scales = %v", saved.Scales)
	}
	if len(saved.SurveyHash) != 64 {
		t.Errorf("survey hash length = %d, want 64", len(saved.SurveyHash))
	}
}

func TestBackStepsOneQuestion(t *testing.T) {
	te := newTestEngine(t)

	te.handle(
		message(1, langButtonRU),
		message(1, "Психотип"),
		callback(1, callbackAgree),
	)

	// Back at the first question is a no-op acknowledgement.
	te.handle(callback(1, callbackBack))
	if got := te.api.lastAnswer(t); got.Text != "—" || got.ShowAlert {
		t.Errorf("back at index 0 answered %+v", got)
	}

	te.handle(callback(1, "ans:3"), callback(1, callbackBack))
	if got := te.api.lastMessage(t).Text; !strings.HasPrefix(got, "1/2. ") {
		t.Errorf("after back expected question 1, got %q", got)
	}

	session, ok := te.engine.sessions.get(1, engineTestEpoch)
	if !ok || session.Index != 0 || len(session.Answers) != 0 {
		t.Errorf("session after back: %+v", session)
	}
}

func TestAnswerWithoutSessionAlerts(t *testing.T) {
	te := newTestEngine(t)

	te.handle(callback(1, "ans:3"))

	got := te.api.lastAnswer(t)
	if !got.ShowAlert || got.Text != noSessionAlert.get(LocaleRU) {
		t.Errorf("expected no-session alert, got %+v", got)
	}
}

func TestOutOfRangeAnswerRejected(t *testing.T) {
	te := newTestEngine(t)

	te.handle(
		message(1, langButtonRU),
		message(1, "Психотип"),
		callback(1, callbackAgree),
		callback(1, "ans:9"),
	)

	if got := te.api.lastAnswer(t); !got.ShowAlert {
		t.Errorf("expected alert for out-of-range answer, got %+v", got)
	}
	session, _ := te.engine.sessions.get(1, engineTestEpoch)
	if len(session.Answers) != 0 {
		t.Errorf("out-of-range answer was recorded: %v", session.Answers)
	}
}

func TestShareForwardsToAdmins(t *testing.T) {
	te := newTestEngine(t)
	ctx := context.Background()

	te.handle(
		message(1, langButtonRU),
		message(1, "Психотип"),
		callback(1, callbackAgree),
		callback(1, "ans:4"),
		callback(1, "ans:2"),
		callback(1, callbackShare),
	)

	adminMessages := te.api.messagesTo(900)
	if len(adminMessages) != 1 {
		t.Fatalf("admin received %d messages, want 1", len(adminMessages))
	}
	if !strings.Contains(adminMessages[0], "@user") || !strings.Contains(adminMessages[0], "Психотип") {
		t.Errorf("share text = %q", adminMessages[0])
	}

	if got := te.api.lastAnswer(t); !got.ShowAlert || got.Text != sharedAlert.get(LocaleRU) {
		t.Errorf("share confirmation = %+v", got)
	}

	saved, err := te.store.Latest(ctx, 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if !saved.Shared {
		t.Error("result not marked shared")
	}
}

func TestShareWithoutResultsAlerts(t *testing.T) {
	te := newTestEngine(t)

	te.handle(callback(1, callbackShare))

	got := te.api.lastAnswer(t)
	if !got.ShowAlert || got.Text != noDataAlert.get(LocaleRU) {
		t.Errorf("expected no-data alert, got %+v", got)
	}
}

func TestHomeShowsMenu(t *testing.T) {
	te := newTestEngine(t)

	te.handle(message(1, langButtonUZ), callback(1, callbackHome))

	if got := te.api.lastMessage(t).Text; got != menuText.get(LocaleUZ) {
		t.Errorf("text = %q, want uz menu", got)
	}
}

func TestAdminCommandsIgnoredForNonAdmins(t *testing.T) {
	te := newTestEngine(t)

	before := te.api.messageCount()
	te.handle(message(1, "/export"), message(1, "/reload"))
	if te.api.messageCount() != before {
		t.Error("non-admin commands produced replies")
	}
}

func TestAdminExportSendsDocument(t *testing.T) {
	te := newTestEngine(t)

	te.handle(
		message(1, langButtonRU),
		message(1, "Психотип"),
		callback(1, callbackAgree),
		callback(1, "ans:4"),
		callback(1, "ans:2"),
		message(900, "/export"),
	)

	te.api.mu.Lock()
	documents := te.api.documents
	te.api.mu.Unlock()

	if len(documents) != 1 {
		t.Fatalf("got %d documents, want 1", len(documents))
	}
	if documents[0].ChatID != "900" || documents[0].FileName != "results.csv" {
		t.Errorf("document = %+v", documents[0])
	}
	if !strings.HasPrefix(string(documents[0].Content), "ts,user_id") {
		t.Errorf("document content = %q", documents[0].Content)
	}
}

func TestAdminReload(t *testing.T) {
	te := newTestEngine(t)

	// Add a second survey and reload.
	second := strings.Replace(testSurvey, `"key": "psychotype"`, `"key": "burnout"`, 1)
	second = strings.Replace(second, `"ru": "Психотип", "uz": "Psixotip"`, `"ru": "Выгорание", "uz": "Charchash"`, 1)
	if err := os.WriteFile(filepath.Join(te.surveyDir, "burnout.jsonc"), []byte(second), 0644); err != nil {
		t.Fatalf("writing survey: %v", err)
	}

	te.handle(message(900, "/reload"))

	reply := te.api.lastMessage(t)
	if !strings.Contains(reply.Text, "2") || !strings.Contains(reply.Text, "burnout") {
		t.Errorf("reload reply = %q", reply.Text)
	}

	// The new survey appears in the menu.
	te.handle(message(1, langButtonRU))
	if !strings.Contains(string(te.api.lastMessage(t).ReplyMarkup), "Выгорание") {
		t.Error("menu missing reloaded survey")
	}
}

func TestAdminReloadFailureKeepsSnapshot(t *testing.T) {
	te := newTestEngine(t)

	if err := os.WriteFile(filepath.Join(te.surveyDir, "broken.jsonc"), []byte("{"), 0644); err != nil {
		t.Fatalf("writing broken survey: %v", err)
	}

	te.handle(message(900, "/reload"))

	if !strings.Contains(te.api.lastMessage(t).Text, "Ошибка перезагрузки") {
		t.Errorf("reload failure reply = %q", te.api.lastMessage(t).Text)
	}

	// The previous snapshot still serves the menu.
	te.handle(message(1, langButtonRU))
	if !strings.Contains(string(te.api.lastMessage(t).ReplyMarkup), "Психотип") {
		t.Error("menu lost surveys after failed reload")
	}
}

func TestReloadDoesNotDisturbActiveSession(t *testing.T) {
	te := newTestEngine(t)

	te.handle(
		message(1, langButtonRU),
		message(1, "Психотип"),
		callback(1, callbackAgree),
		callback(1, "ans:4"),
	)

	// Reload with a rewritten definition mid-run.
	updated := strings.Replace(testSurvey, `"version": "1"`, `"version": "2"`, 1)
	if err := os.WriteFile(filepath.Join(te.surveyDir, "psychotype.jsonc"), []byte(updated), 0644); err != nil {
		t.Fatalf("rewriting survey: %v", err)
	}
	te.handle(message(900, "/reload"))

	// The in-flight session still scores against the pinned version.
	te.handle(callback(1, "ans:2"))

	saved, err := te.store.Latest(context.Background(), 1)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if saved.SurveyVersion != "1" {
		t.Errorf("saved version = %s, want pinned 1", saved.SurveyVersion)
	}
}

func TestGroupMessagesIgnored(t *testing.T) {
	te := newTestEngine(t)

	update := telegram.Update{
		Message: &telegram.Message{
			From: &telegram.User{ID: 1},
			Chat: telegram.Chat{ID: -100, Type: "group"},
			Text: "/start",
		},
	}
	te.handle(update)

	if te.api.messageCount() != 0 {
		t.Error("group message produced a reply")
	}
}

func TestSessionSweep(t *testing.T) {
	te := newTestEngine(t)

	te.handle(message(1, langButtonRU), message(1, "Психотип"))
	if te.engine.sessions.len() != 1 {
		t.Fatalf("sessions = %d, want 1", te.engine.sessions.len())
	}

	cutoff := te.clock.Now().Add(time.Minute)
	if removed := te.engine.sessions.sweep(cutoff); removed != 1 {
		t.Errorf("sweep removed %d, want 1", removed)
	}
	if te.engine.sessions.len() != 0 {
		t.Errorf("sessions = %d after sweep, want 0", te.engine.sessions.len())
	}
}

// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

// User is a Telegram user or bot account.
type User struct {
	ID           int64  `json:"id"`
	IsBot        bool   `json:"is_bot"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
}

// Chat is a conversation the bot participates in. Survey chats are
// always private, but the type field is kept so group messages can be
// recognized and ignored.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"` // "private", "group", "supergroup", "channel"
}

// Message is an incoming or sent message.
type Message struct {
	MessageID int64    `json:"message_id"`
	From      *User    `json:"from,omitempty"`
	Chat      Chat     `json:"chat"`
	Date      int64    `json:"date"`
	Text      string   `json:"text,omitempty"`
	Document  *FileRef `json:"document,omitempty"`
}

// FileRef identifies an uploaded file in a sent message.
type FileRef struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// CallbackQuery is a button press on an inline keyboard. The Data
// field carries the callback_data of the pressed button; Message is
// the message the keyboard was attached to.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// Update is one item from getUpdates. Exactly one of the optional
// fields is set per update.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// InlineKeyboardButton is one button of an inline keyboard. Pressing
// it delivers Data back as a CallbackQuery.
type InlineKeyboardButton struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

// InlineKeyboardMarkup is a keyboard attached to a specific message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// KeyboardButton is one button of a reply keyboard. Pressing it sends
// the button text as a regular message.
type KeyboardButton struct {
	Text string `json:"text"`
}

// ReplyKeyboardMarkup is a persistent keyboard shown below the input
// field.
type ReplyKeyboardMarkup struct {
	Keyboard       [][]KeyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard,omitempty"`
	OneTime        bool               `json:"one_time_keyboard,omitempty"`
}

// ReplyKeyboardRemove clears a previously sent reply keyboard.
type ReplyKeyboardRemove struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

// SendMessageRequest holds parameters for sendMessage. ReplyMarkup
// accepts InlineKeyboardMarkup, ReplyKeyboardMarkup, or
// ReplyKeyboardRemove.
type SendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"` // "Markdown", "HTML"

	ReplyMarkup any `json:"reply_markup,omitempty"`
}

// AnswerCallbackRequest holds parameters for answerCallbackQuery.
// Text is shown as a toast, or as an alert dialog when ShowAlert is
// set. An empty Text just dismisses the button's loading spinner.
type AnswerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
	ShowAlert       bool   `json:"show_alert,omitempty"`
}

// SendDocumentRequest holds parameters for sendDocument. The file
// content is uploaded as multipart form data.
type SendDocumentRequest struct {
	ChatID   int64
	FileName string
	Content  []byte
	Caption  string
}

// getUpdatesRequest holds parameters for getUpdates long polling.
type getUpdatesRequest struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout,omitempty"` // seconds
	AllowedUpdates []string `json:"allowed_updates,omitempty"`
}

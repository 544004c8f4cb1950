// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"strconv"

	"github.com/opine-hq/opine/surveydef"
	"github.com/opine-hq/opine/telegram"
)

// Callback data values. Answer buttons carry "ans:<value>".
const (
	callbackAgree        = "agree"
	callbackBack         = "back"
	callbackShare        = "share_hr"
	callbackHome         = "home"
	callbackAnswerPrefix = "ans:"
)

// langKeyboard is the /start language picker.
func langKeyboard() telegram.ReplyKeyboardMarkup {
	return telegram.ReplyKeyboardMarkup{
		Keyboard: [][]telegram.KeyboardButton{
			{{Text: langButtonRU}},
			{{Text: langButtonUZ}},
		},
		ResizeKeyboard: true,
	}
}

// menuKeyboard lists the active surveys by localized title, plus the
// about button.
func menuKeyboard(lang string, entries []*surveydef.Entry) telegram.ReplyKeyboardMarkup {
	rows := make([][]telegram.KeyboardButton, 0, len(entries)+1)
	for _, entry := range entries {
		rows = append(rows, []telegram.KeyboardButton{{Text: entry.Survey.Title.Get(lang, LocaleRU)}})
	}
	rows = append(rows, []telegram.KeyboardButton{{Text: aboutButton.get(lang)}})
	return telegram.ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true}
}

// likertKeyboard shows one button per answer value plus a back row.
func likertKeyboard(lang string, bounds surveydef.ScaleBounds) telegram.InlineKeyboardMarkup {
	row := make([]telegram.InlineKeyboardButton, 0, bounds.Span())
	for value := bounds.Min; value <= bounds.Max; value++ {
		row = append(row, telegram.InlineKeyboardButton{
			Text: strconv.Itoa(value),
			Data: callbackAnswerPrefix + strconv.Itoa(value),
		})
	}
	return telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			row,
			{{Text: backButton.get(lang), Data: callbackBack}},
		},
	}
}

// consentKeyboard offers agree or back-to-menu.
func consentKeyboard(lang string) telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: agreeButton.get(lang), Data: callbackAgree}},
			{{Text: backButton.get(lang), Data: callbackHome}},
		},
	}
}

// shareKeyboard follows a completed survey's summary.
func shareKeyboard(lang string) telegram.InlineKeyboardMarkup {
	return telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{
			{{Text: shareButton.get(lang), Data: callbackShare}},
			{{Text: homeButton.get(lang), Data: callbackHome}},
		},
	}
}

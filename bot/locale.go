// Copyright 2026 The Opine Authors
// SPDX-License-Identifier: Apache-2.0

package bot

// Supported locale codes. Every survey definition must provide text
// for both; the bot's own strings below are keyed the same way.
const (
	LocaleRU = "ru"
	LocaleUZ = "uz"
)

// Locales lists the supported locale codes in menu order.
var Locales = []string{LocaleRU, LocaleUZ}

// Language selection button labels. These arrive as plain message
// text; the apostrophe in the Uzbek label is U+2018, matching what
// Telegram clients send back from the keyboard button.
const (
	langButtonRU = "Русский"
	langButtonUZ = "O‘zbekcha"
)

// localized is a per-locale string table for the bot's own UI text.
type localized map[string]string

func (l localized) get(lang string) string {
	if text, ok := l[lang]; ok {
		return text
	}
	return l[LocaleRU]
}

var consentText = localized{
	LocaleRU: "⚖️ Дисклеймер\n\n" +
		"• Это самооценочные опросники (не медицинская диагностика).\n" +
		"• Данные сохраняются для отчётов HR и аналитики (если вы согласитесь поделиться).\n" +
		"• Можно пройти анонимно и НЕ делиться результатом.\n\n" +
		"Нажимая «Согласен», вы подтверждаете понимание.",
	LocaleUZ: "⚖️ Ogohlantirish\n\n" +
		"• Bu o‘z-o‘zini baholash so‘rovlari (tibbiy tashxis emas).\n" +
		"• Ma'lumotlar HR va tahlil uchun saqlanishi mumkin (agar ulashishga rozi bo‘lsangiz).\n" +
		"• So‘rovnomani anonim o‘tish va natijani ULASHMASLIK mumkin.\n\n" +
		"«Roziman» tugmasini bosish bilan ushbu shartlarni tushunganingizni tasdiqlaysiz.",
}

var agreeButton = localized{LocaleRU: "✅ Согласен", LocaleUZ: "✅ Roziman"}
var backButton = localized{LocaleRU: "🔙 Назад", LocaleUZ: "🔙 Orqaga"}
var shareButton = localized{LocaleRU: "📤 Поделиться HR", LocaleUZ: "📤 HR bilan ulashish"}
var homeButton = localized{LocaleRU: "🏠 В меню", LocaleUZ: "🏠 Menyuga"}
var aboutButton = localized{LocaleRU: "ℹ️ О боте", LocaleUZ: "ℹ️ Bot haqida"}

var startText = localized{
	LocaleRU: "Выберите язык / Tilni tanlang:",
	LocaleUZ: "Tilni tanlang / Выберите язык:",
}

var menuText = localized{
	LocaleRU: "Выберите тест:",
	LocaleUZ: "Testni tanlang:",
}

var scaleText = localized{
	LocaleRU: "Шкала: 1 (совсем не про меня) … 5 (полностью про меня)",
	LocaleUZ: "Shkala: 1 (mutlaqo to‘g‘ri emas) … 5 (to‘liq to‘g‘ri)",
}

var noSessionAlert = localized{
	LocaleRU: "Нет активного опроса",
	LocaleUZ: "Faol so‘rovnoma yo‘q",
}

var noDataAlert = localized{
	LocaleRU: "Нет данных",
	LocaleUZ: "Ma'lumot yo‘q",
}

var sharedAlert = localized{
	LocaleRU: "Отправлено HR.",
	LocaleUZ: "HR ga yuborildi.",
}

var topFactorsPrefix = localized{
	LocaleRU: "⭐ Топ‑факторы: ",
	LocaleUZ: "⭐ Eng kuchli tomonlar: ",
}

// Role hints appended to every result summary.
var summaryTips = localized{
	LocaleRU: "\n\n🧩 Подсказка:\n" +
		"• Высокая «Гипертим/Истероид» — сильны в презентациях/продажах.\n" +
		"• «Эпилептоид/Педантичный» — сильны в регламенте и качестве.\n" +
		"• «Эмотив/Эмотивный» — наставничество, HR.\n" +
		"• «Параноид/Застревающий» — стратегия, доведение до результата.\n" +
		"• «Шизоид/Шизоидный» — R&D, продукт, аналитика.",
	LocaleUZ: "\n\n🧩 Maslahat:\n" +
		"• «Gipertim/Isteroid» — taqdimot va savdoda kuchli.\n" +
		"• «Epileptoid/Pedantik» — reglament va sifatda kuchli.\n" +
		"• «Emotiv/Emotiv» — murabbiylik, HR.\n" +
		"• «Paranoid/Qotib qoluvchi» — strategiya, natijaga yetkazish.\n" +
		"• «Shizoid/Shizoid» — R&D, mahsulot, analitika.",
}

var exportCaption = localized{
	LocaleRU: "Экспорт результатов",
	LocaleUZ: "Natijalar eksporti",
}

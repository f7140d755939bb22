package keyboard

import (
	"fmt"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/sawti-academy/internal/i18n"
)

// OperatorMenu is the persistent reply keyboard of the operator chat.
func OperatorMenu(t i18n.Translator) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{ResizeKeyboard: true}
	markup.Reply(markup.Row(markup.Text(text(t, "bot.menu.pending", "/pending"))))
	return markup
}

// PaginationButtons returns prev, current and next page buttons for action,
// omitting prev on the first page and next on the last. page is clamped to
// [1, totalPages].
func PaginationButtons(t i18n.Translator, action string, page, totalPages int) []InlineButton {
	totalPages = max(totalPages, 1)
	page = min(max(page, 1), totalPages)

	to := func(label string, p int) InlineButton {
		return InlineButton{Text: label, Callback: Callback{Action: action, Arg: strconv.Itoa(p)}}
	}

	var buttons []InlineButton
	if page > 1 {
		buttons = append(buttons, to(text(t, "bot.pagination.prev", "◀️"), page-1))
	}
	buttons = append(buttons, to(pageLabel(t, page, totalPages), page))
	if page < totalPages {
		buttons = append(buttons, to(text(t, "bot.pagination.next", "▶️"), page+1))
	}
	return buttons
}

// TotalPages returns how many pages of perPage items hold total items.
func TotalPages(total, perPage int) int {
	if perPage <= 0 || total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}

// text resolves key, or returns fallback when the catalog lacks it.
func text(t i18n.Translator, key, fallback string) string {
	if t == nil {
		return fallback
	}
	if s := t.T(key); s != "" && s != key {
		return s
	}
	return fallback
}

func pageLabel(t i18n.Translator, page, total int) string {
	format := text(t, "bot.pagination.page", "%d/%d")
	return fmt.Sprintf(format, page, total)
}

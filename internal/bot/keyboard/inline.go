package keyboard

import (
	telebot "gopkg.in/telebot.v3"
)

type InlineButton struct {
	Text     string
	Callback Callback
}

// Inline renders rows of buttons, skipping empty rows. Buttons carry raw
// callback data and no telebot Unique, so every press reaches the console
// router's OnCallback handler.
func Inline(rows ...[]InlineButton) (*telebot.ReplyMarkup, error) {
	markup := &telebot.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}

		rendered := make([]telebot.InlineButton, 0, len(row))
		for _, btn := range row {
			data, err := btn.Callback.Encode()
			if err != nil {
				return nil, err
			}
			rendered = append(rendered, telebot.InlineButton{Text: btn.Text, Data: data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, rendered)
	}
	return markup, nil
}

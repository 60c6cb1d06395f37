package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"turfslot/internal/models"
)

const turfsPerPage = 6

type PaginationParams struct {
	ChatID    int64
	MessageID int // 0 if new message
	Page      int
	Title     string
}

// renderTurfPage shows one page of turfs with a button per turf.
func (b *Bot) renderTurfPage(turfs []models.Turf, params PaginationParams) {
	pages := (len(turfs) + turfsPerPage - 1) / turfsPerPage
	if params.Page < 0 || params.Page >= pages {
		params.Page = 0
	}
	startIdx := params.Page * turfsPerPage
	endIdx := startIdx + turfsPerPage
	if endIdx > len(turfs) {
		endIdx = len(turfs)
	}

	var message strings.Builder
	message.WriteString(params.Title + "\n")
	if pages > 1 {
		message.WriteString(fmt.Sprintf("Page %d of %d\n", params.Page+1, pages))
	}
	message.WriteString("\n")

	current := turfs[startIdx:endIdx]
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i := range current {
		t := &current[i]
		message.WriteString(fmt.Sprintf("%d. %s", startIdx+i+1, t.Name))
		if t.Location != "" {
			message.WriteString(" (" + t.Location + ")")
		}
		if rate := t.MinRate(); rate > 0 {
			message.WriteString(fmt.Sprintf(", from %s/h", FormatPrice(rate)))
		}
		message.WriteString("\n")

		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(t.Name, fmt.Sprintf("turf:%d", t.ID)),
		))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if params.Page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", fmt.Sprintf("tpage:%d", params.Page-1)))
	}
	if endIdx < len(turfs) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("tpage:%d", params.Page+1)))
	}
	if len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}
	keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Close", "close"),
	))

	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	b.show(params.ChatID, params.MessageID, message.String(), &markup)
}

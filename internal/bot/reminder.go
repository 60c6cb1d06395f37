package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"turfslot/internal/booking"
	"turfslot/internal/models"
)

// StartReminders schedules daily reminders for next-day bookings of users
// the bot has talked to.
func (b *Bot) StartReminders(ctx context.Context, hour int) {
	go func() {
		timer := time.NewTimer(timeUntilNextHour(b.now(), hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				n := b.sendTomorrowReminders(ctx)
				b.logger.Info().Int("sent", n).Msg("booking reminders sent")
				timer.Reset(timeUntilNextHour(b.now(), hour))
			}
		}
	}()
}

func (b *Bot) sendTomorrowReminders(ctx context.Context) int {
	tomorrow := b.today().AddDate(0, 0, 1).Format(booking.DateLayout)

	b.mu.Lock()
	chats := make(map[int64]int64, len(b.chats))
	for userID, chatID := range b.chats {
		chats[userID] = chatID
	}
	b.mu.Unlock()

	sent := 0
	for userID, chatID := range chats {
		rows, err := b.api.UserBookings(ctx, userID)
		if err != nil {
			b.logger.Warn().Err(err).Int64("user_id", userID).Msg("reminder: list bookings")
			continue
		}
		for i := range rows {
			bk := &rows[i]
			if !bk.IsActive() || bk.Date != tomorrow {
				continue
			}
			if _, err := b.tg.Send(tgbotapi.NewMessage(chatID, formatReminderMessage(bk))); err != nil {
				b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("reminder: send")
				continue
			}
			sent++
		}
	}
	return sent
}

func formatReminderMessage(bk *models.SlotBooking) string {
	return fmt.Sprintf("⏰ Reminder: tomorrow you have %s booked at %s, %s-%s. Reference %s.",
		bk.SportName, bk.TurfName, bk.StartTime, bk.EndTime, bk.Reference)
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

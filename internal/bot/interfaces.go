package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"turfslot/internal/booking"
	"turfslot/internal/models"
	"turfslot/internal/turfapi"
)

// BookingAPI is the backend the bot reads turfs from and books through.
type BookingAPI interface {
	booking.Availability
	booking.Creator
	ListTurfs(ctx context.Context) ([]models.Turf, error)
	GetTurf(ctx context.Context, turfID int64) (*models.Turf, error)
	UserBookings(ctx context.Context, userID int64) ([]models.SlotBooking, error)
	CancelBooking(ctx context.Context, bookingID, userID int64) (*models.SlotBooking, error)
}

var _ BookingAPI = (*turfapi.Client)(nil)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

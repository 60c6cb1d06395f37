// Package bot is the Telegram front-end of the turf booking service.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"turfslot/internal/booking"
	"turfslot/internal/models"
	"turfslot/internal/turfapi"
)

const (
	defaultDaysAhead   = 14
	maxSpecialRequests = 500
	helpText           = "Commands:\n/book - book a turf slot\n/mybookings - your bookings\n/cancel - abort the current booking\n/cancel <id> - cancel a booking"
)

// Options tunes the booking dialog.
type Options struct {
	DaysAhead      int
	SessionTimeout time.Duration
	FailClosed     bool
	Debug          bool
	// Availability replaces the API as the source of booked slots when set.
	Availability booking.Availability
}

// Bot runs the Telegram booking dialog. Each user with an open slot grid
// owns one booking.Selector held in the session store.
type Bot struct {
	api       BookingAPI
	tg        telegramClient
	state     *stateStore
	sessions  *booking.SessionStore
	daysAhead int
	logger    *zerolog.Logger
	now       func() time.Time

	mu    sync.Mutex
	chats map[int64]int64 // user id -> chat id, for reminders
}

func New(token string, api BookingAPI, opts Options, logger *zerolog.Logger) (*Bot, error) {
	tg, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	tg.Debug = opts.Debug
	return newBot(&realTelegramClient{api: tg}, api, opts, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, api BookingAPI, opts Options, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, api, opts, logger)
}

func newBot(tg telegramClient, api BookingAPI, opts Options, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if api == nil {
		return nil, fmt.Errorf("booking api is nil")
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = defaultDaysAhead
	}

	b := &Bot{
		api:       api,
		tg:        tg,
		state:     newStateStore(),
		daysAhead: opts.DaysAhead,
		logger:    logger,
		now:       time.Now,
		chats:     make(map[int64]int64),
	}
	var avail booking.Availability = api
	if opts.Availability != nil {
		avail = opts.Availability
	}
	b.sessions = booking.NewSessionStore(opts.SessionTimeout, func(userID int64) *booking.Selector {
		return booking.NewSelector(avail, api,
			booking.ForUser(userID),
			booking.WithLogger(logger),
			booking.WithFailClosed(opts.FailClosed),
			booking.OnBookingComplete(func(models.SlotBooking) {
				b.sessions.Delete(userID)
				b.state.reset(userID)
			}),
		)
	})
	return b, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Booking bot authorized")

	cleanup := time.NewTicker(time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			if n := b.sessions.Cleanup(); n > 0 {
				b.logger.Debug().Int("expired", n).Msg("dropped idle booking sessions")
			}
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil && update.Message.From != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	userID, chatID := msg.From.ID, msg.Chat.ID
	b.remember(userID, chatID)

	if strings.HasPrefix(text, "/") {
		cmd, args, _ := strings.Cut(text, " ")
		cmd, _, _ = strings.Cut(cmd, "@")
		switch cmd {
		case "/start", "/help":
			b.abort(userID)
			b.reply(chatID, "Welcome! Book a turf in a few taps.\n\n"+helpText)
		case "/book":
			b.startBooking(ctx, chatID, userID, 0)
		case "/mybookings":
			b.handleMyBookings(ctx, chatID, userID)
		case "/cancel":
			if args = strings.TrimSpace(args); args != "" {
				id, err := strconv.ParseInt(args, 10, 64)
				if err != nil || id <= 0 {
					b.reply(chatID, "Usage: /cancel <booking id>")
					return
				}
				b.cancelBooking(ctx, chatID, userID, id)
				return
			}
			b.abort(userID)
			b.reply(chatID, "Booking aborted. /book to start again.")
		default:
			b.reply(chatID, helpText)
		}
		return
	}

	session := b.sessions.Get(userID)
	if session == nil || b.state.get(userID).Step != stepGrid {
		b.reply(chatID, "Use /book to start a booking.")
		return
	}
	if utf8.RuneCountInString(text) > maxSpecialRequests {
		b.reply(chatID, fmt.Sprintf("Special requests are limited to %d characters.", maxSpecialRequests))
		return
	}
	session.SetSpecialRequests(text)
	b.reply(chatID, "📝 Special requests saved.")
	b.renderGrid(chatID, 0, session)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.From == nil || cq.Message == nil {
		return
	}
	_ = b.answerCallback(cq.ID, "")

	data := cq.Data
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	msgID := cq.Message.MessageID
	b.remember(userID, chatID)

	kind, arg, _ := strings.Cut(data, ":")
	switch kind {
	case "noop":
	case "tpage":
		page, _ := strconv.Atoi(arg)
		b.startBooking(ctx, chatID, userID, page, msgID)
	case "turf":
		b.handleTurf(ctx, chatID, msgID, userID, arg)
	case "sport":
		b.handleSport(chatID, msgID, userID, arg)
	case "date":
		b.handleDate(ctx, chatID, msgID, userID, arg)
	case "slot":
		b.handleSlot(chatID, msgID, userID, arg)
	case "refresh":
		b.handleRefresh(ctx, chatID, msgID, userID)
	case "confirm":
		b.handleConfirm(ctx, chatID, msgID, userID)
	case "close":
		b.abort(userID)
		b.show(chatID, msgID, "Booking closed. /book to start again.", nil)
	case "back":
		b.handleBack(ctx, chatID, msgID, userID, arg)
	case "cbk":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return
		}
		b.cancelBooking(ctx, chatID, userID, id)
	}
}

func (b *Bot) startBooking(ctx context.Context, chatID, userID int64, page int, msgID ...int) {
	turfs, err := b.api.ListTurfs(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list turfs failed")
		b.reply(chatID, "Could not load turfs, please try again later.")
		return
	}
	if len(turfs) == 0 {
		b.reply(chatID, "No turfs are open for booking right now.")
		return
	}

	st := b.state.get(userID)
	st.Step = stepTurf
	st.Turf, st.Sport, st.Date = nil, nil, ""

	params := PaginationParams{ChatID: chatID, Page: page, Title: "🏟 Choose a turf:"}
	if len(msgID) > 0 {
		params.MessageID = msgID[0]
	}
	b.renderTurfPage(turfs, params)
}

func (b *Bot) handleTurf(ctx context.Context, chatID int64, msgID int, userID int64, arg string) {
	turfID, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		b.reply(chatID, "Unknown turf")
		return
	}
	turf, err := b.api.GetTurf(ctx, turfID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("turf_id", turfID).Msg("get turf failed")
		b.reply(chatID, "Could not load this turf, please pick another one.")
		return
	}
	if len(turf.Sports) == 0 {
		b.reply(chatID, "This turf has no sports open for booking.")
		return
	}

	st := b.state.get(userID)
	st.Turf, st.Sport, st.Date = turf, nil, ""
	st.Step = stepSport
	b.show(chatID, msgID, fmt.Sprintf("🏟 %s\nChoose a sport:", turf.Name), sportsKeyboard(turf))
}

func (b *Bot) handleSport(chatID int64, msgID int, userID int64, arg string) {
	st := b.state.get(userID)
	if st.Turf == nil {
		b.reply(chatID, "This menu is outdated, start again with /book")
		return
	}
	sportID, _ := strconv.ParseInt(arg, 10, 64)
	sp, ok := st.Turf.Sport(sportID)
	if !ok {
		b.reply(chatID, "Unknown sport")
		return
	}
	st.Sport = sp
	st.Step = stepDate
	b.showDates(chatID, msgID, st)
}

func (b *Bot) showDates(chatID int64, msgID int, st *userState) {
	text := fmt.Sprintf("🏟 %s · %s\nChoose a date:", st.Turf.Name, st.Sport.Name)
	b.show(chatID, msgID, text, datesKeyboard(b.today(), b.daysAhead))
}

func (b *Bot) handleDate(ctx context.Context, chatID int64, msgID int, userID int64, arg string) {
	st := b.state.get(userID)
	if st.Turf == nil || st.Sport == nil {
		b.reply(chatID, "This menu is outdated, start again with /book")
		return
	}
	date, err := time.ParseInLocation(booking.DateLayout, arg, time.Local)
	if err != nil {
		b.reply(chatID, "Invalid date")
		return
	}
	today := b.today()
	if date.Before(today) || !date.Before(today.AddDate(0, 0, b.daysAhead)) {
		b.reply(chatID, "This date can't be booked, please pick another one.")
		b.showDates(chatID, 0, st)
		return
	}

	st.Date = arg
	st.Step = stepGrid

	session := b.sessions.GetOrCreate(userID)
	scope := booking.Scope{TurfID: st.Turf.ID, TurfName: st.Turf.Name, Sport: *st.Sport, Date: date}
	if err := session.Selector.Open(ctx, scope); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("open slot grid")
	}
	b.renderGrid(chatID, msgID, session)
}

func (b *Bot) handleSlot(chatID int64, msgID int, userID int64, arg string) {
	session := b.activeSession(chatID, userID)
	if session == nil {
		return
	}
	value, err := strconv.Atoi(arg)
	if err != nil {
		return
	}
	session.Touch()
	if _, err := session.Selector.Click(value); errors.Is(err, booking.ErrConsumed) || errors.Is(err, booking.ErrNoScope) {
		b.reply(chatID, "This grid is closed, start again with /book")
		return
	}
	b.renderGrid(chatID, msgID, session)
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64, msgID int, userID int64) {
	session := b.activeSession(chatID, userID)
	if session == nil {
		return
	}
	session.Touch()
	sel := session.Selector
	if err := sel.Refresh(ctx, sel.Generation()); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("refresh slot grid")
	}
	b.renderGrid(chatID, msgID, session)
}

func (b *Bot) handleConfirm(ctx context.Context, chatID int64, msgID int, userID int64) {
	session := b.activeSession(chatID, userID)
	if session == nil {
		return
	}
	session.Touch()
	sel := session.Selector

	rec, err := sel.Submit(ctx, session.SpecialRequests())
	switch {
	case err == nil:
		b.show(chatID, msgID, confirmationText(rec), nil)
		return
	case errors.Is(err, booking.ErrSubmitInProgress):
		b.reply(chatID, "Your booking is already being submitted, please wait.")
		return
	case errors.Is(err, booking.ErrConsumed), errors.Is(err, booking.ErrNoScope):
		b.reply(chatID, "This grid is closed, start again with /book")
		return
	case booking.IsConflict(err):
		if rErr := sel.Refresh(ctx, sel.Generation()); rErr != nil {
			zerolog.Ctx(ctx).Warn().Err(rErr).Msg("refresh after conflict")
		}
	}
	b.renderGrid(chatID, msgID, session)
}

func (b *Bot) handleBack(ctx context.Context, chatID int64, msgID int, userID int64, arg string) {
	st := b.state.get(userID)
	switch {
	case arg == "dates" && st.Turf != nil && st.Sport != nil:
		st.Step = stepDate
		b.showDates(chatID, msgID, st)
	case arg == "sports" && st.Turf != nil:
		st.Step = stepSport
		b.show(chatID, msgID, fmt.Sprintf("🏟 %s\nChoose a sport:", st.Turf.Name), sportsKeyboard(st.Turf))
	default:
		b.sessions.Delete(userID)
		b.startBooking(ctx, chatID, userID, 0, msgID)
	}
}

func (b *Bot) handleMyBookings(ctx context.Context, chatID, userID int64) {
	rows, err := b.api.UserBookings(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("list user bookings failed")
		b.reply(chatID, "Could not load your bookings.")
		return
	}

	today := b.today().Format(booking.DateLayout)
	var sb strings.Builder
	var buttons [][]tgbotapi.InlineKeyboardButton
	for i := range rows {
		bk := &rows[i]
		if !bk.IsActive() || bk.Date < today {
			continue
		}
		sb.WriteString(bookingLine(bk) + "\n")
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Cancel #%d", bk.ID), fmt.Sprintf("cbk:%d", bk.ID)),
		))
	}
	if sb.Len() == 0 {
		b.reply(chatID, "You have no upcoming bookings.")
		return
	}

	msg := tgbotapi.NewMessage(chatID, "Your upcoming bookings:\n"+sb.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) cancelBooking(ctx context.Context, chatID, userID, bookingID int64) {
	_, err := b.api.CancelBooking(ctx, bookingID, userID)
	var se *turfapi.StatusError
	switch {
	case err == nil:
		b.reply(chatID, fmt.Sprintf("Booking #%d cancelled", bookingID))
	case errors.As(err, &se) && se.Message != "":
		b.reply(chatID, fmt.Sprintf("Could not cancel booking #%d: %s", bookingID, se.Message))
	default:
		zerolog.Ctx(ctx).Error().Err(err).Int64("booking_id", bookingID).Msg("cancel booking failed")
		b.reply(chatID, "Could not cancel the booking")
	}
}

// activeSession returns the user's open grid session or tells them it expired.
func (b *Bot) activeSession(chatID, userID int64) *booking.Session {
	session := b.sessions.Get(userID)
	if session == nil {
		b.state.reset(userID)
		b.reply(chatID, "Your booking session expired, start again with /book")
	}
	return session
}

func (b *Bot) renderGrid(chatID int64, msgID int, session *booking.Session) {
	snap := session.Selector.Snapshot()
	b.show(chatID, msgID, gridText(snap, session.SpecialRequests()), gridKeyboard(snap))
}

func (b *Bot) abort(userID int64) {
	b.sessions.Delete(userID)
	b.state.reset(userID)
}

func (b *Bot) remember(userID, chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chats[userID] = chatID
}

func (b *Bot) today() time.Time {
	now := b.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}

// show edits msgID in place, or sends a new message when msgID is 0.
func (b *Bot) show(chatID int64, msgID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if msgID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
		edit.ReplyMarkup = markup
		_, _ = b.tg.Send(edit)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	_, _ = b.tg.Send(msg)
}

func (b *Bot) reply(chatID int64, text string) {
	_, _ = b.tg.Send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) answerCallback(id, text string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, text))
	return err
}

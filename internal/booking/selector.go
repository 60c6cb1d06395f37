package booking

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"turfslot/internal/metrics"
	"turfslot/internal/models"
	"turfslot/internal/slots"
)

// DateLayout is the wire format of booking dates.
const DateLayout = "2006-01-02"

// Availability reports which slots are already taken for a turf, sport and date.
type Availability interface {
	GetBookedSlots(ctx context.Context, turfID, sportID int64, date time.Time) ([]int, error)
}

// Creator persists a booking request.
type Creator interface {
	CreateBooking(ctx context.Context, req models.SlotBookingRequest) (*models.SlotBooking, error)
}

// Scope is the turf, sport and date a selection is made for.
type Scope struct {
	TurfID   int64
	TurfName string
	Sport    models.Sport
	Date     time.Time
}

// Valid reports whether every part of the scope is set.
func (s Scope) Valid() bool {
	return s.TurfID > 0 && s.Sport.ID > 0 && !s.Date.IsZero()
}

// Snapshot is a consistent copy of a Selector's display state.
type Snapshot struct {
	Scope             Scope
	Generation        uint64
	Slots             []slots.TimeSlot
	Selected          []int
	Range             TimeRange
	HasRange          bool
	State             State
	SelectionError    error
	SubmitError       error
	AvailabilityError error
	Submitting        bool
	Confirmed         *models.SlotBooking
}

// Option configures a Selector.
type Option func(*Selector)

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zerolog.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.log = l
		}
	}
}

// WithFailClosed makes a failed availability fetch mark every slot as booked.
func WithFailClosed(failClosed bool) Option {
	return func(s *Selector) { s.failClosed = failClosed }
}

// ForUser sets the user the bookings are made for.
func ForUser(userID int64) Option {
	return func(s *Selector) { s.userID = userID }
}

// OnBookingComplete registers the callback invoked once per successful submit.
func OnBookingComplete(fn func(models.SlotBooking)) Option {
	return func(s *Selector) { s.onComplete = fn }
}

// OnClose registers the callback invoked when the selector is closed.
func OnClose(fn func()) Option {
	return func(s *Selector) { s.onClose = fn }
}

// Selector holds one contiguous slot selection and submits it as a booking.
type Selector struct {
	avail   Availability
	creator Creator
	log     *zerolog.Logger

	userID     int64
	failClosed bool
	onComplete func(models.SlotBooking)
	onClose    func()

	mu         sync.Mutex
	scope      Scope
	hasScope   bool
	gen        uint64
	day        slots.Day
	selected   []int
	timeRange  TimeRange
	hasRange   bool
	selErr     error
	submitErr  error
	availErr   error
	submitting bool
	confirmed  *models.SlotBooking
	closed     bool
}

// NewSelector creates a selector backed by avail and creator.
func NewSelector(avail Availability, creator Creator, opts ...Option) *Selector {
	nop := zerolog.Nop()
	s := &Selector{
		avail:   avail,
		creator: creator,
		log:     &nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetScope switches to a new turf, sport and date. The selection is cleared,
// the grid is regenerated with nothing booked and the new generation is returned.
func (s *Selector) SetScope(scope Scope) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.scope = scope
	s.hasScope = scope.Valid()
	s.day = slots.Generate(scope.Date, nil)
	s.resetSelectionLocked()
	s.selErr = nil
	s.submitErr = nil
	s.availErr = nil
	s.confirmed = nil
	s.closed = false
	return s.gen
}

// Open sets the scope and loads its booked slots.
func (s *Selector) Open(ctx context.Context, scope Scope) error {
	return s.Refresh(ctx, s.SetScope(scope))
}

// Refresh fetches booked slots for generation gen and applies them if gen is
// still current. Responses for an older generation are dropped.
func (s *Selector) Refresh(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if !s.hasScope {
		s.mu.Unlock()
		return ErrNoScope
	}
	scope := s.scope
	s.mu.Unlock()

	l := s.logger(ctx).With().
		Int64("turf_id", scope.TurfID).
		Int64("sport_id", scope.Sport.ID).
		Str("date", scope.Date.Format(DateLayout)).
		Uint64("generation", gen).
		Logger()

	if s.avail == nil {
		return s.applyBooked(&l, gen, nil, errors.New("availability source not configured"))
	}
	booked, err := s.avail.GetBookedSlots(ctx, scope.TurfID, scope.Sport.ID, scope.Date)
	return s.applyBooked(&l, gen, booked, err)
}

func (s *Selector) applyBooked(l *zerolog.Logger, gen uint64, booked []int, fetchErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		metrics.IncAvailabilityFetch("stale")
		l.Debug().Uint64("current_generation", s.gen).Msg("discarding stale availability response")
		return nil
	}

	set := slots.NewSet(booked...)
	if fetchErr != nil {
		metrics.IncAvailabilityFetch("error")
		set = slots.NewSet()
		if s.failClosed {
			set.AddRange(0, slots.LastValue)
			l.Warn().Err(fetchErr).Msg("availability fetch failed, blocking all slots")
		} else {
			l.Warn().Err(fetchErr).Msg("availability fetch failed, showing all slots as available")
		}
		s.availErr = NewError(KindAvailabilityFetch, "could not load booked slots", fetchErr)
	} else {
		metrics.IncAvailabilityFetch("ok")
		s.availErr = nil
	}

	// The selection is left alone; Submit refuses it while it covers a booked slot.
	s.day = slots.Generate(s.scope.Date, set)
	l.Debug().Int("booked", s.day.BookedCount()).Msg("availability applied")

	if fetchErr != nil {
		return s.availErr
	}
	return nil
}

// Click applies one slot click and returns the resulting action and selection.
func (s *Selector) Click(value int) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.confirmed != nil {
		return Outcome{}, ErrConsumed
	}
	if !s.hasScope {
		return Outcome{}, ErrNoScope
	}
	slot, ok := s.day.Slot(value)
	if !ok {
		return Outcome{}, ErrInvalidSlot
	}

	out, err := Transition(s.selected, slot)
	metrics.IncSlotClick(string(out.Action))
	if err != nil {
		s.selErr = err
		return out, err
	}

	s.selected = out.Selected
	s.timeRange, s.hasRange = NewTimeRange(s.selected, s.scope.Sport.RatePerHour)
	s.selErr = nil
	s.submitErr = nil
	return Outcome{Action: out.Action, Selected: clone(s.selected)}, nil
}

// Submit creates a booking for the current selection. The lock is not held
// while the creator runs.
func (s *Selector) Submit(ctx context.Context, specialRequests string) (*models.SlotBooking, error) {
	s.mu.Lock()
	switch {
	case s.closed || s.confirmed != nil:
		s.mu.Unlock()
		return nil, ErrConsumed
	case !s.hasScope:
		s.mu.Unlock()
		return nil, ErrNoScope
	case s.submitting:
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	case len(s.selected) == 0 || !s.hasRange:
		s.submitErr = NewError(KindValidation, "", ErrNoSelection)
		err := s.submitErr
		s.mu.Unlock()
		return nil, err
	case !s.day.IsRangeFree(s.timeRange.StartSlotValue, s.timeRange.EndSlotValue):
		s.submitErr = NewError(KindSlotUnavailable, MsgSelectionTaken, ErrSlotUnavailable)
		err := s.submitErr
		s.mu.Unlock()
		metrics.ObserveSubmission(string(KindSlotUnavailable), 0)
		return nil, err
	}

	req := buildRequest(s.scope, s.timeRange, specialRequests)
	req.UserID = s.userID
	s.submitting = true
	gen := s.gen
	creator := s.creator
	onComplete := s.onComplete
	s.mu.Unlock()

	l := s.logger(ctx).With().
		Int64("turf_id", req.TurfID).
		Int64("sport_id", req.SportID).
		Str("date", req.Date).
		Int("start_slot", req.StartSlotValue).
		Int("end_slot", req.EndSlotValue).
		Logger()

	started := time.Now()
	var (
		rec *models.SlotBooking
		err error
	)
	if creator == nil {
		err = errors.New("booking backend not configured")
	} else {
		rec, err = creator.CreateBooking(ctx, req)
		if err == nil && rec == nil {
			err = errors.New("empty booking response")
		}
	}

	s.mu.Lock()
	s.submitting = false
	// A scope change or Close while the request was in flight owns the state now.
	current := gen == s.gen
	if err != nil {
		be := submitError(err)
		if current {
			s.submitErr = be
		}
		s.mu.Unlock()

		metrics.ObserveSubmission(string(be.Kind), time.Since(started))
		if be.Kind == KindConflict {
			l.Info().Str("reason", be.Message).Msg("booking rejected by backend")
		} else {
			l.Error().Err(err).Msg("booking submission failed")
		}
		return nil, be
	}

	if current {
		s.confirmed = rec
		s.resetSelectionLocked()
		s.submitErr = nil
		s.selErr = nil
	}
	s.mu.Unlock()

	metrics.ObserveSubmission("success", time.Since(started))
	l.Info().Int64("booking_id", rec.ID).Str("reference", rec.Reference).Bool("scope_changed", !current).Msg("booking created")
	if onComplete != nil {
		onComplete(*rec)
	}
	return rec, nil
}

// Close discards all selection state and notifies the close callback.
func (s *Selector) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.hasScope = false
	s.scope = Scope{}
	s.day = slots.Day{}
	s.resetSelectionLocked()
	s.selErr = nil
	s.submitErr = nil
	s.availErr = nil
	onClose := s.onClose
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
}

// Snapshot returns a copy of the current display state.
func (s *Selector) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Snapshot{
		Scope:             s.scope,
		Generation:        s.gen,
		Slots:             append([]slots.TimeSlot(nil), s.day.Slots...),
		Selected:          clone(s.selected),
		Range:             s.timeRange,
		HasRange:          s.hasRange,
		State:             StateOf(s.selected),
		SelectionError:    s.selErr,
		SubmitError:       s.submitErr,
		AvailabilityError: s.availErr,
		Submitting:        s.submitting,
	}
	if s.confirmed != nil {
		rec := *s.confirmed
		out.Confirmed = &rec
	}
	return out
}

func (s *Selector) Slots() []slots.TimeSlot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]slots.TimeSlot(nil), s.day.Slots...)
}

func (s *Selector) Selected() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.selected)
}

// Range returns the derived time range, if a selection exists.
func (s *Selector) Range() (TimeRange, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeRange, s.hasRange
}

func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StateOf(s.selected)
}

func (s *Selector) Scope() Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

func (s *Selector) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *Selector) SelectionError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selErr
}

func (s *Selector) SubmitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitErr
}

func (s *Selector) AvailabilityError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.availErr
}

// Confirmed returns the booking created by the last successful submit.
func (s *Selector) Confirmed() (*models.SlotBooking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmed == nil {
		return nil, false
	}
	rec := *s.confirmed
	return &rec, true
}

func (s *Selector) resetSelectionLocked() {
	s.selected = nil
	s.timeRange = TimeRange{}
	s.hasRange = false
}

func (s *Selector) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.log
}

func buildRequest(scope Scope, r TimeRange, specialRequests string) models.SlotBookingRequest {
	return models.SlotBookingRequest{
		TurfID:          scope.TurfID,
		SportID:         scope.Sport.ID,
		Date:            scope.Date.Format(DateLayout),
		StartTime:       r.StartTime,
		EndTime:         r.EndTime,
		Duration:        r.Duration,
		StartSlotValue:  r.StartSlotValue,
		EndSlotValue:    r.EndSlotValue,
		TotalPrice:      r.TotalPrice,
		Status:          models.StatusConfirmed,
		SpecialRequests: strings.TrimSpace(specialRequests),
		SportType:       scope.Sport.Type,
	}
}

// submitError keeps the backend's message verbatim, or falls back to the default.
func submitError(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		msg := be.Message
		if strings.TrimSpace(msg) == "" {
			msg = DefaultSubmitMessage
		}
		return &Error{Kind: be.Kind, Message: msg, Err: be.Err}
	}
	return &Error{Kind: KindGeneric, Message: DefaultSubmitMessage, Err: err}
}

// Package slots models a day as 48 fixed half-hour slots.
package slots

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// SlotsPerDay is 24 hours * 2 slots per hour.
	SlotsPerDay = 48
	// SlotMinutes is the length of one slot.
	SlotMinutes = 30
	// LastValue is the index of the final slot of the day.
	LastValue = SlotsPerDay - 1
	// DayEnd is the end label of the final slot; it never wraps to "00:00".
	DayEnd = "23:59"
)

// TimeSlot is one bookable half-hour unit.
type TimeSlot struct {
	StartTime   string `json:"startTime"` // "10:00"
	EndTime     string `json:"endTime"`   // "10:30"
	Value       int    `json:"value"`
	IsBooked    bool   `json:"isBooked"`
	IsAvailable bool   `json:"isAvailable"`
}

// Day is the full slot grid for a date.
type Day struct {
	Date  time.Time
	Slots []TimeSlot
}

// Set is a set of slot values.
type Set map[int]struct{}

// NewSet builds a set from values, ignoring out-of-range entries.
func NewSet(values ...int) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts a value if it is a valid slot index.
func (s Set) Add(v int) {
	if v < 0 || v > LastValue {
		return
	}
	s[v] = struct{}{}
}

// AddRange inserts every value in [start, end].
func (s Set) AddRange(start, end int) {
	for v := start; v <= end; v++ {
		s.Add(v)
	}
}

// Has reports whether v is in the set.
func (s Set) Has(v int) bool {
	_, ok := s[v]
	return ok
}

// Values returns the set contents in ascending order.
func (s Set) Values() []int {
	out := make([]int, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Generate builds the 48 slots for date and marks the booked ones.
// A nil set means nothing is booked.
func Generate(date time.Time, booked Set) Day {
	out := make([]TimeSlot, 0, SlotsPerDay)
	for hour := 0; hour < 24; hour++ {
		for half := 0; half < 2; half++ {
			value := hour*2 + half
			start, end, _ := Bounds(value)
			isBooked := booked.Has(value)
			out = append(out, TimeSlot{
				StartTime:   start,
				EndTime:     end,
				Value:       value,
				IsBooked:    isBooked,
				IsAvailable: !isBooked,
			})
		}
	}
	return Day{
		Date:  time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location()),
		Slots: out,
	}
}

// Bounds returns the wall-clock start and end labels of a slot.
func Bounds(value int) (start, end string, err error) {
	if value < 0 || value > LastValue {
		return "", "", fmt.Errorf("%w: %d", ErrOutOfRange, value)
	}
	hour := value / 2
	if value%2 == 0 {
		return clock(hour, 0), clock(hour, 30), nil
	}
	if value == LastValue {
		return clock(hour, 30), DayEnd, nil
	}
	return clock(hour, 30), clock(hour+1, 0), nil
}

// ValueOf converts a slot start label ("HH:MM") to its slot value.
func ValueOf(label string) (int, error) {
	parts := strings.Split(label, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", label)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour: %s", label)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || (minute != 0 && minute != 30) {
		return 0, fmt.Errorf("invalid minute: %s", label)
	}
	return hour*2 + minute/30, nil
}

// ValidateRange checks that [start, end] is a well-formed slot range.
func ValidateRange(start, end int) error {
	if start < 0 || start > LastValue {
		return fmt.Errorf("%w: start %d", ErrOutOfRange, start)
	}
	if end < 0 || end > LastValue {
		return fmt.Errorf("%w: end %d", ErrOutOfRange, end)
	}
	if start > end {
		return fmt.Errorf("start slot %d is after end slot %d", start, end)
	}
	return nil
}

// Slot returns the slot with the given value.
func (d Day) Slot(value int) (TimeSlot, bool) {
	if value < 0 || value >= len(d.Slots) {
		return TimeSlot{}, false
	}
	return d.Slots[value], true
}

// BookedCount returns how many slots are booked.
func (d Day) BookedCount() int {
	n := 0
	for _, s := range d.Slots {
		if s.IsBooked {
			n++
		}
	}
	return n
}

// IsRangeFree checks that every slot in [start, end] exists and is available.
func (d Day) IsRangeFree(start, end int) bool {
	if ValidateRange(start, end) != nil {
		return false
	}
	for v := start; v <= end; v++ {
		s, ok := d.Slot(v)
		if !ok || !s.IsAvailable {
			return false
		}
	}
	return true
}

// FreeRuns returns the maximal runs of consecutive available slots.
func (d Day) FreeRuns() [][]TimeSlot {
	var runs [][]TimeSlot
	var current []TimeSlot

	for _, s := range d.Slots {
		if !s.IsAvailable {
			if len(current) > 0 {
				runs = append(runs, current)
				current = nil
			}
			continue
		}
		current = append(current, s)
	}
	if len(current) > 0 {
		runs = append(runs, current)
	}
	return runs
}

// FormatDuration formats hours like "1.5 h".
func FormatDuration(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64) + " h"
}

func clock(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

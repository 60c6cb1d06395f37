// Package booking implements contiguous slot selection and booking submission.
package booking

import (
	"fmt"

	"turfslot/internal/slots"
)

// State is the selection state of a Selector.
type State string

const (
	StateEmpty    State = "empty"
	StateHasRange State = "has_range"
)

// ClickKind classifies a click relative to the current selection.
type ClickKind string

const (
	ClickBooked     ClickKind = "booked"
	ClickSameSingle ClickKind = "same_single"
	ClickNext       ClickKind = "next"
	ClickOther      ClickKind = "other"
)

// Action is what a click does to the selection.
type Action string

const (
	ActionReject  Action = "reject"
	ActionStart   Action = "start"
	ActionClear   Action = "clear"
	ActionAppend  Action = "append"
	ActionRestart Action = "restart"
)

// transitions maps state and click kind to an action. Missing entries cannot occur.
var transitions = map[State]map[ClickKind]Action{
	StateEmpty: {
		ClickBooked: ActionReject,
		ClickOther:  ActionStart,
	},
	StateHasRange: {
		ClickBooked:     ActionReject,
		ClickSameSingle: ActionClear,
		ClickNext:       ActionAppend,
		ClickOther:      ActionRestart,
	},
}

// Outcome is the result of applying one click.
type Outcome struct {
	Action   Action
	Selected []int
}

// StateOf returns the state for a selection.
func StateOf(selected []int) State {
	if len(selected) == 0 {
		return StateEmpty
	}
	return StateHasRange
}

// Classify determines the click kind of slot against selected.
func Classify(selected []int, slot slots.TimeSlot) ClickKind {
	if slot.IsBooked {
		return ClickBooked
	}
	if len(selected) == 0 {
		return ClickOther
	}
	last := selected[len(selected)-1]
	switch {
	case len(selected) == 1 && slot.Value == last:
		return ClickSameSingle
	case slot.Value == last+1:
		return ClickNext
	default:
		// Reclicking the last slot of a longer run restarts from it.
		return ClickOther
	}
}

// Lookup returns the table entry for a state and click kind.
func Lookup(state State, kind ClickKind) (Action, bool) {
	row, ok := transitions[state]
	if !ok {
		return "", false
	}
	action, ok := row[kind]
	return action, ok
}

// Transition applies a click on slot to selected and returns the new selection.
// The input slice is never modified.
func Transition(selected []int, slot slots.TimeSlot) (Outcome, error) {
	state := StateOf(selected)
	kind := Classify(selected, slot)

	action, ok := Lookup(state, kind)
	if !ok {
		return Outcome{}, fmt.Errorf("no transition from %s on %s", state, kind)
	}

	out := Outcome{Action: action}
	switch action {
	case ActionReject:
		out.Selected = clone(selected)
		return out, NewError(KindSlotUnavailable, "", ErrSlotUnavailable)
	case ActionStart, ActionRestart:
		out.Selected = []int{slot.Value}
	case ActionClear:
		out.Selected = []int{}
	case ActionAppend:
		out.Selected = append(clone(selected), slot.Value)
	}
	return out, nil
}

// TimeRange is the contiguous span covered by a non-empty selection.
type TimeRange struct {
	StartTime      string  `json:"startTime"`
	EndTime        string  `json:"endTime"`
	Duration       float64 `json:"duration"` // hours
	TotalPrice     float64 `json:"totalPrice"`
	StartSlotValue int     `json:"start_slot_value"`
	EndSlotValue   int     `json:"end_slot_value"`
}

// SlotCount returns the number of slots in the range.
func (r TimeRange) SlotCount() int {
	return r.EndSlotValue - r.StartSlotValue + 1
}

// NewTimeRange derives the range and price for selected at ratePerHour.
func NewTimeRange(selected []int, ratePerHour float64) (TimeRange, bool) {
	if len(selected) == 0 {
		return TimeRange{}, false
	}
	first, last := selected[0], selected[len(selected)-1]
	start, _, err := slots.Bounds(first)
	if err != nil {
		return TimeRange{}, false
	}
	_, end, err := slots.Bounds(last)
	if err != nil {
		return TimeRange{}, false
	}

	duration := float64(len(selected)) * float64(slots.SlotMinutes) / 60
	return TimeRange{
		StartTime:      start,
		EndTime:        end,
		Duration:       duration,
		TotalPrice:     duration * ratePerHour,
		StartSlotValue: first,
		EndSlotValue:   last,
	}, true
}

func clone(v []int) []int {
	out := make([]int, len(v))
	copy(out, v)
	return out
}

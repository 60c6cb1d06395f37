package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"turfslot/internal/booking"
	"turfslot/internal/models"
	"turfslot/internal/slots"
)

const (
	gridColumns  = 6
	dateColumns  = 2
	markSelected = "✅"
	markBooked   = "❌"
)

// FormatPrice renders an amount in rupees, dropping zero paise.
func FormatPrice(amount float64) string {
	if amount == float64(int64(amount)) {
		return "₹" + strconv.FormatInt(int64(amount), 10)
	}
	return "₹" + strconv.FormatFloat(amount, 'f', 2, 64)
}

func sportsKeyboard(turf *models.Turf) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(turf.Sports)+1)
	for _, sp := range turf.Sports {
		label := fmt.Sprintf("%s · %s/h", sp.Name, FormatPrice(sp.RatePerHour))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("sport:%d", sp.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:turfs"),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// datesKeyboard offers days consecutive dates starting at from.
func datesKeyboard(from time.Time, days int) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, days/dateColumns+2)
	row := make([]tgbotapi.InlineKeyboardButton, 0, dateColumns)
	for i := 0; i < days; i++ {
		d := from.AddDate(0, 0, i)
		label := d.Format("Mon 02 Jan")
		if i == 0 {
			label = "Today"
		} else if i == 1 {
			label = "Tomorrow"
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "date:"+d.Format(booking.DateLayout)))
		if len(row) == dateColumns {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, dateColumns)
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:sports"),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func slotLabel(ts slots.TimeSlot, selected bool) string {
	switch {
	case ts.IsBooked:
		return markBooked + ts.StartTime
	case selected:
		return markSelected + ts.StartTime
	default:
		return ts.StartTime
	}
}

// gridKeyboard lays the day out as 8 rows of 6 slots followed by the actions.
func gridKeyboard(snap booking.Snapshot) *tgbotapi.InlineKeyboardMarkup {
	selected := slots.NewSet(snap.Selected...)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, slots.SlotsPerDay/gridColumns+2)
	for start := 0; start < len(snap.Slots); start += gridColumns {
		end := start + gridColumns
		if end > len(snap.Slots) {
			end = len(snap.Slots)
		}
		row := make([]tgbotapi.InlineKeyboardButton, 0, gridColumns)
		for _, ts := range snap.Slots[start:end] {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(
				slotLabel(ts, selected.Has(ts.Value)),
				fmt.Sprintf("slot:%d", ts.Value),
			))
		}
		rows = append(rows, row)
	}

	confirm := "✔️ Confirm"
	if snap.HasRange {
		confirm = fmt.Sprintf("✔️ Confirm %s", FormatPrice(snap.Range.TotalPrice))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(confirm, "confirm"),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:dates"),
			tgbotapi.NewInlineKeyboardButtonData("✖️ Close", "close"),
		),
	)
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

// gridText is the summary shown above the slot grid.
func gridText(snap booking.Snapshot, specialRequests string) string {
	var sb strings.Builder
	sc := snap.Scope
	sb.WriteString(fmt.Sprintf("🏟 %s · %s\n", sc.TurfName, sc.Sport.Name))
	sb.WriteString(fmt.Sprintf("📅 %s · %s/h\n", sc.Date.Format("Mon, 02 Jan 2006"), FormatPrice(sc.Sport.RatePerHour)))

	if snap.HasRange {
		r := snap.Range
		sb.WriteString(fmt.Sprintf("🕒 %s - %s (%s) · %s\n",
			r.StartTime, r.EndTime, slots.FormatDuration(r.Duration), FormatPrice(r.TotalPrice)))
	} else {
		sb.WriteString("Tap a start slot, then the following slots to extend the booking.\n")
	}
	if specialRequests != "" {
		sb.WriteString("📝 " + specialRequests + "\n")
	}

	for _, err := range []error{snap.SubmitError, snap.SelectionError, snap.AvailabilityError} {
		if err != nil {
			sb.WriteString("⚠️ " + booking.MessageOf(err) + "\n")
			break
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func confirmationText(rec *models.SlotBooking) string {
	var sb strings.Builder
	sb.WriteString("✅ Booking confirmed!\n\n")
	sb.WriteString(fmt.Sprintf("Reference: %s\n", rec.Reference))
	sb.WriteString(fmt.Sprintf("%s · %s\n", rec.TurfName, rec.SportName))
	sb.WriteString(fmt.Sprintf("%s, %s - %s (%s)\n", rec.Date, rec.StartTime, rec.EndTime, slots.FormatDuration(rec.Duration)))
	sb.WriteString(fmt.Sprintf("Total: %s", FormatPrice(rec.TotalPrice)))
	if rec.SpecialRequests != "" {
		sb.WriteString("\nNotes: " + rec.SpecialRequests)
	}
	return sb.String()
}

func bookingLine(bk *models.SlotBooking) string {
	name := bk.TurfName
	if bk.SportName != "" {
		name += " · " + bk.SportName
	}
	return fmt.Sprintf("#%d %s %s-%s | %s | %s | %s",
		bk.ID, bk.Date, bk.StartTime, bk.EndTime, name, FormatPrice(bk.TotalPrice), models.StatusText(bk.Status))
}

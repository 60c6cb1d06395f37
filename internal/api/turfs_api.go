package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"turfslot/internal/catalog"
	"turfslot/internal/metrics"
	"turfslot/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleListTurfs returns the active turfs with their sports.
// GET /api/v1/turfs
func (s *HTTPServer) handleListTurfs(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_turfs")

	turfs, err := s.catalog.ListTurfs(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list turfs failed")
		writeError(w, http.StatusInternalServerError, "failed to load turfs")
		return
	}
	writeData(w, http.StatusOK, "", turfs)
}

// handleGetTurf returns a single turf.
// GET /api/v1/turfs/{turfID}
func (s *HTTPServer) handleGetTurf(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_turf")

	turfID, err := pathID(r, "turfID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid turf id")
		return
	}

	turf, err := s.catalog.GetTurf(r.Context(), turfID)
	if errors.Is(err, catalog.ErrTurfNotFound) {
		writeError(w, http.StatusNotFound, "turf not found")
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Int64("turf_id", turfID).Msg("get turf failed")
		writeError(w, http.StatusInternalServerError, "failed to load turf")
		return
	}
	writeData(w, http.StatusOK, "", turf)
}

// handleExportDay streams an xlsx workbook with a turf's bookings for ?date=.
// GET /api/v1/turfs/{turfID}/bookings/export
func (s *HTTPServer) handleExportDay(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("export_day")
	l := zerolog.Ctx(r.Context())

	turfID, err := pathID(r, "turfID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid turf id")
		return
	}
	date := r.URL.Query().Get("date")
	if _, err := time.Parse(dateLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	turf, err := s.catalog.GetTurf(r.Context(), turfID)
	if errors.Is(err, catalog.ErrTurfNotFound) {
		writeError(w, http.StatusNotFound, "turf not found")
		return
	}
	if err != nil {
		l.Error().Err(err).Int64("turf_id", turfID).Msg("get turf failed")
		writeError(w, http.StatusInternalServerError, "failed to load turf")
		return
	}

	rows, err := s.store.ListBookingsOnDate(r.Context(), turfID, date)
	if err != nil {
		l.Error().Err(err).Int64("turf_id", turfID).Str("date", date).Msg("list bookings for export failed")
		writeError(w, http.StatusInternalServerError, "failed to load bookings")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteDayBookings(&buf, *turf, date, rows); err != nil {
		l.Error().Err(err).Msg("render export failed")
		writeError(w, http.StatusInternalServerError, "failed to render export")
		return
	}

	name := turf.Slug
	if name == "" {
		name = fmt.Sprintf("turf-%d", turf.ID)
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s.xlsx"`, name, date))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

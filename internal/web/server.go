// Package web serves the booking engine as a JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/pivo/internal/booking"
	"github.com/example/pivo/internal/domain/reservation"
)

type Server struct {
	Engine *booking.Engine
	Log    *zap.Logger
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("POST /reservations", s.handleCreate)
	mux.HandleFunc("GET /reservations", s.handleList)
	mux.HandleFunc("GET /reservations/total", s.handleTotal)
	mux.HandleFunc("GET /reservations/{id}", s.handleDetails)
	mux.HandleFunc("PATCH /reservations/{id}", s.handleEdit)
	mux.HandleFunc("POST /reservations/{id}/confirm", s.transition(s.Engine.ConfirmReservation))
	mux.HandleFunc("POST /reservations/{id}/cancel", s.transition(s.Engine.CancelReservation))
	mux.HandleFunc("POST /reservations/{id}/complete", s.transition(s.Engine.CompleteReservation))
	mux.HandleFunc("DELETE /reservations/{id}", s.handleRemove)
	mux.HandleFunc("GET /restaurants/{id}", s.handleRestaurant)

	return s.logRequests(mux)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in createBody
	if !s.decode(w, r, &in) {
		return
	}
	date, err := parseDate(in.Date, s.Engine.Rules().Loc())
	if err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.Engine.CreateReservation(r.Context(), booking.CreateRequest{
		RestaurantID:    in.RestaurantID,
		Date:            date,
		Time:            in.Time,
		Guests:          in.NumberOfGuests,
		SpecialRequests: in.SpecialRequests,
		Items:           selections(in.Items),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toReservationJSON(res))
}

func (s *Server) filterFrom(r *http.Request) (booking.Filter, error) {
	q := r.URL.Query()
	f := booking.Filter{
		RestaurantID: strings.TrimSpace(q.Get("restaurant")),
		Query:        q.Get("q"),
	}
	for _, raw := range q["status"] {
		for _, part := range strings.Split(raw, ",") {
			st, err := reservation.ParseStatus(strings.TrimSpace(part))
			if err != nil {
				return booking.Filter{}, badRequest(err.Error())
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	scope, err := booking.ParseScope(q.Get("scope"))
	if err != nil {
		return booking.Filter{}, badRequest(err.Error())
	}
	f.Scope = scope
	return f, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	list := s.Engine.ListReservations(f)
	out := make([]reservationJSON, 0, len(list))
	for _, res := range list {
		out = append(out, toReservationJSON(res))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTotal(w http.ResponseWriter, r *http.Request) {
	f, err := s.filterFrom(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, totalJSON{
		Count: len(s.Engine.ListReservations(f)),
		Total: s.Engine.TotalAmount(r.Context(), f),
	})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	d, err := s.Engine.Details(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailsJSON(d))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	var in editBody
	if !s.decode(w, r, &in) {
		return
	}
	var c booking.Changes
	if in.Date != nil {
		d, err := parseDate(*in.Date, s.Engine.Rules().Loc())
		if err != nil {
			s.writeError(w, err)
			return
		}
		c.Date = &d
	}
	c.Time = in.Time
	c.Guests = in.NumberOfGuests
	c.SpecialRequests = in.SpecialRequests
	if in.Items != nil {
		sel := selections(*in.Items)
		c.Items = &sel
	}
	res, err := s.Engine.EditReservation(r.Context(), r.PathValue("id"), c)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationJSON(res))
}

func (s *Server) transition(op func(context.Context, string) (reservation.Reservation, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := op(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReservationJSON(res))
	}
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Engine.RemoveReservation(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestaurant(w http.ResponseWriter, r *http.Request) {
	rest, err := s.Engine.Restaurant(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRestaurantJSON(rest))
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, badRequest("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(reservation.DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, &reservation.ValidationError{Field: reservation.FieldDate, Reason: "date must be YYYY-MM-DD"}
	}
	return d, nil
}

func selections(in []selectionJSON) []reservation.Selection {
	out := make([]reservation.Selection, 0, len(in))
	for _, s := range in {
		q := s.Quantity
		if q == 0 {
			q = 1
		}
		out = append(out, reservation.Selection{MenuItemID: s.MenuItemID, Quantity: q})
	}
	return out
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorJSON{Error: err.Error()}
	status := http.StatusInternalServerError

	var ve *reservation.ValidationError
	var re *requestError
	switch {
	case errors.As(err, &re):
		status = http.StatusBadRequest
	case errors.As(err, &ve):
		status = http.StatusUnprocessableEntity
		body.Field = ve.Field
	case errors.Is(err, reservation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, reservation.ErrInvalidTransition), errors.Is(err, reservation.ErrStateConflict):
		status = http.StatusConflict
	default:
		s.logger().Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func (s *Server) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger().Debug("http",
			zap.String("method", r.Method), zap.String("path", r.URL.Path),
			zap.Int("status", rec.status), zap.Duration("took", time.Since(start)))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

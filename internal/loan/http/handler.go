package loanhttp

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/trancheflow/trancheflow/internal/loan"
	"github.com/trancheflow/trancheflow/internal/platform/httpx"
	"github.com/trancheflow/trancheflow/jobs"
)

// Handler wires the loan API endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *loan.Service
	store     *loan.SnapshotStore
	jobs      *jobs.Client
	validator *validator.Validate
	searchCap int
}

// NewHandler constructs the handler. searchCap bounds the payment search
// range a request may ask for; zero keeps the engine default.
func NewHandler(logger *slog.Logger, service *loan.Service, store *loan.SnapshotStore, jobsClient *jobs.Client, searchCap int) *Handler {
	if searchCap <= 0 {
		searchCap = loan.DefaultSearchUpperBound
	}
	return &Handler{
		logger:    logger,
		service:   service,
		store:     store,
		jobs:      jobsClient,
		validator: validator.New(),
		searchCap: searchCap,
	}
}

// MountRoutes registers routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/loan", func(r chi.Router) {
		r.Post("/schedule", h.buildSchedule)
		r.Post("/schedule/export", h.exportSchedule)
		r.Post("/target-payment", h.targetPayment)
		r.Post("/sensitivity", h.sensitivity)
		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/schedule", h.submitSchedule)
			r.Post("/target-payment", h.submitSearch)
			r.Get("/{id}", h.getSnapshot)
			r.Get("/{id}/export", h.exportSnapshot)
		})
	})
}

func (h *Handler) buildSchedule(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSchedule(w, r)
	if !ok {
		return
	}
	result, err := h.service.BuildSchedule(r.Context(), req)
	if err != nil {
		h.respondInputError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) exportSchedule(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSchedule(w, r)
	if !ok {
		return
	}
	result, err := h.service.BuildSchedule(r.Context(), req)
	if err != nil {
		h.respondInputError(w, err)
		return
	}
	h.writeScheduleCSV(w, result.Schedule)
}

func (h *Handler) targetPayment(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSearch(w, r)
	if !ok {
		return
	}
	result, err := h.service.MinimumPayment(r.Context(), req)
	if err != nil {
		h.respondInputError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) sensitivity(w http.ResponseWriter, r *http.Request) {
	var dto sensitivityRequest
	if !h.decode(w, r, &dto) {
		return
	}
	req, err := dto.toDomain()
	if err != nil {
		h.respondInputError(w, err)
		return
	}
	outcomes, err := h.service.PaymentSensitivity(r.Context(), req)
	if err != nil {
		h.respondInputError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func (h *Handler) submitSchedule(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSchedule(w, r)
	if !ok {
		return
	}
	// Validate up front so a snapshot never holds a request the worker is
	// guaranteed to fail on.
	if err := req.RunInput().Validate(); err != nil {
		h.respondInputError(w, err)
		return
	}
	snap, err := h.store.Create(r.Context(), loan.KindSchedule, req)
	if err != nil {
		h.respondServerError(w, "create snapshot", err)
		return
	}
	if _, err := h.jobs.EnqueueScheduleCompute(r.Context(), snap.ID); err != nil {
		h.respondServerError(w, "enqueue schedule", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, toSnapshotResponse(snap))
}

func (h *Handler) submitSearch(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSearch(w, r)
	if !ok {
		return
	}
	if err := req.Schedule.RunInput().Validate(); err != nil {
		h.respondInputError(w, err)
		return
	}
	snap, err := h.store.Create(r.Context(), loan.KindTargetPayment, req)
	if err != nil {
		h.respondServerError(w, "create snapshot", err)
		return
	}
	if _, err := h.jobs.EnqueueTargetPaymentSearch(r.Context(), snap.ID); err != nil {
		h.respondServerError(w, "enqueue search", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, toSnapshotResponse(snap))
}

func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) exportSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadSnapshot(w, r)
	if !ok {
		return
	}
	if snap.Kind != loan.KindSchedule || snap.Status != loan.SnapshotReady {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "only ready schedule snapshots can be exported")
		return
	}
	var result loan.RunResult
	if err := json.Unmarshal(snap.Result, &result); err != nil {
		h.respondServerError(w, "decode snapshot result", err)
		return
	}
	h.writeScheduleCSV(w, result.Schedule)
}

func (h *Handler) loadSnapshot(w http.ResponseWriter, r *http.Request) (loan.Snapshot, bool) {
	id := chi.URLParam(r, "id")
	snap, err := h.store.Get(r.Context(), id)
	if errors.Is(err, loan.ErrSnapshotNotFound) {
		httpx.RespondError(w, fmt.Errorf("%w: snapshot %s", httpx.ErrNotFound, id))
		return loan.Snapshot{}, false
	}
	if err != nil {
		h.respondServerError(w, "load snapshot", err)
		return loan.Snapshot{}, false
	}
	return snap, true
}

func (h *Handler) decodeSchedule(w http.ResponseWriter, r *http.Request) (loan.ScheduleRequest, bool) {
	var dto scheduleRequest
	if !h.decode(w, r, &dto) {
		return loan.ScheduleRequest{}, false
	}
	req, err := dto.toDomain()
	if err != nil {
		h.respondInputError(w, err)
		return loan.ScheduleRequest{}, false
	}
	return req, true
}

func (h *Handler) decodeSearch(w http.ResponseWriter, r *http.Request) (loan.SearchRequest, bool) {
	var dto searchRequest
	if !h.decode(w, r, &dto) {
		return loan.SearchRequest{}, false
	}
	if dto.UpperBound > h.searchCap {
		h.respondInputError(w, fmt.Errorf("upper_bound exceeds the configured cap of %d", h.searchCap))
		return loan.SearchRequest{}, false
	}
	if dto.UpperBound == 0 {
		dto.UpperBound = h.searchCap
	}
	req, err := dto.toDomain()
	if err != nil {
		h.respondInputError(w, err)
		return loan.SearchRequest{}, false
	}
	return req, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dto any) bool {
	if err := httpx.DecodeJSON(r, dto); err != nil {
		h.respondInputError(w, fmt.Errorf("malformed JSON body: %v", err))
		return false
	}
	if err := h.validator.Struct(dto); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) && len(fields) > 0 {
			h.respondInputError(w, fmt.Errorf("field %s failed %s validation", fields[0].Namespace(), fields[0].Tag()))
			return false
		}
		h.respondInputError(w, err)
		return false
	}
	return true
}

func (h *Handler) writeScheduleCSV(w http.ResponseWriter, records []loan.PeriodRecord) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=loan_schedule.csv")
	writer := csv.NewWriter(w)
	for _, row := range loan.ExportScheduleRows(records) {
		if err := writer.Write(row); err != nil {
			break
		}
	}
	writer.Flush()
}

func (h *Handler) respondInputError(w http.ResponseWriter, err error) {
	httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
}

func (h *Handler) respondServerError(w http.ResponseWriter, msg string, err error) {
	if h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

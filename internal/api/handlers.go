package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/julianstephens/daybook/internal/calendar"
	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/service"
)

type Handler struct {
	Svc *service.Service
}

func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := h.Svc.ListHabits(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

func (h *Handler) AddHabit(w http.ResponseWriter, r *http.Request) {
	var spec service.HabitSpec
	if !decodeBody(w, r, &spec) {
		return
	}
	habit, err := h.Svc.AddHabit(r.Context(), ownerFromContext(r.Context()), spec)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

func (h *Handler) ToggleHabit(w http.ResponseWriter, r *http.Request) {
	res, err := h.Svc.ToggleHabit(r.Context(), ownerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DeleteHabit(r.Context(), ownerFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ResetHabits(w http.ResponseWriter, r *http.Request) {
	n, err := h.Svc.ResetHabits(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"reset": n})
}

func periodKind(w http.ResponseWriter, r *http.Request) (models.PeriodKind, bool) {
	kind, err := models.ParsePeriodKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return kind, true
}

// LoadPeriod loads the period containing ?date= (today when absent).
func (h *Handler) LoadPeriod(w http.ResponseWriter, r *http.Request) {
	kind, ok := periodKind(w, r)
	if !ok {
		return
	}
	owner := ownerFromContext(r.Context())
	anchor := h.Svc.Now()
	if d := strings.TrimSpace(r.URL.Query().Get("date")); d != "" {
		t, err := h.Svc.ParseDate(r.Context(), owner, d)
		if err != nil {
			writeError(w, r, err)
			return
		}
		anchor = t
	}
	view, err := h.Svc.LoadPeriod(r.Context(), owner, kind, anchor)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) LoadPeriodKey(w http.ResponseWriter, r *http.Request) {
	kind, ok := periodKind(w, r)
	if !ok {
		return
	}
	view, err := h.Svc.LoadPeriodKey(r.Context(), ownerFromContext(r.Context()), kind, chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type mutateReq struct {
	service.Mutation
	Confirmed bool `json:"confirmed"`
}

func (h *Handler) MutatePriorities(w http.ResponseWriter, r *http.Request) {
	kind, ok := periodKind(w, r)
	if !ok {
		return
	}
	var req mutateReq
	if !decodeBody(w, r, &req) {
		return
	}
	if c, err := strconv.ParseBool(r.URL.Query().Get("confirm")); err == nil && c {
		req.Confirmed = true
	}
	items, err := h.Svc.MutatePriorities(r.Context(), ownerFromContext(r.Context()), kind, chi.URLParam(r, "key"), req.Mutation, req.Confirmed)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// NavigatePeriod answers ?dir=prev|next with the neighbouring key.
func (h *Handler) NavigatePeriod(w http.ResponseWriter, r *http.Request) {
	kind, ok := periodKind(w, r)
	if !ok {
		return
	}
	var dir calendar.Direction
	switch r.URL.Query().Get("dir") {
	case "prev", "back", "backward":
		dir = calendar.Backward
	case "next", "forward":
		dir = calendar.Forward
	default:
		writeJSONError(w, http.StatusBadRequest, "dir must be prev or next")
		return
	}
	key, err := h.Svc.NavigatePeriod(r.Context(), ownerFromContext(r.Context()), kind, chi.URLParam(r, "key"), dir)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}

func (h *Handler) ImportUnfinished(w http.ResponseWriter, r *http.Request) {
	kind, ok := periodKind(w, r)
	if !ok {
		return
	}
	n, err := h.Svc.ImportUnfinished(r.Context(), ownerFromContext(r.Context()), kind, chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}

func (h *Handler) MonthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Svc.MonthStatus(r.Context(), ownerFromContext(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) DayBlocks(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.Svc.DayBlocks(r.Context(), ownerFromContext(r.Context()), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Svc.Settings(r.Context(), ownerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) SetTimezone(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timezone string `json:"timezone"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	settings, err := h.Svc.SetTimezone(r.Context(), ownerFromContext(r.Context()), req.Timezone)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) SetWeekStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Weekday       string `json:"weekday"`
		EffectiveFrom string `json:"effective_from"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	wd, err := calendar.ParseWeekday(req.Weekday)
	if err != nil {
		writeError(w, r, apperrors.InvalidTransition("set week start", err.Error()))
		return
	}
	settings, err := h.Svc.SetWeekStart(r.Context(), ownerFromContext(r.Context()), wd, req.EffectiveFrom)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) SetDayTimes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		WakeTime  string `json:"wake_time"`
		SleepTime string `json:"sleep_time"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	settings, err := h.Svc.SetDayTimes(r.Context(), ownerFromContext(r.Context()), req.WakeTime, req.SleepTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

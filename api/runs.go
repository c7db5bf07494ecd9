package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/garnizeh/leavesync/internal/jobs"
	"github.com/garnizeh/leavesync/internal/syncer"
	"github.com/garnizeh/leavesync/pkg/models"
	"github.com/garnizeh/leavesync/pkg/repository"
)

// SyncTrigger queues a sync pass and returns the job id.
type SyncTrigger interface {
	Trigger(ctx context.Context, trigger string) (int64, error)
}

// RunsHandler exposes run history and the notification ledger, and lets an
// admin queue a pass.
type RunsHandler struct {
	runs    repository.RunRepo
	ledger  repository.NotificationRepo
	trigger SyncTrigger
}

func NewRunsHandler(runs repository.RunRepo, ledger repository.NotificationRepo, trigger SyncTrigger) *RunsHandler {
	return &RunsHandler{runs: runs, ledger: ledger, trigger: trigger}
}

func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		logger.Error("list runs", "err", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.SyncRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	run, err := h.runs.GetRun(r.Context(), id)
	if err != nil {
		logger.Error("get run", "id", id, "err", err)
		http.Error(w, "failed to get run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *RunsHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		http.Error(w, "scheduling disabled", http.StatusServiceUnavailable)
		return
	}
	id, err := h.trigger.Trigger(r.Context(), syncer.TriggerAPI)
	if errors.Is(err, jobs.ErrSyncPending) {
		http.Error(w, "a sync pass is already pending", http.StatusConflict)
		return
	}
	if err != nil {
		logger.Error("trigger run", "err", err)
		http.Error(w, "failed to queue sync", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int64{"job_id": id})
}

func (h *RunsHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["request_id"]
	list, err := h.ledger.ListByRequest(r.Context(), requestID)
	if err != nil {
		logger.Error("list notifications", "request_id", requestID, "err", err)
		http.Error(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode response", "err", err)
	}
}

package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketsync/internal/repository"
	"marketsync/internal/syncengine"
)

type SyncHandler struct {
	Orchestrator *syncengine.Orchestrator
	Store        repository.Store
	Logger       *zap.Logger
}

func (h *SyncHandler) Register(r *gin.Engine) {
	group := r.Group("/api/sync")
	group.POST("/runs", h.startRun)
	group.GET("/runs", h.listRuns)
	group.GET("/runs/:id", h.getRun)
	group.GET("/runs/:id/progress", h.getProgress)
	group.POST("/runs/:id/cancel", h.cancelRun)
}

type startRunRequest struct {
	ResourceType     string   `json:"resource_type" binding:"required"`
	AccountScopes    []string `json:"account_scopes"`
	Mode             string   `json:"mode"`
	MaxPages         int      `json:"max_pages"`
	ConflictStrategy string   `json:"conflict_strategy"`
	RemoteIDs        []string `json:"remote_ids"`
	Concurrent       *bool    `json:"concurrent"`
}

// @Summary Start a sync run
// @Tags sync
// @Accept json
// @Param request body startRunRequest true "run parameters"
// @Success 200 {object} apiResponse
// @Router /api/sync/runs [post]
func (h *SyncHandler) startRun(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	run, err := h.Orchestrator.Start(c.Request.Context(), syncengine.StartOptions{
		ResourceType:     req.ResourceType,
		AccountScopes:    req.AccountScopes,
		Mode:             req.Mode,
		MaxPages:         req.MaxPages,
		ConflictStrategy: req.ConflictStrategy,
		RemoteIDs:        req.RemoteIDs,
		Concurrent:       req.Concurrent,
	})
	if err != nil {
		if errors.Is(err, syncengine.ErrConcurrentRun) {
			Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Warn("start sync run rejected", zap.Error(err))
		}
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	Ok(c, run, nil)
}

// @Summary List sync runs
// @Tags sync
// @Param account_scope query string false "account scope"
// @Param resource_type query string false "resource type"
// @Param status query string false "run status"
// @Param since query string false "created at or after (RFC3339)"
// @Param until query string false "created before (RFC3339)"
// @Param limit query int false "limit"
// @Param offset query int false "offset"
// @Success 200 {object} apiResponse
// @Router /api/sync/runs [get]
func (h *SyncHandler) listRuns(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	params := repository.ListRunsParams{
		AccountScope: strings.TrimSpace(c.Query("account_scope")),
		ResourceType: strings.TrimSpace(c.Query("resource_type")),
		Status:       strings.TrimSpace(c.Query("status")),
		Since:        timeQuery(c, "since"),
		Until:        timeQuery(c, "until"),
		Limit:        intQuery(c, "limit", 50),
		Offset:       intQuery(c, "offset", 0),
	}
	runs, err := h.Store.ListSyncRuns(c.Request.Context(), params)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("list sync runs failed", zap.Error(err))
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Store.CountSyncRuns(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, runs, map[string]any{
		"total":  total,
		"limit":  params.Limit,
		"offset": params.Offset,
	})
}

// @Summary Get one sync run with its audit trail
// @Tags sync
// @Param id path string true "run id"
// @Success 200 {object} apiResponse
// @Router /api/sync/runs/{id} [get]
func (h *SyncHandler) getRun(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := c.Param("id")
	run, err := h.Store.GetSyncRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			Error(c, http.StatusNotFound, "sync run not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	transitions, err := h.Store.ListTransitions(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, gin.H{"run": run, "transitions": transitions}, nil)
}

// @Summary Get live progress of a sync run
// @Tags sync
// @Param id path string true "run id"
// @Success 200 {object} apiResponse
// @Router /api/sync/runs/{id}/progress [get]
func (h *SyncHandler) getProgress(c *gin.Context) {
	if h.Store == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := c.Param("id")
	run, err := h.Store.GetSyncRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			Error(c, http.StatusNotFound, "sync run not found", nil)
			return
		}
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	progress, err := h.Store.GetProgress(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	payload := gin.H{
		"sync_run_id": run.ID,
		"status":      run.Status,
		"fetched":     run.Fetched,
		"created":     run.Created,
		"updated":     run.Updated,
		"unchanged":   run.Unchanged,
		"failed":      run.Failed,
	}
	if progress != nil {
		payload["current_page"] = progress.CurrentPage
		payload["estimated_total_pages"] = progress.EstimatedTotalPages
		payload["percent_complete"] = progress.PercentComplete
		payload["updated_at"] = progress.UpdatedAt
	}
	Ok(c, payload, nil)
}

// @Summary Request cancellation of a running sync
// @Tags sync
// @Param id path string true "run id"
// @Success 200 {object} apiResponse
// @Router /api/sync/runs/{id}/cancel [post]
func (h *SyncHandler) cancelRun(c *gin.Context) {
	if h.Orchestrator == nil {
		Error(c, http.StatusInternalServerError, "service unavailable", nil)
		return
	}
	id := c.Param("id")
	err := h.Orchestrator.Cancel(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRunNotFound):
			Error(c, http.StatusNotFound, "sync run not found", nil)
		case errors.Is(err, syncengine.ErrRunFinished):
			Error(c, http.StatusConflict, err.Error(), nil)
		default:
			Error(c, http.StatusBadGateway, err.Error(), nil)
		}
		return
	}
	Ok(c, gin.H{"sync_run_id": id, "status": "cancel_requested"}, nil)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}

func timeQuery(c *gin.Context, name string) *time.Time {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

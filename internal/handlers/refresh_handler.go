package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/services"
	"github.com/vikasavnish/mfbroker/internal/tasks"
)

// RefreshHandler triggers the NAV refresh job over HTTP
type RefreshHandler struct {
	runner tasks.Runner
	logger logrus.FieldLogger
}

// NewRefreshHandler creates a new refresh handler
func NewRefreshHandler(runner tasks.Runner, logger logrus.FieldLogger) *RefreshHandler {
	return &RefreshHandler{
		runner: runner,
		logger: logger.WithField("handler", "nav_refresh"),
	}
}

// RegisterRoutes registers the refresh trigger
func (h *RefreshHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/update-all-navs", h.UpdateAllNAVs).Methods("POST")
}

// UpdateAllNAVs runs the refresh synchronously and reports a coarse result
func (h *RefreshHandler) UpdateAllNAVs(w http.ResponseWriter, r *http.Request) {
	result, err := h.runner.Run(r.Context())
	switch {
	case errors.Is(err, services.ErrRefreshInProgress):
		writeJSON(w, http.StatusConflict, models.MessageResponse{Message: "NAV refresh already in progress"})
	case err != nil:
		// the job has already logged the cause
		writeJSON(w, http.StatusInternalServerError, models.MessageResponse{Message: tasks.MessageRefreshFailed})
	default:
		writeJSON(w, http.StatusOK, models.MessageResponse{Message: result.Message})
	}
}

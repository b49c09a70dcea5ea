package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/fundclient"
	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/services"
)

// FundHandler passes provider queries through to the client
type FundHandler struct {
	fundService services.FundService
	logger      logrus.FieldLogger
}

// NewFundHandler creates a new fund handler
func NewFundHandler(fundService services.FundService, logger logrus.FieldLogger) *FundHandler {
	return &FundHandler{
		fundService: fundService,
		logger:      logger.WithField("handler", "fund"),
	}
}

// RegisterRoutes registers the provider pass-through routes
func (h *FundHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/get-json-data-RapidAPI", h.GetOpenEndedSchemes).Methods("GET")
	router.HandleFunc("/get-all-fund-families", h.GetFundFamilies).Methods("GET")
	router.HandleFunc("/get-fund-family-open-funds", h.GetFamilyOpenFunds).Methods("GET")
}

// GetOpenEndedSchemes returns the provider's open-ended scheme list
func (h *FundHandler) GetOpenEndedSchemes(w http.ResponseWriter, r *http.Request) {
	records, err := h.fundService.OpenEndedSchemes(r.Context())
	if err != nil {
		respondError(w, h.logger, err, map[error]string{
			fundclient.ErrExternalAPI: "Failed to fetch data from RapidAPI",
		})
		return
	}
	writeJSON(w, http.StatusOK, models.FundListResponse{Message: "Data fetched successfully", Data: records})
}

// GetFundFamilies returns the distinct fund families
func (h *FundHandler) GetFundFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.fundService.FundFamilies(r.Context())
	if err != nil {
		respondError(w, h.logger, err, map[error]string{
			fundclient.ErrExternalAPI: "Failed to fetch fund families",
		})
		return
	}
	writeJSON(w, http.StatusOK, models.FundFamiliesResponse{Message: "Fund families retrieved successfully", Data: families})
}

// GetFamilyOpenFunds returns the open-ended schemes of ?fund_family=
func (h *FundHandler) GetFamilyOpenFunds(w http.ResponseWriter, r *http.Request) {
	family := r.URL.Query().Get("fund_family")
	if family == "" {
		writeError(w, http.StatusBadRequest, "fund_family is required")
		return
	}

	records, err := h.fundService.FamilyOpenFunds(r.Context(), family)
	if err != nil {
		respondError(w, h.logger, err, map[error]string{
			fundclient.ErrExternalAPI: "Failed to fetch open funds",
		})
		return
	}
	writeJSON(w, http.StatusOK, models.FundListResponse{Message: "Open funds retrieved successfully", Data: records})
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/vikasavnish/mfbroker/internal/models"
	"github.com/vikasavnish/mfbroker/internal/services"
	"github.com/vikasavnish/mfbroker/internal/utils"
)

var investmentMessages = map[error]string{
	services.ErrNotFound:      "Investment not found",
	services.ErrAlreadyExists: "Scheme code already exists",
	services.ErrDatabase:      "Database error",
}

// InvestmentHandler serves the investment CRUD routes
type InvestmentHandler struct {
	investmentService services.InvestmentService
	logger            logrus.FieldLogger
}

// NewInvestmentHandler creates a new investment handler
func NewInvestmentHandler(investmentService services.InvestmentService, logger logrus.FieldLogger) *InvestmentHandler {
	return &InvestmentHandler{
		investmentService: investmentService,
		logger:            logger.WithField("handler", "investment"),
	}
}

// RegisterRoutes registers the investment routes; all require an access token
func (h *InvestmentHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/get-an-investment/{schemeCode:[0-9]+}", h.GetInvestment).Methods("GET")
	router.HandleFunc("/view-portfolio", h.ViewPortfolio).Methods("GET")
	router.HandleFunc("", h.CreateInvestment).Methods("POST")
	router.HandleFunc("", h.UpdateInvestment).Methods("PATCH")
	router.HandleFunc("/delete-an-investment/{schemeCode:[0-9]+}", h.DeleteInvestment).Methods("DELETE")
}

// GetInvestment returns the user's holding in one scheme
func (h *InvestmentHandler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	schemeCode, ok := schemeCodeVar(w, r)
	if !ok {
		return
	}

	investment, err := h.investmentService.GetBySchemeCode(r.Context(), userID, schemeCode)
	if err != nil {
		respondError(w, h.logger, err, investmentMessages)
		return
	}
	writeJSON(w, http.StatusOK, investment)
}

// ViewPortfolio lists the user's holdings; an empty portfolio is a 404
func (h *InvestmentHandler) ViewPortfolio(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	investments, err := h.investmentService.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, h.logger, err, investmentMessages)
		return
	}
	if len(investments) == 0 {
		writeError(w, http.StatusNotFound, "No investments found")
		return
	}
	writeJSON(w, http.StatusOK, investments)
}

// CreateInvestment records a new holding
func (h *InvestmentHandler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req models.InvestmentCreateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	investment, err := h.investmentService.Create(r.Context(), userID, req)
	if err != nil {
		respondError(w, h.logger, err, investmentMessages)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user_id":     userID,
		"scheme_code": investment.SchemeCode,
	}).Info("investment created")
	writeJSON(w, http.StatusCreated, investment)
}

// UpdateInvestment changes the units of a holding
func (h *InvestmentHandler) UpdateInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req models.InvestmentUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	investment, err := h.investmentService.UpdateUnits(r.Context(), userID, req)
	if err != nil {
		respondError(w, h.logger, err, investmentMessages)
		return
	}
	writeJSON(w, http.StatusOK, investment)
}

// DeleteInvestment removes a holding
func (h *InvestmentHandler) DeleteInvestment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	schemeCode, ok := schemeCodeVar(w, r)
	if !ok {
		return
	}

	if err := h.investmentService.Delete(r.Context(), userID, schemeCode); err != nil {
		respondError(w, h.logger, err, investmentMessages)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InvestmentHandler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := utils.GetUserIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	return userID, true
}

func schemeCodeVar(w http.ResponseWriter, r *http.Request) (int, bool) {
	code, err := strconv.Atoi(mux.Vars(r)["schemeCode"])
	if err != nil || code <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid scheme code")
		return 0, false
	}
	return code, true
}

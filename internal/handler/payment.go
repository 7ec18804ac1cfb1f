package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"swiftpay/internal/middleware"
	"swiftpay/internal/payment"
	"swiftpay/internal/release"
)

type PaymentHandler struct {
	service     *payment.Service
	coordinator *release.Coordinator
	logger      Logger
}

func NewPaymentHandler(service *payment.Service, coordinator *release.Coordinator, log Logger) *PaymentHandler {
	return &PaymentHandler{service: service, coordinator: coordinator, logger: log}
}

// CreatePayment handles a customer's new payment instruction.
func (h *PaymentHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req payment.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.service.CreatePayment(r.Context(), p, &req)
	if err != nil {
		h.logger.Error("Payment creation failed", map[string]interface{}{"error": err.Error(), "owner_id": p.ID})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{"payment": created})
}

// MyPayments returns the authenticated customer's payments.
func (h *PaymentHandler) MyPayments(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	payments, err := h.service.ListMyPayments(r.Context(), p)
	if err != nil {
		h.logger.Error("Failed to fetch customer payments", map[string]interface{}{"error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// ListPayments returns payments for staff review, optionally filtered by status.
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	payments, err := h.service.ListPayments(r.Context(), p, r.URL.Query().Get("status"))
	if err != nil {
		h.logger.Error("Failed to fetch payments", map[string]interface{}{"error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"payments": payments})
}

// VerifyPayment handles the staff verification step for a single payment.
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	vars := mux.Vars(r)
	paymentID, err := uuid.Parse(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	verified, err := h.service.VerifyPayment(r.Context(), p, paymentID)
	if err != nil {
		h.logger.Warn("Payment verification failed", map[string]interface{}{"error": err.Error(), "payment_id": paymentID})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"payment": verified})
}

// RejectPayment handles staff rejection of a pending or verified payment.
func (h *PaymentHandler) RejectPayment(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	vars := mux.Vars(r)
	paymentID, err := uuid.Parse(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid payment ID")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rejected, err := h.service.RejectPayment(r.Context(), p, paymentID, req.Reason)
	if err != nil {
		h.logger.Warn("Payment rejection failed", map[string]interface{}{"error": err.Error(), "payment_id": paymentID})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"payment": rejected})
}

// SubmitBatch releases the selected verified payments to the SWIFT network.
func (h *PaymentHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		PaymentIDs []uuid.UUID `json:"paymentIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := h.coordinator.Release(r.Context(), p, req.PaymentIDs)
	if err != nil {
		h.logger.Warn("Batch release failed", map[string]interface{}{"error": err.Error(), "actor_id": p.ID})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"result": result})
}

// SettlementCallback records the network's acknowledgment for a released batch.
func (h *PaymentHandler) SettlementCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BatchID uuid.UUID `json:"batch_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BatchID == uuid.Nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	moved, err := h.coordinator.Confirm(r.Context(), req.BatchID)
	if err != nil {
		h.logger.Warn("Settlement confirmation failed", map[string]interface{}{"error": err.Error(), "batch_id": req.BatchID})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"completed": moved})
}

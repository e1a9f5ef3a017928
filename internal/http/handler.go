package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"CryptoPayRecon/internal/models"
	"CryptoPayRecon/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type PriceLister interface {
	List(ctx context.Context) ([]models.PriceQuote, error)
}

type Handler struct {
	Payments *services.PaymentService
	Prices   PriceLister
}

type createPaymentRequest struct {
	OrderID            string `json:"orderId"`
	Asset              string `json:"asset"`
	FiatTotal          string `json:"fiatTotal"`
	DestinationAddress string `json:"destinationAddress"`
}

type paymentResponse struct {
	PaymentID          string `json:"paymentId"`
	OrderID            string `json:"orderId"`
	Asset              string `json:"asset"`
	ExpectedAmount     string `json:"expectedAmount"`
	FiatEquivalent     string `json:"fiatEquivalent"`
	DestinationAddress string `json:"destinationAddress"`
	RegisteredAt       string `json:"registeredAt"`
	PaymentStatus      string `json:"paymentStatus"`
}

type priceResponse struct {
	Asset     string `json:"asset"`
	FiatPrice string `json:"fiatPrice"`
	FetchedAt string `json:"fetchedAt"`
}

func NewHandler(payments *services.PaymentService, prices PriceLister) *Handler {
	return &Handler{Payments: payments, Prices: prices}
}

func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	fiatTotal, err := decimal.NewFromString(req.FiatTotal)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fiat total")
		return
	}

	userID := r.Header.Get("X-User-Id")
	payment, err := h.Payments.CreateExpectedPayment(
		r.Context(), req.OrderID, userID, models.Asset(req.Asset), fiatTotal, req.DestinationAddress)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingUserID):
			writeError(w, http.StatusUnauthorized, "missing user id")
		case errors.Is(err, services.ErrMissingOrderID):
			writeError(w, http.StatusBadRequest, "missing order id")
		case errors.Is(err, services.ErrUnsupportedAsset):
			writeError(w, http.StatusBadRequest, "unsupported asset")
		case errors.Is(err, services.ErrInvalidAddress):
			writeError(w, http.StatusBadRequest, "invalid destination address")
		case errors.Is(err, services.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "fiat total must be positive")
		case errors.Is(err, services.ErrNoPrice):
			writeError(w, http.StatusServiceUnavailable, "no price available")
		default:
			writeError(w, http.StatusInternalServerError, "create payment failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	if paymentID == "" {
		writeError(w, http.StatusBadRequest, "missing payment id")
		return
	}

	payment, err := h.Payments.GetExpectedPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "payment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get payment failed")
		return
	}

	writeJSON(w, http.StatusOK, toPaymentResponse(payment))
}

func (h *Handler) ListPrices(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.Prices.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list prices failed")
		return
	}

	out := make([]priceResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, priceResponse{
			Asset:     string(q.Asset),
			FiatPrice: q.FiatPrice.String(),
			FetchedAt: q.FetchedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func toPaymentResponse(p *models.ExpectedPayment) paymentResponse {
	return paymentResponse{
		PaymentID:          p.ID,
		OrderID:            p.OrderID,
		Asset:              string(p.Asset),
		ExpectedAmount:     p.ExpectedAmount.String(),
		FiatEquivalent:     p.FiatEquivalent.String(),
		DestinationAddress: p.DestinationAddress,
		RegisteredAt:       p.RegisteredAt.Format(time.RFC3339),
		PaymentStatus:      string(p.PaymentStatus),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

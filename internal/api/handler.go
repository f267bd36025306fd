// Package api exposes the coupon engine over HTTP. Handlers are thin:
// decode, delegate to the engine, map domain errors to status codes.
package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coupon-management-api/internal/coupon"
)

// maxBodySize caps request bodies to keep hostile payloads out of the
// JSON decoder.
const maxBodySize = 1 << 20

// Handler serves the /api coupon endpoints.
type Handler struct {
	repo     coupon.Repository
	selector *coupon.Selector
}

// NewHandler constructs a Handler around the repository and selector.
func NewHandler(repo coupon.Repository, selector *coupon.Selector) *Handler {
	return &Handler{repo: repo, selector: selector}
}

// Router returns the chi router for the coupon API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/coupons", func(r chi.Router) {
		r.Post("/", h.RegisterCoupon)
		r.Get("/", h.ListCoupons)
		r.Post("/best", h.BestCoupon)
		r.Post("/redeem", h.Redeem)
	})
	return r
}

// RegisterCoupon handles POST /coupons.
func (h *Handler) RegisterCoupon(w http.ResponseWriter, r *http.Request) {
	var c coupon.Coupon
	if !h.decode(w, r, &c) {
		return
	}

	if err := c.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	inserted, err := h.repo.Add(r.Context(), &c)
	if err != nil {
		h.internalError(w, r, errors.Wrap(err, "add coupon"))
		return
	}
	if !inserted {
		respondError(w, http.StatusConflict, coupon.ErrDuplicateCode.Error())
		return
	}

	respondJSON(w, http.StatusCreated, c)
}

// ListCoupons handles GET /coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.repo.List(r.Context())
	if err != nil {
		h.internalError(w, r, errors.Wrap(err, "list coupons"))
		return
	}
	if coupons == nil {
		coupons = []coupon.Coupon{}
	}
	respondJSON(w, http.StatusOK, coupons)
}

// bestCouponRequest is the body of POST /coupons/best. Cart may be absent
// or null; it is then treated as empty.
type bestCouponRequest struct {
	User *coupon.UserContext `json:"user"`
	Cart *coupon.Cart        `json:"cart"`
}

// bestCouponResponse always carries the bestCoupon key so that "no match"
// is an explicit null, not a missing field.
type bestCouponResponse struct {
	BestCoupon     *coupon.Coupon   `json:"bestCoupon"`
	DiscountAmount *decimal.Decimal `json:"discountAmount,omitempty"`
}

// BestCoupon handles POST /coupons/best.
func (h *Handler) BestCoupon(w http.ResponseWriter, r *http.Request) {
	var req bestCouponRequest
	if !h.decode(w, r, &req) {
		return
	}

	match, err := h.selector.FindBest(r.Context(), req.User, req.Cart)
	if err != nil {
		var mfErr *coupon.MissingFieldError
		if errors.As(err, &mfErr) {
			respondError(w, http.StatusBadRequest, mfErr.Error())
			return
		}
		h.internalError(w, r, errors.Wrap(err, "find best coupon"))
		return
	}

	if match == nil {
		respondJSON(w, http.StatusOK, bestCouponResponse{})
		return
	}

	respondJSON(w, http.StatusOK, bestCouponResponse{
		BestCoupon:     &match.Coupon,
		DiscountAmount: &match.Discount,
	})
}

// redeemRequest is the body of POST /coupons/redeem.
type redeemRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

type redeemResponse struct {
	Status     string `json:"status"`
	UserID     string `json:"userId"`
	Code       string `json:"code"`
	UsageCount int    `json:"usageCount"`
}

// Redeem handles POST /coupons/redeem. Redemption is unconditional
// bookkeeping: the coupon's existence, validity, and limits are not
// re-checked here.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.UserID == "" || req.Code == "" {
		respondError(w, http.StatusBadRequest, "userId and code are required")
		return
	}

	count, err := h.repo.IncrementUsage(r.Context(), req.UserID, req.Code)
	if err != nil {
		h.internalError(w, r, errors.Wrap(err, "increment usage"))
		return
	}

	respondJSON(w, http.StatusOK, redeemResponse{
		Status:     "redeemed",
		UserID:     req.UserID,
		Code:       req.Code,
		UsageCount: count,
	})
}

// decode reads the request body into dst and writes a 400 on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return false
	}
	return true
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal server error")
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

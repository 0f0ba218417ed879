package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/raysh454/clarity/internal/billing"
	"github.com/raysh454/clarity/internal/logging"
	"github.com/raysh454/clarity/internal/model"
	"github.com/raysh454/clarity/internal/registry"
)

const (
	scanQueryHint = "Provide ?url=https://…"
	scanBodyHint  = "Body must be { url: 'https://…' }"

	headerScansRemaining = "X-Scans-Remaining"
)

// Scans

// handleScanGet godoc
// @Summary Scan a page
// @Description Renders the page, runs the accessibility rules and returns the scored result.
// @Tags scan
// @Produce json
// @Param url query string true "Page to scan" example(https://example.com)
// @Param email query string false "Counts the scan against this address's daily free quota"
// @Success 200 {object} model.ScanResult
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /api/scan [get]
func (s *Server) handleScanGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.runScan(w, r, q.Get("url"), q.Get("email"), scanQueryHint)
}

// handleScanPost godoc
// @Summary Scan a page
// @Tags scan
// @Accept json
// @Produce json
// @Param request body model.ScanRequest true "Page to scan"
// @Success 200 {object} model.ScanResult
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /api/scan [post]
func (s *Server) handleScanPost(w http.ResponseWriter, r *http.Request) {
	var body model.ScanRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		s.logger.Warn("decoding scan body", logging.Err(err))
		writeError(w, http.StatusBadRequest, scanBodyHint)
		return
	}
	s.runScan(w, r, body.URL, body.Email, scanBodyHint)
}

func (s *Server) runScan(w http.ResponseWriter, r *http.Request, raw, email, hint string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		writeError(w, http.StatusBadRequest, hint)
		return
	}

	ctx := r.Context()
	logger := s.logger.With(logging.Field{Key: "request_id", Value: middleware.GetReqID(ctx)})

	email = strings.TrimSpace(email)
	metered := email != "" && s.deps.Quota != nil
	if metered {
		st, err := s.deps.Quota.Status(ctx, email)
		if err != nil {
			s.writeQuotaError(w, logger, err)
			return
		}
		if st.Exhausted() {
			w.Header().Set(headerScansRemaining, "0")
			logger.Info("scan quota exhausted", logging.Field{Key: "email", Value: st.Email})
			writeError(w, model.KindQuotaExceeded.HTTPStatus(), "Daily free scan limit reached")
			return
		}
	}

	result, err := s.deps.Scanner.Scan(ctx, raw)
	if err != nil {
		kind := model.KindOf(err)
		msg := model.UserMessage(err)
		if kind == model.KindInvalidURL {
			msg = hint
		}
		writeError(w, kind.HTTPStatus(), msg)
		return
	}

	if metered {
		st, err := s.deps.Quota.Consume(ctx, email)
		if err != nil {
			// The scan already succeeded; the caller still gets the result.
			logger.Error("consuming scan quota", logging.Err(err))
		} else {
			w.Header().Set(headerScansRemaining, strconv.Itoa(st.Remaining))
		}
	}

	writeJSON(w, http.StatusOK, result)
}

// Quota

// handleQuota godoc
// @Summary Daily free scan allowance
// @Tags quota
// @Produce json
// @Param email query string true "Email address"
// @Success 200 {object} registry.QuotaStatus
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/quota [get]
func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	if s.deps.Quota == nil {
		writeError(w, http.StatusNotFound, "Quota is not enabled")
		return
	}
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "Provide ?email=you@example.com")
		return
	}

	st, err := s.deps.Quota.Status(r.Context(), email)
	if err != nil {
		s.writeQuotaError(w, s.logger, err)
		return
	}
	w.Header().Set(headerScansRemaining, strconv.Itoa(st.Remaining))
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) writeQuotaError(w http.ResponseWriter, logger logging.Logger, err error) {
	if errors.Is(err, registry.ErrInvalidEmail) {
		writeError(w, http.StatusBadRequest, "Provide a valid email address")
		return
	}
	logger.Error("reading scan quota", logging.Err(err))
	writeError(w, http.StatusInternalServerError, "Internal error")
}

// Subscribers

// handleSubscribe godoc
// @Summary Subscribe an email address
// @Tags subscribe
// @Accept json
// @Produce json
// @Param request body SubscribeRequest true "Subscriber"
// @Success 200 {object} SubscribeResponse "Already subscribed"
// @Success 201 {object} SubscribeResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/subscribe [post]
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if s.deps.Subscribers == nil {
		writeError(w, http.StatusNotFound, "Subscriptions are not enabled")
		return
	}

	var body SubscribeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Body must be { email: 'you@example.com' }")
		return
	}

	sub, created, err := s.deps.Subscribers.Subscribe(r.Context(), body.Email, s.deps.Clock())
	if err != nil {
		if errors.Is(err, registry.ErrInvalidEmail) {
			writeError(w, http.StatusBadRequest, "Provide a valid email address")
			return
		}
		s.logger.Error("subscribing", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.logger.Info("new subscriber", logging.Field{Key: "email", Value: sub.Email})
	}
	writeJSON(w, status, SubscribeResponse{
		Email:     sub.Email,
		CreatedAt: sub.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Checkout

// handleCheckout godoc
// @Summary Start a checkout for a plan
// @Description The free plan returns /scan without contacting the payment provider.
// @Tags billing
// @Accept json
// @Produce json
// @Param request body CheckoutRequest true "Plan selection"
// @Success 200 {object} CheckoutResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/checkout [post]
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var body CheckoutRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Plan not specified")
		return
	}
	if strings.TrimSpace(body.Plan) == "" {
		writeError(w, http.StatusBadRequest, "Plan not specified")
		return
	}
	if s.deps.Checkout == nil {
		writeError(w, http.StatusInternalServerError, "Billing is not configured")
		return
	}

	url, err := s.deps.Checkout.CreateSession(r.Context(), body.Plan, body.Email)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidPlan) {
			writeError(w, http.StatusBadRequest, "Invalid plan")
			return
		}
		s.logger.Error("creating checkout session", logging.Field{Key: "plan", Value: body.Plan}, logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Could not start checkout")
		return
	}
	writeJSON(w, http.StatusOK, CheckoutResponse{URL: url})
}

// Ops

// handleHealth godoc
// @Summary Liveness probe
// @Tags ops
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Strategy: string(s.deps.Scanner.Strategy())})
}

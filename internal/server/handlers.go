// internal/server/handlers.go
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/rovshanmuradov/fito-presale/internal/onramp"
	"github.com/rovshanmuradov/fito-presale/internal/storefront"
	"github.com/rovshanmuradov/fito-presale/internal/transaction"
	"github.com/rovshanmuradov/fito-presale/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 4 << 10

type amountRequest struct {
	Amount string `json:"amount"`
}

type referralRequest struct {
	Query string `json:"query"`
}

type ticketResponse struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Status string `json:"status"`
	Hash   string `json:"hash,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an action error to a status code. Caller mistakes and
// state conflicts are 400, a missing on-ramp key is 500, everything else
// is an upstream failure.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadGateway
	var ce *wallet.ConnectionError
	switch {
	case errors.Is(err, onramp.ErrNotConfigured):
		status = http.StatusInternalServerError
	case storefront.IsPrecondition(err):
		status = http.StatusBadRequest
	case errors.As(err, &ce) && !errors.Is(ce, wallet.ErrUnknown):
		status = http.StatusBadRequest
	}

	s.logger.Debug("Request failed",
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Error(err))
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func ticketJSON(t transaction.Ticket) ticketResponse {
	resp := ticketResponse{ID: t.ID, Action: t.Action.String(), Status: t.Status.String()}
	if t.HasHash() {
		resp.Hash = t.Hash.Hex()
	}
	return resp
}

// jsonOnly rejects bodies that are not application/json. Browsers cannot
// send that type cross-site without a preflight.
func jsonOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: "Content-Type must be application/json."})
			return
		}
		next(w, r)
	}
}

func (s *Server) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized."})
				return
			}
		}
		next(w, r)
	}
}

func limited(l *rate.Limiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too many requests. Please try again later."})
			return
		}
		next(w, r)
	}
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Handler panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()))
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.View())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	session, err := s.store.Connect(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := map[string]interface{}{"chainId": session.ChainID}
	if session.Account != nil {
		resp["account"] = session.Account.Hex()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSwitch(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SwitchNetwork(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.store.View())
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	s.submit(w, r, func() (transaction.Ticket, error) { return s.store.Buy(req.Amount) })
}

func (s *Server) handleTogglePause(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, s.store.TogglePause)
}

func (s *Server) handleToggleForce(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, s.store.ToggleForceActive)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, fn func() (transaction.Ticket, error)) {
	t, err := fn()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ticketJSON(t))
}

func (s *Server) handleAck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": s.store.Acknowledge()})
}

func (s *Server) handleReferral(w http.ResponseWriter, r *http.Request) {
	var req referralRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	st := s.store.SetReferralQuery(req.Query)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"referrer": st.Referrer.Hex(),
		"valid":    st.Valid,
	})
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	url, err := s.store.BuyWithCard(r.Context(), req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"paymentUrl": url})
}

func (s *Server) handleFAQ(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.FAQ(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"clients":   s.clients.len(),
	})
}

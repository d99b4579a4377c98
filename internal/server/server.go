// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rovshanmuradov/fito-presale/internal/faq"
	"github.com/rovshanmuradov/fito-presale/internal/referral"
	"github.com/rovshanmuradov/fito-presale/internal/transaction"
	"github.com/rovshanmuradov/fito-presale/internal/viewmodel"
	"github.com/rovshanmuradov/fito-presale/internal/wallet"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRatePerMinute = 30
	shutdownTimeout      = 5 * time.Second
)

// Storefront is the action surface the HTTP layer drives.
type Storefront interface {
	View() viewmodel.View
	Watch() (<-chan viewmodel.View, func())
	Connect(ctx context.Context) (wallet.Session, error)
	SwitchNetwork(ctx context.Context) error
	Buy(amount string) (transaction.Ticket, error)
	TogglePause() (transaction.Ticket, error)
	ToggleForceActive() (transaction.Ticket, error)
	Acknowledge() bool
	SetReferralQuery(rawQuery string) referral.State
	BuyWithCard(ctx context.Context, amount string) (string, error)
	FAQ(ctx context.Context) faq.Result
}

// ClientMetrics tracks connected websocket clients.
type ClientMetrics interface {
	ClientConnected()
	ClientDisconnected()
}

type Config struct {
	Listen             string
	RateLimitPerMinute int
	// AuthToken, when set, is required as a bearer token on every route
	// that changes state.
	AuthToken string
	Gatherer           prometheus.Gatherer
	Metrics            ClientMetrics
	Logger             *zap.Logger
}

type noopMetrics struct{}

func (noopMetrics) ClientConnected()    {}
func (noopMetrics) ClientDisconnected() {}

// Server exposes the storefront over HTTP and a websocket view stream.
type Server struct {
	store   Storefront
	logger  *zap.Logger
	metrics ClientMetrics
	listen  string
	token   string

	cardLimiter *rate.Limiter
	faqLimiter  *rate.Limiter

	handler http.Handler
	clients *clientSet
}

func New(store Storefront, config *Config) *Server {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Metrics == nil {
		config.Metrics = noopMetrics{}
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	perMinute := config.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = defaultRatePerMinute
	}

	s := &Server{
		store:       store,
		logger:      config.Logger.Named("server"),
		metrics:     config.Metrics,
		listen:      config.Listen,
		token:       config.AuthToken,
		cardLimiter: newLimiter(perMinute),
		faqLimiter:  newLimiter(perMinute),
		clients:     newClientSet(),
	}
	s.handler = s.routes(config.Gatherer)
	return s
}

func newLimiter(perMinute int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

func (s *Server) routes(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/view", s.handleView)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	write := func(h http.HandlerFunc) http.HandlerFunc {
		return jsonOnly(s.authorized(h))
	}
	mux.HandleFunc("POST /api/connect", write(s.handleConnect))
	mux.HandleFunc("POST /api/network/switch", write(s.handleSwitch))
	mux.HandleFunc("POST /api/buy", write(s.handleBuy))
	mux.HandleFunc("POST /api/admin/pause", write(s.handleTogglePause))
	mux.HandleFunc("POST /api/admin/force-active", write(s.handleToggleForce))
	mux.HandleFunc("POST /api/tx/ack", write(s.handleAck))
	mux.HandleFunc("POST /api/referral", write(s.handleReferral))
	mux.HandleFunc("POST /api/create-payment", write(limited(s.cardLimiter, s.handleCreatePayment)))
	mux.HandleFunc("POST /api/faq", jsonOnly(limited(s.faqLimiter, s.handleFAQ)))

	mux.Handle("GET /metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.recoverMiddleware(mux)
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully and closes
// every websocket stream.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listen, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("🌐 HTTP server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.clients.closeAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP shutdown incomplete", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

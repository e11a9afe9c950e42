// internal/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	SignalsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copytrader_signals_detected_total",
		Help: "Signals pushed onto the queue by the wallet monitor.",
	})
	SignalsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copytrader_signals_processed_total",
		Help: "Consumed signals by terminal outcome.",
	}, []string{"outcome"})

	TradesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "copytrader_trades_opened_total",
		Help: "Positions opened.",
	})
	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copytrader_trades_closed_total",
		Help: "Position closes (full or partial) by exit reason.",
	}, []string{"reason"})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "copytrader_open_positions",
		Help: "Currently open positions.",
	})
	WalletBalanceSOL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "copytrader_wallet_balance_sol",
		Help: "Trading wallet balance in SOL.",
	})
	RealizedPnLSOL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "copytrader_realized_pnl_sol",
		Help: "Cumulative realized P&L in SOL.",
	})

	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "copytrader_api_requests_total",
		Help: "Outbound API requests by service and result.",
	}, []string{"service", "result"})
)

// Server exposes the /metrics endpoint.
type Server struct {
	srv    *http.Server
	logger *zap.Logger
}

func NewServer(addr string, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux},
		logger: logger.Named("metrics"),
	}
}

// Run serves metrics until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("📊 Metrics server listening", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

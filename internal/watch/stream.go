// internal/watch/stream.go
package watch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamReconnectDelay = 5 * time.Second
	streamReadTimeout    = 90 * time.Second
	streamPingInterval   = 30 * time.Second
)

// Stream subscribes to account notifications over websocket so wallet
// activity triggers an immediate poll instead of waiting for the next
// sweep. The polling monitor remains the source of truth; the stream only
// shortens reaction time.
type Stream struct {
	url     string
	roster  *Roster
	monitor *Monitor
	logger  *zap.Logger
}

func NewStream(url string, roster *Roster, monitor *Monitor, logger *zap.Logger) *Stream {
	return &Stream{
		url:     url,
		roster:  roster,
		monitor: monitor,
		logger:  logger.Named("stream"),
	}
}

// Run maintains the subscription until the context is cancelled,
// reconnecting on any failure.
func (s *Stream) Run(ctx context.Context) error {
	for {
		if err := s.connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("Stream disconnected, reconnecting",
				zap.Error(err), zap.Duration("delay", streamReconnectDelay))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(streamReconnectDelay):
		}
	}
}

func (s *Stream) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	subToWallet := make(map[int]string)
	for i, w := range s.roster.Wallets() {
		id := i + 1
		req := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      id,
			"method":  "accountSubscribe",
			"params": []interface{}{
				w.Address,
				map[string]string{"encoding": "jsonParsed", "commitment": "confirmed"},
			},
		}
		if err := conn.WriteJSON(req); err != nil {
			return err
		}
		subToWallet[id] = w.Address
	}
	s.logger.Info("🔌 Stream connected", zap.Int("subscriptions", len(subToWallet)))

	go s.keepAlive(ctx, conn)

	// Subscription confirmations map the request id to the server-side
	// subscription id; notifications then carry the latter.
	subIDToWallet := make(map[int64]string)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(streamReadTimeout)); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var msg struct {
			ID     int             `json:"id"`
			Result json.RawMessage `json:"result"`
			Method string          `json:"method"`
			Params struct {
				Subscription int64 `json:"subscription"`
			} `json:"params"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		if msg.ID != 0 && len(msg.Result) > 0 {
			var subID int64
			if err := json.Unmarshal(msg.Result, &subID); err == nil {
				if wallet, ok := subToWallet[msg.ID]; ok {
					subIDToWallet[subID] = wallet
				}
			}
			continue
		}

		if msg.Method != "accountNotification" {
			continue
		}
		wallet, ok := subIDToWallet[msg.Params.Subscription]
		if !ok {
			continue
		}
		qw, ok := s.roster.Lookup(wallet)
		if !ok {
			continue
		}
		s.logger.Debug("Account activity, polling wallet", zap.String("wallet", wallet))
		if err := s.monitor.CheckWallet(ctx, qw); err != nil {
			s.logger.Warn("Reactive poll failed",
				zap.String("wallet", wallet), zap.Error(err))
		}
	}
}

func (s *Stream) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

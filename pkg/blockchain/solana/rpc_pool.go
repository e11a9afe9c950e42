// pkg/blockchain/solana/rpc_pool.go
package solana

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

const healthCheckTimeout = 5 * time.Second

// RPCPool round-robins over a set of RPC endpoints so a single flaky
// provider does not stall the engine.
type RPCPool struct {
	mu      sync.Mutex
	clients []*rpc.Client
	index   int
	logger  *zap.Logger
}

func NewRPCPool(rpcList []string, logger *zap.Logger) (*RPCPool, error) {
	if len(rpcList) == 0 {
		return nil, errors.New("rpc pool needs at least one endpoint")
	}
	clients := make([]*rpc.Client, 0, len(rpcList))
	for _, url := range rpcList {
		clients = append(clients, rpc.New(url))
	}
	return &RPCPool{
		clients: clients,
		logger:  logger.Named("rpc_pool"),
	}, nil
}

// Client returns the next client in rotation.
func (p *RPCPool) Client() *rpc.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	client := p.clients[p.index]
	p.index = (p.index + 1) % len(p.clients)
	return client
}

// Healthy returns the first client that answers a health probe, falling
// back to plain rotation when none do.
func (p *RPCPool) Healthy(ctx context.Context) *rpc.Client {
	p.mu.Lock()
	clients := append([]*rpc.Client(nil), p.clients...)
	p.mu.Unlock()

	for i, client := range clients {
		probeCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		_, err := client.GetHealth(probeCtx)
		cancel()
		if err == nil {
			return client
		}
		p.logger.Warn("RPC endpoint unhealthy", zap.Int("index", i), zap.Error(err))
	}
	p.logger.Warn("No healthy RPC endpoint found, using rotation")
	return p.Client()
}

func (p *RPCPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// internal/watch/roster.go
package watch

import "sync"

// QualifiedWallet is a tracked trader with its qualification snapshot.
type QualifiedWallet struct {
	Address         string  `json:"address"`
	Tier            string  `json:"tier"`
	EfficiencyScore float64 `json:"efficiency_score"`
	WinRate         float64 `json:"win_rate"`
	BalanceSOL      float64 `json:"balance_sol"`
}

// Roster holds the active set of watched wallets. The set is swapped
// atomically so a refresh never interleaves with an in-flight cycle.
type Roster struct {
	mu      sync.RWMutex
	wallets []QualifiedWallet
	byAddr  map[string]QualifiedWallet
}

func NewRoster(wallets []QualifiedWallet) *Roster {
	r := &Roster{}
	r.SetWallets(wallets)
	return r
}

// SetWallets replaces the watched set.
func (r *Roster) SetWallets(wallets []QualifiedWallet) {
	byAddr := make(map[string]QualifiedWallet, len(wallets))
	for _, w := range wallets {
		byAddr[w.Address] = w
	}

	r.mu.Lock()
	r.wallets = append([]QualifiedWallet(nil), wallets...)
	r.byAddr = byAddr
	r.mu.Unlock()
}

// Wallets returns a snapshot of the watched set.
func (r *Roster) Wallets() []QualifiedWallet {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]QualifiedWallet(nil), r.wallets...)
}

// Lookup returns the wallet for an address, if watched.
func (r *Roster) Lookup(address string) (QualifiedWallet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byAddr[address]
	return w, ok
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.wallets)
}

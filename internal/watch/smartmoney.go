// internal/watch/smartmoney.go
package watch

import (
	"sort"
	"sync"
	"time"
)

const smartMoneyRetention = 24 * time.Hour

// TokenInterest is the aggregated view of which watched wallets bought
// a token.
type TokenInterest struct {
	TokenMint  string
	Total      int
	TierCounts map[string]int
	FirstSeen  time.Time
	LastSeen   time.Time
}

// SmartMoney aggregates buy interest per token across distinct watched
// wallets. A wallet counts once per token no matter how many times it buys.
type SmartMoney struct {
	mu     sync.Mutex
	tokens map[string]*tokenRecord

	now func() time.Time
}

type tokenRecord struct {
	wallets   map[string]string // address -> tier
	firstSeen time.Time
	lastSeen  time.Time
}

func NewSmartMoney() *SmartMoney {
	return &SmartMoney{
		tokens: make(map[string]*tokenRecord),
		now:    time.Now,
	}
}

// RecordBuy registers a wallet's interest in a token and returns the
// updated aggregate.
func (s *SmartMoney) RecordBuy(mint, wallet, tier string) TokenInterest {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec, ok := s.tokens[mint]
	if !ok {
		rec = &tokenRecord{wallets: make(map[string]string), firstSeen: now}
		s.tokens[mint] = rec
	}
	rec.wallets[wallet] = tier
	rec.lastSeen = now

	return s.interestLocked(mint, rec)
}

// Interest returns the current aggregate for a token.
func (s *SmartMoney) Interest(mint string) (TokenInterest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tokens[mint]
	if !ok {
		return TokenInterest{}, false
	}
	return s.interestLocked(mint, rec), true
}

// Hot returns tokens bought by at least minWallets distinct wallets,
// most recent first.
func (s *SmartMoney) Hot(minWallets int) []TokenInterest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []TokenInterest
	for mint, rec := range s.tokens {
		if len(rec.wallets) >= minWallets {
			out = append(out, s.interestLocked(mint, rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})
	return out
}

// Prune drops tokens with no activity inside the retention window.
func (s *SmartMoney) Prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-smartMoneyRetention)
	for mint, rec := range s.tokens {
		if rec.lastSeen.Before(cutoff) {
			delete(s.tokens, mint)
		}
	}
}

func (s *SmartMoney) interestLocked(mint string, rec *tokenRecord) TokenInterest {
	tiers := make(map[string]int)
	for _, tier := range rec.wallets {
		tiers[tier]++
	}
	return TokenInterest{
		TokenMint:  mint,
		Total:      len(rec.wallets),
		TierCounts: tiers,
		FirstSeen:  rec.firstSeen,
		LastSeen:   rec.lastSeen,
	}
}

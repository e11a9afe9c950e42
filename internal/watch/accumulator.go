// internal/watch/accumulator.go
package watch

import (
	"sync"
	"time"
)

// Accumulator tracks small buys per wallet and token so that several buys
// inside a rolling window can add up to a conviction signal even when no
// single one clears the size floor.
type Accumulator struct {
	mu      sync.Mutex
	window  time.Duration
	minSOL  float64
	minBuys int
	buys    map[string][]timedBuy

	now func() time.Time
}

type timedBuy struct {
	amountSOL float64
	at        time.Time
}

func NewAccumulator(window time.Duration, minSOL float64) *Accumulator {
	return &Accumulator{
		window:  window,
		minSOL:  minSOL,
		minBuys: 2,
		buys:    make(map[string][]timedBuy),
		now:     time.Now,
	}
}

// Record adds a buy and reports whether the wallet's recent buys of this
// token now sum past the threshold. Entries older than the window are
// dropped on access.
func (a *Accumulator) Record(wallet, mint string, amountSOL float64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := wallet + ":" + mint
	now := a.now()
	cutoff := now.Add(-a.window)

	kept := a.buys[key][:0]
	for _, b := range a.buys[key] {
		if b.at.After(cutoff) {
			kept = append(kept, b)
		}
	}
	kept = append(kept, timedBuy{amountSOL: amountSOL, at: now})
	a.buys[key] = kept

	if len(kept) < a.minBuys {
		return false
	}
	var total float64
	for _, b := range kept {
		total += b.amountSOL
	}
	return total >= a.minSOL
}

// Forget clears accumulated buys for a wallet and token, so a triggered
// signal is not re-emitted by the same burst.
func (a *Accumulator) Forget(wallet, mint string) {
	a.mu.Lock()
	delete(a.buys, wallet+":"+mint)
	a.mu.Unlock()
}

// Package selector picks the best trade among per-source candidates. The
// decision is pure and deterministic: same inputs, same outcome, regardless
// of candidate ordering.
package selector

import (
	"github.com/shopspring/decimal"

	"github.com/meridianswap/trade-engine/internal/domain"
	"github.com/meridianswap/trade-engine/internal/metrics"
)

// CandidateState tells the selector how to treat a source slot.
type CandidateState uint8

const (
	// StateAbsent: the source definitively produced nothing.
	StateAbsent CandidateState = iota
	// StateSyncing: the source is still loading; the comparison cannot settle.
	StateSyncing
	// StateReady: the source produced a trade (or a definitive nil).
	StateReady
)

type Candidate struct {
	Trade *domain.Trade
	State CandidateState
}

type Outcome uint8

const (
	// NoTrade: every source definitively produced nothing.
	NoTrade Outcome = iota
	// Undecided: at least one input the comparison needs is still loading.
	Undecided
	// Selected: a winner exists.
	Selected
)

func (o Outcome) String() string {
	switch o {
	case NoTrade:
		return "no_trade"
	case Undecided:
		return "undecided"
	case Selected:
		return "selected"
	default:
		return "UNKNOWN"
	}
}

type Decision struct {
	Outcome Outcome
	Trade   *domain.Trade
}

// SelectBest ranks ready candidates by valuation and returns the winner.
// An incumbent keeps its slot unless a challenger beats it by more than the
// materiality threshold, which damps flapping between near-equal sources.
func SelectBest(candidates []Candidate, incumbent *domain.Trade, threshold domain.Percent) Decision {
	decision := selectBest(candidates, incumbent, threshold)
	metrics.SelectorDecisions.WithLabelValues(decision.Outcome.String()).Inc()
	if decision.Outcome == Selected && incumbent != nil && decision.Trade.Source != incumbent.Source {
		metrics.SelectorSwitches.Inc()
	}
	return decision
}

func selectBest(candidates []Candidate, incumbent *domain.Trade, threshold domain.Percent) Decision {
	present := make([]*domain.Trade, 0, len(candidates))
	for _, c := range candidates {
		switch c.State {
		case StateSyncing:
			return Decision{Outcome: Undecided}
		case StateReady:
			if c.Trade != nil {
				present = append(present, c.Trade)
			}
		}
	}

	if len(present) == 0 {
		return Decision{Outcome: NoTrade}
	}
	if len(present) == 1 {
		return Decision{Outcome: Selected, Trade: present[0]}
	}

	basis := valuationBasis(present)

	// With rivals in play every valuation must be known; a zero valuation
	// means the USD figure is still loading, so the comparison cannot settle.
	for _, t := range present {
		if basis(t).Sign() <= 0 {
			return Decision{Outcome: Undecided}
		}
	}

	best := present[0]
	for _, t := range present[1:] {
		if better(t, best, basis) {
			best = t
		}
	}

	if incumbent != nil {
		if current := findBySource(present, incumbent.Source); current != nil && current != best {
			// Challenger must beat the incumbent by more than the threshold.
			bar := basis(current).Mul(decimal.NewFromInt(1).Add(threshold.Decimal(18)))
			if !basis(best).GreaterThan(bar) {
				best = current
			}
		}
	}
	return Decision{Outcome: Selected, Trade: best}
}

// valuationBasis picks the comparison figure once for the whole candidate
// set: net of gas only when every present candidate carries a known gas
// cost, gross for all otherwise. A candidate is never penalized for being
// the only one whose gas cost is known.
func valuationBasis(present []*domain.Trade) func(*domain.Trade) decimal.Decimal {
	for _, t := range present {
		if t.GasCostUSD == nil {
			return (*domain.Trade).GrossValuation
		}
	}
	return (*domain.Trade).NetValuation
}

// better imposes a total order: higher valuation wins, lower source kind
// breaks ties. Order-independence falls out of the order being total.
func better(a, b *domain.Trade, basis func(*domain.Trade) decimal.Decimal) bool {
	switch basis(a).Cmp(basis(b)) {
	case 1:
		return true
	case -1:
		return false
	}
	return a.Source < b.Source
}

func findBySource(trades []*domain.Trade, source domain.SourceKind) *domain.Trade {
	for _, t := range trades {
		if t.Source == source {
			return t
		}
	}
	return nil
}

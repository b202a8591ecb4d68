package domain

import "fmt"

// Regime is the procurement-law category a tender was published under.
// The upstream API exposes each regime on its own endpoint with its own
// field names.
type Regime int

const (
	Regime44 Regime = iota + 1
	Regime223
)

// Regimes lists every regime in the order they are queried.
var Regimes = []Regime{Regime44, Regime223}

// Path is the upstream endpoint segment for the regime.
func (r Regime) Path() string {
	switch r {
	case Regime44:
		return "fz44"
	case Regime223:
		return "fz223"
	default:
		return ""
	}
}

// Label is the human readable name of the regime.
func (r Regime) Label() string {
	switch r {
	case Regime44:
		return "44-FZ"
	case Regime223:
		return "223-FZ"
	default:
		return "unknown"
	}
}

func (r Regime) String() string {
	if r.Path() == "" {
		return fmt.Sprintf("regime(%d)", int(r))
	}
	return r.Path()
}

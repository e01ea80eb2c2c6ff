// Package health detects block stream stalls and serves the pulse HTTP
// endpoints.
package health

import (
	"time"

	"github.com/vietddude/pulse/internal/core/domain"
)

// Report is the JSON body of the /health endpoint.
type Report struct {
	Status     string    `json:"status"`
	Network    string    `json:"network"`
	Instance   string    `json:"instance"`
	Processed  uint64    `json:"processed"`
	LastHeight uint64    `json:"last_height"`
	Rate       float64   `json:"rate"`
	Since      time.Time `json:"since"`
}

// Transition records a watcher state change.
type Transition struct {
	From  domain.AlertState
	To    domain.AlertState
	Rate  float64
	Count uint64
	At    time.Time
}

// NextState applies the stall rule: a non-positive rate while operating
// raises an alert, a positive rate while alerting resolves it.
func NextState(current domain.AlertState, rate float64) domain.AlertState {
	switch current {
	case domain.AlertStateOperating:
		if rate <= 0 {
			return domain.AlertStateAlerting
		}
	case domain.AlertStateAlerting:
		if rate > 0 {
			return domain.AlertStateOperating
		}
	}
	return current
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stage identifies where a split conversation currently is.
type Stage string

const (
	StageIdle              Stage = "idle"
	StageAwaitingSelection Stage = "awaiting_selection"
	StageAwaitingPartySize Stage = "awaiting_party_size"
)

// Session holds the state of one split conversation, keyed by chat.
type Session struct {
	Key            string              `json:"key"`
	Stage          Stage               `json:"stage"`
	Candidates     []MonetaryCandidate `json:"candidates,omitempty"`
	SelectedAmount *decimal.Decimal    `json:"selectedAmount,omitempty"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// IsExpired reports whether the session outlived its allowed lifetime.
func (s *Session) IsExpired(ttl time.Duration) bool {
	return time.Now().After(s.CreatedAt.Add(ttl))
}

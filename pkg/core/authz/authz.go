// Package authz owns the per-session authorization state: three
// independent confirmations (identity, verbal agreement, handshake)
// reported asynchronously by the model peer, arbitrated into a single
// at-most-once payment decision.
//
// A Machine is driven by exactly one goroutine (the session loop), so it
// carries no locking. State transitions are pure functions over State;
// the Machine adds the bookkeeping that must not be recomputed from
// state alone: readiness-notification dedup and the fired latch.
package authz

import (
	"github.com/handpact/handpact/pkg/enroll"
)

// PersonState records a resolved identification. Once set it persists
// until session end or an explicit reset; there is no lost-from-frame
// signal in this design.
type PersonState struct {
	Identified    bool    `json:"identified"`
	Name          string  `json:"name,omitempty"`
	WalletAddress string  `json:"wallet_address,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// VerbalState records the most recent verbal-agreement report. Agreed
// may toggle across the session; every report replaces the record
// wholesale, retractions included.
type VerbalState struct {
	Agreed     bool    `json:"agreed"`
	Amount     float64 `json:"amount,omitempty"`
	Quote      string  `json:"quote,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// HandshakeState records the most recent handshake report.
type HandshakeState struct {
	Active          bool    `json:"active"`
	Description     string  `json:"description,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	StableDurationS float64 `json:"stable_duration_s,omitempty"`
}

// State is the full mutable authorization record for one session.
type State struct {
	Person    PersonState    `json:"person"`
	Verbal    VerbalState    `json:"verbal"`
	Handshake HandshakeState `json:"handshake"`
}

// Ready reports whether all three confirmations currently hold. Derived,
// never stored: any one of the three may arrive last, so it is
// recomputed after every state-affecting event.
func (s State) Ready() bool {
	return s.Person.Identified && s.Verbal.Agreed && s.Handshake.Active
}

// Policy carries the configured safety bounds the machine enforces
// before accepting an execute request.
type Policy struct {
	MinAmount            float64
	MaxAmount            float64
	MinExecuteConfidence float64
}

// ExecuteRequest is the model peer's explicit request to fire the
// payment. The machine re-validates against its own state; the restated
// flags in the request are never trusted.
type ExecuteRequest struct {
	PersonDescription  string
	Amount             float64
	VerbalQuote        string
	HandshakeConfirmed bool
	OverallConfidence  float64
}

// Decision is the outcome of an execute request.
type Decision struct {
	Accepted bool
	Code     string
	Reason   string
}

// Rejection codes for execute requests.
const (
	CodePersonNotIdentified = "person_not_identified"
	CodeNoVerbalAgreement   = "no_verbal_agreement"
	CodeNoActiveHandshake   = "no_active_handshake"
	CodeAlreadyExecuted     = "already_executed"
	CodeConfidenceTooLow    = "confidence_too_low"
	CodeAmountOutOfBounds   = "amount_out_of_bounds"
)

// Candidate re-exports the enrollment record carried in emitted events.
type Candidate = enroll.Candidate

package authz

import (
	"fmt"

	"github.com/handpact/handpact/pkg/enroll"
)

// Machine arbitrates one session's authorization state. Not safe for
// concurrent use: the session loop is its only driver.
type Machine struct {
	candidates []enroll.Candidate
	policy     Policy

	state     State
	candidate Candidate
	notified  bool
	fired     bool
}

func NewMachine(candidates []enroll.Candidate, policy Policy) *Machine {
	return &Machine{
		candidates: candidates,
		policy:     policy,
	}
}

// State returns a copy of the current authorization record.
func (m *Machine) State() State { return m.state }

// Fired reports whether this session has accepted an execute request.
func (m *Machine) Fired() bool { return m.fired }

// Identify resolves a free-text reference against the enrollment
// snapshot. Unresolved references leave state unchanged and surface as
// person_unknown rather than an error.
func (m *Machine) Identify(ref string, confidence float64) []Event {
	c, ok := enroll.Match(m.candidates, ref)
	if !ok {
		return []Event{PersonUnknownEvent{Description: ref}}
	}

	m.state = Apply(m.state, IdentifyChange{Candidate: c, Confidence: confidence})
	m.candidate = c
	events := []Event{PersonIdentifiedEvent{
		Name:          c.Name,
		WalletAddress: c.WalletAddress,
		Confidence:    confidence,
	}}
	return m.appendReadiness(events)
}

// Verbal replaces the verbal record. agreed=false is a valid retraction;
// the status event is emitted either way so observers see both.
func (m *Machine) Verbal(agreed bool, amount float64, quote string, confidence float64) []Event {
	m.state = Apply(m.state, VerbalChange{
		Agreed:     agreed,
		Amount:     amount,
		Quote:      quote,
		Confidence: confidence,
	})
	events := []Event{VerbalStatusEvent{
		Agreed:     agreed,
		Amount:     amount,
		Quote:      quote,
		Confidence: confidence,
	}}
	return m.appendReadiness(events)
}

// Handshake replaces the handshake record, same pattern as Verbal.
func (m *Machine) Handshake(active bool, description string, confidence, stableDurationS float64) []Event {
	m.state = Apply(m.state, HandshakeChange{
		Active:          active,
		Description:     description,
		Confidence:      confidence,
		StableDurationS: stableDurationS,
	})
	events := []Event{HandshakeStatusEvent{
		Active:          active,
		Description:     description,
		Confidence:      confidence,
		StableDurationS: stableDurationS,
	}}
	return m.appendReadiness(events)
}

// Status is pure pass-through narration; it never mutates state.
func (m *Machine) Status(visual, audio, person string) []Event {
	return []Event{NarrationEvent{Visual: visual, Audio: audio, Person: person}}
}

// Execute handles the model peer's explicit request to fire the payment.
// The model is an unreliable signal source, so every condition is
// re-validated against the machine's own state; the restated flags in
// the request carry no weight. At most one request is ever accepted.
func (m *Machine) Execute(req ExecuteRequest) (Decision, []Event) {
	if d, ok := m.rejectExecute(req); ok {
		return d, []Event{BlockedEvent{Code: d.Code, Reason: d.Reason}}
	}

	m.fired = true
	quote := req.VerbalQuote
	if quote == "" {
		quote = m.state.Verbal.Quote
	}
	// The verbal agreement is what the parties consented to; the amount
	// restated in the request never reaches the transfer.
	ready := ReadyForPaymentEvent{
		Candidate:  m.candidate,
		Amount:     m.state.Verbal.Amount,
		Quote:      quote,
		Confidence: req.OverallConfidence,
	}
	return Decision{Accepted: true}, []Event{ready}
}

func (m *Machine) rejectExecute(req ExecuteRequest) (Decision, bool) {
	switch {
	case !m.state.Person.Identified:
		return Decision{Code: CodePersonNotIdentified, Reason: "person not identified"}, true
	case !m.state.Verbal.Agreed:
		return Decision{Code: CodeNoVerbalAgreement, Reason: "no verbal agreement"}, true
	case !m.state.Handshake.Active:
		return Decision{Code: CodeNoActiveHandshake, Reason: "no active handshake"}, true
	case m.fired:
		return Decision{Code: CodeAlreadyExecuted, Reason: "already executed this session"}, true
	case req.OverallConfidence < m.policy.MinExecuteConfidence:
		return Decision{
			Code:   CodeConfidenceTooLow,
			Reason: fmt.Sprintf("confidence too low (%.2f < %.2f)", req.OverallConfidence, m.policy.MinExecuteConfidence),
		}, true
	case m.state.Verbal.Amount < m.policy.MinAmount || m.state.Verbal.Amount > m.policy.MaxAmount:
		return Decision{
			Code:   CodeAmountOutOfBounds,
			Reason: fmt.Sprintf("agreed amount %.2f outside policy bounds [%.2f, %.2f]", m.state.Verbal.Amount, m.policy.MinAmount, m.policy.MaxAmount),
		}, true
	case req.Amount < m.policy.MinAmount || req.Amount > m.policy.MaxAmount:
		return Decision{
			Code:   CodeAmountOutOfBounds,
			Reason: fmt.Sprintf("amount %.2f outside policy bounds [%.2f, %.2f]", req.Amount, m.policy.MinAmount, m.policy.MaxAmount),
		}, true
	}
	return Decision{}, false
}

// Reset clears the authorization record without destroying the session.
// The fired latch survives: a fired session never re-arms.
func (m *Machine) Reset() {
	m.state = State{}
	m.candidate = Candidate{}
	m.notified = false
}

// appendReadiness recomputes readiness after every state-affecting event
// and appends a conditions_met notification on the transition into a new
// contiguous ready interval.
func (m *Machine) appendReadiness(events []Event) []Event {
	if !m.state.Ready() {
		m.notified = false
		return events
	}
	if m.notified || m.fired {
		return events
	}
	m.notified = true
	return append(events, ConditionsMetEvent{
		Name:       m.state.Person.Name,
		Amount:     m.state.Verbal.Amount,
		Confidence: minConfidence(m.state),
	})
}

func minConfidence(s State) float64 {
	min := s.Person.Confidence
	if s.Verbal.Confidence < min {
		min = s.Verbal.Confidence
	}
	if s.Handshake.Confidence < min {
		min = s.Handshake.Confidence
	}
	return min
}

package authz

// Event is an outbound notification emitted by the machine. The session
// layer translates these into protocol frames; the machine itself never
// touches the transport.
type Event interface {
	authzEventType() string
}

type PersonIdentifiedEvent struct {
	Name          string
	WalletAddress string
	Confidence    float64
}

func (PersonIdentifiedEvent) authzEventType() string { return "person_identified" }

type PersonUnknownEvent struct {
	Description string
}

func (PersonUnknownEvent) authzEventType() string { return "person_unknown" }

type VerbalStatusEvent struct {
	Agreed     bool
	Amount     float64
	Quote      string
	Confidence float64
}

func (VerbalStatusEvent) authzEventType() string { return "verbal_status" }

type HandshakeStatusEvent struct {
	Active          bool
	Description     string
	Confidence      float64
	StableDurationS float64
}

func (HandshakeStatusEvent) authzEventType() string { return "handshake_status" }

// NarrationEvent is observability pass-through; it never affects state.
type NarrationEvent struct {
	Visual string
	Audio  string
	Person string
}

func (NarrationEvent) authzEventType() string { return "narration" }

// ConditionsMetEvent marks a transition into all-three-true. Emitted at
// most once per contiguous ready interval, and suppressed once the
// session has fired.
type ConditionsMetEvent struct {
	Name       string
	Amount     float64
	Confidence float64
}

func (ConditionsMetEvent) authzEventType() string { return "conditions_met" }

type BlockedEvent struct {
	Code   string
	Reason string
}

func (BlockedEvent) authzEventType() string { return "blocked" }

// ReadyForPaymentEvent is the single fire signal per session. Only the
// payment gate consumes it.
type ReadyForPaymentEvent struct {
	Candidate  Candidate
	Amount     float64
	Quote      string
	Confidence float64
}

func (ReadyForPaymentEvent) authzEventType() string { return "ready_for_payment" }

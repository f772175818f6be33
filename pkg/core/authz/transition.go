package authz

// Change is a state-affecting input to Apply. The set is closed: each
// variant corresponds to one function call the model peer may issue.
type Change interface {
	changeKind() string
}

// IdentifyChange sets the person record from a resolved candidate.
type IdentifyChange struct {
	Candidate  Candidate
	Confidence float64
}

func (IdentifyChange) changeKind() string { return "identify" }

// VerbalChange replaces the verbal record wholesale.
type VerbalChange struct {
	Agreed     bool
	Amount     float64
	Quote      string
	Confidence float64
}

func (VerbalChange) changeKind() string { return "verbal" }

// HandshakeChange replaces the handshake record wholesale.
type HandshakeChange struct {
	Active          bool
	Description     string
	Confidence      float64
	StableDurationS float64
}

func (HandshakeChange) changeKind() string { return "handshake" }

// Apply returns the state after one change. Pure: the input state is
// never mutated, so transitions are testable without a running session.
func Apply(s State, ch Change) State {
	switch c := ch.(type) {
	case IdentifyChange:
		s.Person = PersonState{
			Identified:    true,
			Name:          c.Candidate.Name,
			WalletAddress: c.Candidate.WalletAddress,
			Confidence:    c.Confidence,
		}
	case VerbalChange:
		s.Verbal = VerbalState{
			Agreed:     c.Agreed,
			Amount:     c.Amount,
			Quote:      c.Quote,
			Confidence: c.Confidence,
		}
	case HandshakeChange:
		s.Handshake = HandshakeState{
			Active:          c.Active,
			Description:     c.Description,
			Confidence:      c.Confidence,
			StableDurationS: c.StableDurationS,
		}
	}
	return s
}

package model

import (
	"fmt"
	"strings"
)

// Stable function names the model may call. These are the public
// contract with the peer and must not drift.
const (
	CallUpdateStatus     = "updateStatus"
	CallIdentifyPerson   = "identifyPerson"
	CallConfirmVerbal    = "confirmVerbalAgreement"
	CallConfirmHandshake = "confirmHandshake"
	CallExecute          = "executeTransaction"
)

// Args is the closed set of typed argument records, one per callable
// function. Decoding is strict: a missing required field is an error at
// this boundary and never reaches the state machine.
type Args interface {
	argsKind() string
}

type StatusArgs struct {
	Visual string
	Audio  string
	Person string
}

func (StatusArgs) argsKind() string { return CallUpdateStatus }

type IdentifyArgs struct {
	PersonName string
	Confidence float64
}

func (IdentifyArgs) argsKind() string { return CallIdentifyPerson }

type VerbalArgs struct {
	Agreed     bool
	Amount     float64
	Quote      string
	Confidence float64
}

func (VerbalArgs) argsKind() string { return CallConfirmVerbal }

type HandshakeArgs struct {
	Active          bool
	Description     string
	Confidence      float64
	StableDurationS float64
}

func (HandshakeArgs) argsKind() string { return CallConfirmHandshake }

type ExecuteArgs struct {
	PersonDescription  string
	Amount             float64
	VerbalQuote        string
	HandshakeConfirmed bool
	OverallConfidence  float64
}

func (ExecuteArgs) argsKind() string { return CallExecute }

// UnknownArgs carries a call name outside the contract. The session logs
// it and acknowledges it as a no-op.
type UnknownArgs struct {
	Raw map[string]any
}

func (UnknownArgs) argsKind() string { return "unknown" }

// DecodeCall validates and types a raw function call.
func DecodeCall(id, name string, raw map[string]any) (Call, error) {
	call := Call{ID: id, Name: strings.TrimSpace(name)}

	switch call.Name {
	case CallUpdateStatus:
		call.Args = StatusArgs{
			Visual: optString(raw, "visualObservation"),
			Audio:  optString(raw, "audioObservation"),
			Person: optString(raw, "personDescription"),
		}
	case CallIdentifyPerson:
		personName, err := reqString(raw, "personName")
		if err != nil {
			return Call{}, err
		}
		call.Args = IdentifyArgs{
			PersonName: personName,
			Confidence: optNumber(raw, "confidence"),
		}
	case CallConfirmVerbal:
		agreed, err := reqBool(raw, "agreed")
		if err != nil {
			return Call{}, err
		}
		call.Args = VerbalArgs{
			Agreed:     agreed,
			Amount:     optNumber(raw, "amount"),
			Quote:      optString(raw, "quote"),
			Confidence: optNumber(raw, "confidence"),
		}
	case CallConfirmHandshake:
		active, err := reqBool(raw, "active")
		if err != nil {
			return Call{}, err
		}
		call.Args = HandshakeArgs{
			Active:          active,
			Description:     optString(raw, "description"),
			Confidence:      optNumber(raw, "confidence"),
			StableDurationS: optNumber(raw, "stableDurationSeconds"),
		}
	case CallExecute:
		amount, err := reqNumber(raw, "amount")
		if err != nil {
			return Call{}, err
		}
		confidence, err := reqNumber(raw, "overallConfidence")
		if err != nil {
			return Call{}, err
		}
		call.Args = ExecuteArgs{
			PersonDescription:  optString(raw, "personDescription"),
			Amount:             amount,
			VerbalQuote:        optString(raw, "verbalQuote"),
			HandshakeConfirmed: optBool(raw, "handshakeConfirmed"),
			OverallConfidence:  confidence,
		}
	default:
		call.Args = UnknownArgs{Raw: raw}
	}
	return call, nil
}

func reqString(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}

func reqBool(raw map[string]any, key string) (bool, error) {
	v, ok := raw[key]
	if !ok {
		return false, fmt.Errorf("missing required argument %q", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument %q must be a boolean", key)
	}
	return b, nil
}

func reqNumber(raw map[string]any, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", key)
	}
	n, ok := asNumber(v)
	if !ok {
		return 0, fmt.Errorf("argument %q must be a number", key)
	}
	return n, nil
}

func optString(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

func optBool(raw map[string]any, key string) bool {
	b, _ := raw[key].(bool)
	return b
}

func optNumber(raw map[string]any, key string) float64 {
	n, _ := asNumber(raw[key])
	return n
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

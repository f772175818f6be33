package model

import (
	"testing"
)

func TestDecodeCall_Identify(t *testing.T) {
	call, err := DecodeCall("fc_1", "identifyPerson", map[string]any{
		"personName": "Alice",
		"confidence": 0.93,
	})
	if err != nil {
		t.Fatalf("DecodeCall: %v", err)
	}
	args, ok := call.Args.(IdentifyArgs)
	if !ok {
		t.Fatalf("Args = %T, want IdentifyArgs", call.Args)
	}
	if args.PersonName != "Alice" || args.Confidence != 0.93 {
		t.Fatalf("args = %+v", args)
	}
}

func TestDecodeCall_IdentifyMissingName(t *testing.T) {
	if _, err := DecodeCall("fc_1", "identifyPerson", map[string]any{"confidence": 0.9}); err == nil {
		t.Fatalf("missing personName must be rejected")
	}
	if _, err := DecodeCall("fc_1", "identifyPerson", map[string]any{"personName": "   "}); err == nil {
		t.Fatalf("blank personName must be rejected")
	}
}

func TestDecodeCall_VerbalRetraction(t *testing.T) {
	call, err := DecodeCall("fc_2", "confirmVerbalAgreement", map[string]any{"agreed": false})
	if err != nil {
		t.Fatalf("retraction is valid input: %v", err)
	}
	args := call.Args.(VerbalArgs)
	if args.Agreed {
		t.Fatalf("agreed = true, want false")
	}
}

func TestDecodeCall_VerbalMissingAgreed(t *testing.T) {
	_, err := DecodeCall("fc_2", "confirmVerbalAgreement", map[string]any{
		"amount": 20.0,
		"quote":  "yes deal",
	})
	if err == nil {
		t.Fatalf("missing agreed must be rejected")
	}
}

func TestDecodeCall_Handshake(t *testing.T) {
	call, err := DecodeCall("fc_3", "confirmHandshake", map[string]any{
		"active":                true,
		"description":           "clasped hands",
		"confidence":            0.85,
		"stableDurationSeconds": 2.1,
	})
	if err != nil {
		t.Fatalf("DecodeCall: %v", err)
	}
	args := call.Args.(HandshakeArgs)
	if !args.Active || args.StableDurationS != 2.1 {
		t.Fatalf("args = %+v", args)
	}
}

func TestDecodeCall_ExecuteRequiredFields(t *testing.T) {
	_, err := DecodeCall("fc_4", "executeTransaction", map[string]any{
		"amount": 20.0,
	})
	if err == nil {
		t.Fatalf("missing overallConfidence must be rejected")
	}

	_, err = DecodeCall("fc_4", "executeTransaction", map[string]any{
		"overallConfidence": 0.9,
	})
	if err == nil {
		t.Fatalf("missing amount must be rejected")
	}

	call, err := DecodeCall("fc_4", "executeTransaction", map[string]any{
		"personDescription":  "Alice",
		"amount":             20.0,
		"verbalQuote":        "yes deal",
		"handshakeConfirmed": true,
		"overallConfidence":  0.9,
	})
	if err != nil {
		t.Fatalf("DecodeCall: %v", err)
	}
	args := call.Args.(ExecuteArgs)
	if args.Amount != 20 || !args.HandshakeConfirmed || args.OverallConfidence != 0.9 {
		t.Fatalf("args = %+v", args)
	}
}

func TestDecodeCall_IntegerAmountAccepted(t *testing.T) {
	call, err := DecodeCall("fc_5", "executeTransaction", map[string]any{
		"amount":            20,
		"overallConfidence": 0.9,
	})
	if err != nil {
		t.Fatalf("integer-typed amount should decode: %v", err)
	}
	if call.Args.(ExecuteArgs).Amount != 20 {
		t.Fatalf("amount = %v", call.Args.(ExecuteArgs).Amount)
	}
}

func TestDecodeCall_UnknownName(t *testing.T) {
	call, err := DecodeCall("fc_6", "transferEverything", map[string]any{"to": "0xEVIL"})
	if err != nil {
		t.Fatalf("unknown names decode as UnknownArgs, not errors: %v", err)
	}
	if _, ok := call.Args.(UnknownArgs); !ok {
		t.Fatalf("Args = %T, want UnknownArgs", call.Args)
	}
}

func TestRejectCall(t *testing.T) {
	call := Call{ID: "fc_7", Name: "identifyPerson"}
	resp := RejectCall(call, "missing required argument")
	if !resp.IsError || resp.ID != "fc_7" {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Body["acknowledged"] != false {
		t.Fatalf("error response must not acknowledge")
	}
}

package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

const ProtocolVersion1 = "1"

type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unsupported(message, param string) *DecodeError {
	return &DecodeError{Code: "unsupported", Message: message, Param: param}
}

// AudioFormat describes the client's microphone capture shape.
type AudioFormat struct {
	Encoding     string `json:"encoding"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Channels     int    `json:"channels"`
}

type HelloClient struct {
	Name     string `json:"name,omitempty"`
	Version  string `json:"version,omitempty"`
	Platform string `json:"platform,omitempty"`
}

type ClientHello struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Client          HelloClient `json:"client,omitempty"`
	AudioIn         AudioFormat `json:"audio_in"`
}

type ClientVideoFrame struct {
	Type        string `json:"type"`
	MimeType    string `json:"mime_type,omitempty"`
	TimestampMS *int64 `json:"timestamp_ms,omitempty"`
	DataB64     string `json:"data_b64"`
}

type ClientAudioChunk struct {
	Type        string `json:"type"`
	Seq         int64  `json:"seq,omitempty"`
	TimestampMS *int64 `json:"timestamp_ms,omitempty"`
	DataB64     string `json:"data_b64"`
}

type ClientControl struct {
	Type string `json:"type"`
	Op   string `json:"op"`
}

// Control operations.
const (
	ControlStart = "start"
	ControlStop  = "stop"
	ControlReset = "reset"
)

func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case "hello":
		var msg ClientHello
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid hello frame", "")
		}
		if err := ValidateHello(msg); err != nil {
			return nil, err
		}
		return msg, nil
	case "video_frame":
		var msg ClientVideoFrame
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid video_frame", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("video_frame.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "audio_chunk":
		var msg ClientAudioChunk
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_chunk", "")
		}
		if strings.TrimSpace(msg.DataB64) == "" {
			return nil, badRequest("audio_chunk.data_b64 is required", "data_b64")
		}
		return msg, nil
	case "control":
		var msg ClientControl
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid control", "")
		}
		op := strings.TrimSpace(msg.Op)
		if op == "" {
			return nil, badRequest("control.op is required", "op")
		}
		switch op {
		case ControlStart, ControlStop, ControlReset:
		default:
			return nil, unsupported("unsupported control operation", "op")
		}
		msg.Op = op
		return msg, nil
	default:
		return nil, badRequest("unsupported message type", "type")
	}
}

func ValidateHello(msg ClientHello) error {
	if strings.TrimSpace(msg.ProtocolVersion) == "" {
		return badRequest("hello.protocol_version is required", "protocol_version")
	}
	if msg.ProtocolVersion != ProtocolVersion1 {
		return unsupported("unsupported protocol version", "protocol_version")
	}
	if strings.TrimSpace(msg.AudioIn.Encoding) == "" {
		return badRequest("hello.audio_in.encoding is required", "audio_in.encoding")
	}
	if !strings.EqualFold(msg.AudioIn.Encoding, "pcm16") {
		return unsupported("unsupported audio encoding", "audio_in.encoding")
	}
	if msg.AudioIn.SampleRateHz != 16000 {
		return unsupported("audio_in.sample_rate_hz must be 16000", "audio_in.sample_rate_hz")
	}
	if msg.AudioIn.Channels != 1 {
		return unsupported("audio_in.channels must be 1", "audio_in.channels")
	}
	return nil
}

type HelloAckLimits struct {
	MinAmount           float64 `json:"min_amount"`
	MaxAmount           float64 `json:"max_amount"`
	VideoThrottleMS     int     `json:"video_throttle_ms"`
	AudioBufferMS       int     `json:"audio_buffer_ms"`
	MaxVideoFrameBytes  int64   `json:"max_video_frame_bytes"`
	MaxAudioChunkBytes  int64   `json:"max_audio_chunk_bytes"`
	MaxJSONMessageBytes int64   `json:"max_json_message_bytes"`
}

type ServerHelloAck struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Candidates      int            `json:"candidates"`
	Limits          HelloAckLimits `json:"limits"`
}

type ServerError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Close   bool   `json:"close,omitempty"`
}

type ServerWarning struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ServerNarration struct {
	Type   string `json:"type"`
	Visual string `json:"visual,omitempty"`
	Audio  string `json:"audio,omitempty"`
	Person string `json:"person,omitempty"`
	Text   string `json:"text,omitempty"`
}

type ServerPersonIdentified struct {
	Type          string  `json:"type"`
	Name          string  `json:"name"`
	WalletAddress string  `json:"wallet_address"`
	Confidence    float64 `json:"confidence"`
}

type ServerPersonUnknown struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type ServerVerbalStatus struct {
	Type       string  `json:"type"`
	Agreed     bool    `json:"agreed"`
	Amount     float64 `json:"amount"`
	Quote      string  `json:"quote,omitempty"`
	Confidence float64 `json:"confidence"`
}

type ServerHandshakeStatus struct {
	Type            string  `json:"type"`
	Active          bool    `json:"active"`
	Description     string  `json:"description,omitempty"`
	Confidence      float64 `json:"confidence"`
	StableDurationS float64 `json:"stable_duration_s,omitempty"`
}

type ServerConditionsMet struct {
	Type       string  `json:"type"`
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Confidence float64 `json:"confidence"`
}

type ServerReadyForPayment struct {
	Type          string  `json:"type"`
	Name          string  `json:"name"`
	WalletAddress string  `json:"wallet_address"`
	Amount        float64 `json:"amount"`
	Quote         string  `json:"quote,omitempty"`
	Confidence    float64 `json:"confidence"`
}

type ServerBlocked struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type ServerPaymentComplete struct {
	Type          string  `json:"type"`
	Name          string  `json:"name"`
	WalletAddress string  `json:"wallet_address"`
	Amount        float64 `json:"amount"`
	TxID          string  `json:"tx_id"`
	Status        string  `json:"status"`
}

type ServerPaymentFailed struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

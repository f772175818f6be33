// Package model abstracts the multimodal model peer: the external
// service that consumes the session's video and audio and reports
// observations back as named function calls.
package model

import (
	"context"

	"github.com/handpact/handpact/pkg/enroll"
)

// Peer is one live connection to the model. A session owns exactly one
// peer; closing the session closes the peer.
type Peer interface {
	// SendVideo forwards one encoded video frame. Fire-and-forget with
	// respect to the model's reasoning turn.
	SendVideo(ctx context.Context, data []byte, mimeType string) error

	// SendAudio forwards one buffered run of PCM16 @16kHz mono audio.
	SendAudio(ctx context.Context, pcm []byte) error

	// Respond answers a function call. Every call must be answered or the
	// model's turn stalls indefinitely; this is a protocol requirement of
	// the peer, not an optimization.
	Respond(ctx context.Context, resp CallResponse) error

	// Calls yields decoded function calls. Closed when the connection ends.
	Calls() <-chan Call

	// Notes yields free-text narration outside the function-call protocol.
	Notes() <-chan string

	// Err returns the terminal connection error, if any, after Calls closes.
	Err() error

	Close() error
}

// Dialer opens peer connections. The enrollment roster is transmitted
// once as initial context so the model can recognize candidates.
type Dialer interface {
	Dial(ctx context.Context, roster []enroll.Candidate) (Peer, error)
}

// Call is one decoded function call from the peer.
type Call struct {
	ID   string
	Name string
	Args Args
}

// CallResponse is the structured reply fed back into the model's context.
type CallResponse struct {
	ID      string
	Name    string
	Body    map[string]any
	IsError bool
}

// Ack builds the minimal acknowledged response for a call.
func Ack(call Call) CallResponse {
	return CallResponse{
		ID:   call.ID,
		Name: call.Name,
		Body: map[string]any{"acknowledged": true},
	}
}

// RejectCall builds an error response without crashing the session; the
// model sees the reason and can correct itself on its next turn.
func RejectCall(call Call, reason string) CallResponse {
	return CallResponse{
		ID:      call.ID,
		Name:    call.Name,
		Body:    map[string]any{"acknowledged": false, "error": reason},
		IsError: true,
	}
}

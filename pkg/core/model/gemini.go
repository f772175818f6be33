package model

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"google.golang.org/genai"

	"github.com/handpact/handpact/pkg/enroll"
)

const (
	defaultGeminiModel = "gemini-2.0-flash-live-001"

	monitorSystemPrompt = "You are monitoring a live conversation between two people negotiating a small payment. " +
		"Watch the video and listen to the audio continuously. Report what you observe with updateStatus. " +
		"When you recognize an enrolled person by name, call identifyPerson. When you hear an explicit verbal " +
		"agreement on a payment (or hear it withdrawn), call confirmVerbalAgreement with the agreed amount and an exact quote. " +
		"When you see the two people shaking hands (or see the handshake end), call confirmHandshake. " +
		"Only after you have observed an identified person, a verbal agreement, and an active handshake at the same time, " +
		"call executeTransaction. Report retractions as promptly as confirmations."
)

// GeminiConfig configures the Gemini Live peer.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiDialer opens Gemini Live connections.
type GeminiDialer struct {
	cfg    GeminiConfig
	logger *slog.Logger
}

func NewGeminiDialer(cfg GeminiConfig, logger *slog.Logger) (*GeminiDialer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultGeminiModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiDialer{cfg: cfg, logger: logger}, nil
}

// Dial connects, declares the function set, and transmits the enrollment
// roster (names, wallets, reference images) as initial context.
func (d *GeminiDialer) Dial(ctx context.Context, roster []enroll.Candidate) (Peer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  d.cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	session, err := client.Live.Connect(ctx, d.cfg.Model, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityText},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: monitorSystemPrompt}},
		},
		Tools: []*genai.Tool{{FunctionDeclarations: functionDeclarations()}},
	})
	if err != nil {
		return nil, fmt.Errorf("connect gemini live: %w", err)
	}

	p := &geminiPeer{
		session: session,
		logger:  d.logger,
		calls:   make(chan Call, 64),
		notes:   make(chan string, 64),
		done:    make(chan struct{}),
	}

	if err := p.sendRoster(roster); err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("send enrollment roster: %w", err)
	}

	go p.readLoop()
	return p, nil
}

type geminiPeer struct {
	session *genai.Session
	logger  *slog.Logger

	calls chan Call
	notes chan string
	done  chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

func (p *geminiPeer) sendRoster(roster []enroll.Candidate) error {
	var sb strings.Builder
	sb.WriteString("Enrolled people eligible to receive a payment:\n")
	for _, c := range roster {
		fmt.Fprintf(&sb, "- %s (wallet %s)\n", c.Name, c.WalletAddress)
	}
	sb.WriteString("Reference images for each enrolled person follow. Only identify people from this list.")

	parts := []*genai.Part{{Text: sb.String()}}
	for _, c := range roster {
		for _, img := range c.ReferenceImages {
			parts = append(parts, &genai.Part{
				InlineData: &genai.Blob{Data: []byte(img), MIMEType: "image/jpeg"},
			})
		}
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.session.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{{Role: genai.RoleUser, Parts: parts}},
	})
}

func (p *geminiPeer) SendVideo(ctx context.Context, data []byte, mimeType string) error {
	if err := p.checkOpen(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(mimeType) == "" {
		mimeType = "image/jpeg"
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Video: &genai.Blob{Data: data, MIMEType: mimeType},
	})
}

func (p *geminiPeer) SendAudio(ctx context.Context, pcm []byte) error {
	if err := p.checkOpen(ctx); err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: "audio/pcm;rate=16000"},
	})
}

func (p *geminiPeer) Respond(ctx context.Context, resp CallResponse) error {
	if err := p.checkOpen(ctx); err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       resp.ID,
			Name:     resp.Name,
			Response: resp.Body,
		}},
	})
}

func (p *geminiPeer) Calls() <-chan Call { return p.calls }

func (p *geminiPeer) Notes() <-chan string { return p.notes }

func (p *geminiPeer) Err() error {
	<-p.done
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *geminiPeer) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		_ = p.session.Close()
	})
	<-p.done
	return nil
}

func (p *geminiPeer) checkOpen(ctx context.Context) error {
	if p.closed.Load() {
		return fmt.Errorf("model peer is closed")
	}
	return ctx.Err()
}

func (p *geminiPeer) setErr(err error) {
	if err == nil {
		return
	}
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

func (p *geminiPeer) readLoop() {
	defer close(p.done)
	defer close(p.calls)
	defer close(p.notes)

	for {
		msg, err := p.session.Receive()
		if err != nil {
			if !p.closed.Load() {
				p.setErr(err)
			}
			return
		}
		if msg == nil {
			continue
		}

		if msg.ToolCall != nil {
			for _, fc := range msg.ToolCall.FunctionCalls {
				if fc == nil {
					continue
				}
				call, err := DecodeCall(fc.ID, fc.Name, fc.Args)
				if err != nil {
					// Malformed args: answer immediately so the model's
					// turn does not stall, and keep state untouched.
					p.logger.Warn("malformed function call", "name", fc.Name, "error", err)
					_ = p.Respond(context.Background(), RejectCall(Call{ID: fc.ID, Name: fc.Name}, err.Error()))
					continue
				}
				select {
				case p.calls <- call:
				case <-p.done:
					return
				}
			}
		}

		if msg.ServerContent != nil && msg.ServerContent.ModelTurn != nil {
			for _, part := range msg.ServerContent.ModelTurn.Parts {
				if part == nil || strings.TrimSpace(part.Text) == "" {
					continue
				}
				select {
				case p.notes <- part.Text:
				default:
					// Narration is best effort; never block the read loop on it.
				}
			}
		}
	}
}

func functionDeclarations() []*genai.FunctionDeclaration {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}
	num := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeNumber, Description: desc}
	}
	boolean := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeBoolean, Description: desc}
	}

	return []*genai.FunctionDeclaration{
		{
			Name:        CallUpdateStatus,
			Description: "Report what is currently visible and audible. Call this regularly.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"visualObservation": str("What is visible in the video right now."),
					"audioObservation":  str("What was just heard in the audio."),
					"personDescription": str("Free-text description of any person in frame."),
				},
			},
		},
		{
			Name:        CallIdentifyPerson,
			Description: "Report that a person in frame matches an enrolled person.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"personName": str("Name of the enrolled person recognized."),
					"confidence": num("Recognition confidence between 0 and 1."),
				},
				Required: []string{"personName"},
			},
		},
		{
			Name:        CallConfirmVerbal,
			Description: "Report a verbal payment agreement being made or withdrawn.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"agreed":     boolean("True when an agreement was heard, false when it was withdrawn."),
					"amount":     num("Agreed payment amount."),
					"quote":      str("Exact words heard."),
					"confidence": num("Confidence between 0 and 1."),
				},
				Required: []string{"agreed"},
			},
		},
		{
			Name:        CallConfirmHandshake,
			Description: "Report a handshake starting or ending.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"active":                boolean("True while the handshake is visibly held."),
					"description":           str("What the handshake looks like."),
					"confidence":            num("Confidence between 0 and 1."),
					"stableDurationSeconds": num("How long the handshake has been held."),
				},
				Required: []string{"active"},
			},
		},
		{
			Name:        CallExecute,
			Description: "Request the payment. Only call when identity, verbal agreement, and handshake all hold simultaneously.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"personDescription":  str("Who the payment goes to."),
					"amount":             num("Payment amount."),
					"verbalQuote":        str("Exact words of the agreement."),
					"handshakeConfirmed": boolean("Whether the handshake is currently held."),
					"overallConfidence":  num("Overall confidence between 0 and 1."),
				},
				Required: []string{"amount", "overallConfidence"},
			},
		},
	}
}

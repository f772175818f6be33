package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/handpact/handpact/pkg/core/authz"
	"github.com/handpact/handpact/pkg/core/model"
	"github.com/handpact/handpact/pkg/core/payment"
	"github.com/handpact/handpact/pkg/enroll"
	"github.com/handpact/handpact/pkg/gateway/live/protocol"
)

const outboundPriorityQueueSize = 8

var errBackpressure = errors.New("live outbound backpressure")

type Config struct {
	Policy              authz.Policy
	VideoThrottle       time.Duration
	AudioBuffer         time.Duration
	MaxVideoFrameBytes  int64
	MaxAudioChunkBytes  int64
	MaxJSONMessageBytes int64
	PingInterval        time.Duration
	WriteTimeout        time.Duration
	ReadTimeout         time.Duration
	MaxSessionDuration  time.Duration
	OutboundQueueSize   int
}

type Dependencies struct {
	Conn       *websocket.Conn
	Logger     *slog.Logger
	Peer       model.Peer
	Gate       *payment.Gate
	Candidates []enroll.Candidate
	SessionID  string
	RequestID  string
	Config     Config
	StartTime  time.Time
	Now        func() time.Time
}

// LiveSession owns one browser connection and its model peer. All state
// mutation happens on the Run goroutine: inbound frames and model calls
// are serialized through one select loop, so the machine needs no locks
// and calls are arbitrated in arrival order.
type LiveSession struct {
	conn      *websocket.Conn
	logger    *slog.Logger
	peer      model.Peer
	gate      *payment.Gate
	machine   *authz.Machine
	sessionID string
	requestID string
	cfg       Config
	startTime time.Time
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	outboundPriority chan outboundFrame
	outboundNormal   chan outboundFrame

	started  bool
	throttle *videoThrottle
	audio    *audioAccumulator
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

func New(deps Dependencies) (*LiveSession, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("connection is required")
	}
	if deps.Peer == nil {
		return nil, fmt.Errorf("model peer is required")
	}
	if deps.Gate == nil {
		return nil, fmt.Errorf("payment gate is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.OutboundQueueSize <= 0 {
		deps.Config.OutboundQueueSize = 128
	}
	if deps.StartTime.IsZero() {
		deps.StartTime = time.Now()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LiveSession{
		conn:             deps.Conn,
		logger:           deps.Logger,
		peer:             deps.Peer,
		gate:             deps.Gate,
		machine:          authz.NewMachine(deps.Candidates, deps.Config.Policy),
		sessionID:        deps.SessionID,
		requestID:        deps.RequestID,
		cfg:              deps.Config,
		startTime:        deps.StartTime,
		now:              deps.Now,
		ctx:              ctx,
		cancel:           cancel,
		outboundPriority: make(chan outboundFrame, outboundPriorityQueueSize),
		outboundNormal:   make(chan outboundFrame, deps.Config.OutboundQueueSize),
		throttle:         newVideoThrottle(deps.Config.VideoThrottle),
		audio:            newAudioAccumulator(deps.Config.AudioBuffer),
	}, nil
}

func (s *LiveSession) Run() error {
	defer s.cancel()
	defer s.peer.Close()

	if s.cfg.MaxJSONMessageBytes > 0 {
		s.conn.SetReadLimit(s.cfg.MaxJSONMessageBytes)
	}
	if s.cfg.ReadTimeout > 0 {
		_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		})
	}

	readCh := make(chan inboundFrame, 64)
	writerErrCh := make(chan error, 1)
	go s.readLoop(readCh)
	go func() {
		w := outboundWriter{
			ws:       s.conn,
			ctx:      s.ctx,
			cfg:      s.cfg,
			priority: s.outboundPriority,
			normal:   s.outboundNormal,
		}
		writerErrCh <- w.Run()
		close(writerErrCh)
	}()

	flushAndClose := func() {
		s.cancel()
		wait := 100 * time.Millisecond
		if s.cfg.WriteTimeout > 0 && s.cfg.WriteTimeout < wait {
			wait = s.cfg.WriteTimeout
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-writerErrCh:
		case <-timer.C:
		}
	}

	var deadlineCh <-chan time.Time
	if s.cfg.MaxSessionDuration > 0 {
		deadlineTimer := time.NewTimer(s.cfg.MaxSessionDuration)
		defer deadlineTimer.Stop()
		deadlineCh = deadlineTimer.C
	}

	callsCh := s.peer.Calls()
	notesCh := s.peer.Notes()

	for {
		select {
		case <-s.ctx.Done():
			flushAndClose()
			return nil

		case err := <-writerErrCh:
			s.cancel()
			if err != nil {
				return fmt.Errorf("outbound writer: %w", err)
			}
			return nil

		case <-deadlineCh:
			_ = s.sendError("session_timeout", "maximum session duration reached", true)
			flushAndClose()
			return nil

		case frame, ok := <-readCh:
			if !ok {
				flushAndClose()
				return nil
			}
			if frame.err != nil {
				flushAndClose()
				if websocket.IsCloseError(frame.err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					return nil
				}
				return fmt.Errorf("read client frame: %w", frame.err)
			}
			if err := s.handleInbound(frame); err != nil {
				_ = s.sendError("model_peer_error", "model connection lost", true)
				flushAndClose()
				return err
			}

		case call, ok := <-callsCh:
			if !ok {
				err := s.peer.Err()
				_ = s.sendError("model_peer_error", "model connection closed", true)
				flushAndClose()
				if err != nil {
					return fmt.Errorf("model peer: %w", err)
				}
				return nil
			}
			if err := s.handleCall(call); err != nil {
				_ = s.sendError("model_peer_error", "model connection lost", true)
				flushAndClose()
				return err
			}

		case note, ok := <-notesCh:
			if !ok {
				notesCh = nil
				continue
			}
			_ = s.sendJSON(protocol.ServerNarration{Type: "narration", Text: note})
		}
	}
}

func (s *LiveSession) readLoop(out chan<- inboundFrame) {
	defer close(out)
	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case out <- inboundFrame{err: err}:
			case <-s.ctx.Done():
			}
			return
		}
		select {
		case out <- inboundFrame{messageType: messageType, data: data}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *LiveSession) handleInbound(frame inboundFrame) error {
	if frame.messageType == websocket.BinaryMessage {
		_ = s.sendWarning("unsupported_frame", "binary frames are not supported")
		return nil
	}

	msg, err := protocol.DecodeClientMessage(frame.data)
	if err != nil {
		var decErr *protocol.DecodeError
		if errors.As(err, &decErr) {
			_ = s.sendError(decErr.Code, decErr.Error(), false)
			return nil
		}
		_ = s.sendError("bad_request", "invalid frame", false)
		return nil
	}

	switch m := msg.(type) {
	case protocol.ClientHello:
		_ = s.sendWarning("already_connected", "hello was already exchanged")
		return nil
	case protocol.ClientVideoFrame:
		return s.handleVideoFrame(m)
	case protocol.ClientAudioChunk:
		return s.handleAudioChunk(m)
	case protocol.ClientControl:
		return s.handleControl(m)
	default:
		_ = s.sendError("bad_request", "unsupported message type", false)
		return nil
	}
}

func (s *LiveSession) handleVideoFrame(m protocol.ClientVideoFrame) error {
	if !s.started {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(m.DataB64)
	if err != nil {
		_ = s.sendError("bad_request", "video_frame.data_b64 is not valid base64", false)
		return nil
	}
	if s.cfg.MaxVideoFrameBytes > 0 && int64(len(data)) > s.cfg.MaxVideoFrameBytes {
		_ = s.sendWarning("frame_too_large", "video frame exceeds size limit, dropped")
		return nil
	}
	if !s.throttle.Allow(s.now()) {
		return nil
	}
	mime := m.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	return s.peer.SendVideo(s.ctx, data, mime)
}

func (s *LiveSession) handleAudioChunk(m protocol.ClientAudioChunk) error {
	if !s.started {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(m.DataB64)
	if err != nil {
		_ = s.sendError("bad_request", "audio_chunk.data_b64 is not valid base64", false)
		return nil
	}
	if s.cfg.MaxAudioChunkBytes > 0 && int64(len(data)) > s.cfg.MaxAudioChunkBytes {
		_ = s.sendWarning("frame_too_large", "audio chunk exceeds size limit, dropped")
		return nil
	}
	unit := s.audio.Append(data)
	if unit == nil {
		return nil
	}
	return s.peer.SendAudio(s.ctx, unit)
}

func (s *LiveSession) handleControl(m protocol.ClientControl) error {
	switch m.Op {
	case protocol.ControlStart:
		// Idempotent: a second start changes nothing.
		s.started = true
	case protocol.ControlStop:
		s.started = false
		s.audio.Discard()
		s.throttle.Reset()
	case protocol.ControlReset:
		s.machine.Reset()
		s.audio.Discard()
		s.throttle.Reset()
		s.logger.Info("session reset", "session_id", s.sessionID)
	}
	return nil
}

// handleCall runs one model function call through the machine, emits
// the resulting frames, and answers the call. Every call is answered:
// an unanswered call stalls the model's turn.
func (s *LiveSession) handleCall(call model.Call) error {
	switch args := call.Args.(type) {
	case model.StatusArgs:
		s.emitEvents(s.machine.Status(args.Visual, args.Audio, args.Person))
		return s.respond(model.Ack(call))

	case model.IdentifyArgs:
		events := s.machine.Identify(args.PersonName, args.Confidence)
		s.emitEvents(events)
		body := map[string]any{"acknowledged": true, "matched": false}
		for _, ev := range events {
			if id, ok := ev.(authz.PersonIdentifiedEvent); ok {
				body["matched"] = true
				body["name"] = id.Name
			}
		}
		return s.respond(model.CallResponse{ID: call.ID, Name: call.Name, Body: body})

	case model.VerbalArgs:
		s.emitEvents(s.machine.Verbal(args.Agreed, args.Amount, args.Quote, args.Confidence))
		return s.respond(model.Ack(call))

	case model.HandshakeArgs:
		s.emitEvents(s.machine.Handshake(args.Active, args.Description, args.Confidence, args.StableDurationS))
		return s.respond(model.Ack(call))

	case model.ExecuteArgs:
		return s.handleExecute(call, args)

	case model.UnknownArgs:
		s.logger.Warn("unknown function call", "session_id", s.sessionID, "name", call.Name)
		return s.respond(model.Ack(call))

	default:
		return s.respond(model.RejectCall(call, "unhandled call"))
	}
}

func (s *LiveSession) handleExecute(call model.Call, args model.ExecuteArgs) error {
	decision, events := s.machine.Execute(authz.ExecuteRequest{
		PersonDescription:  args.PersonDescription,
		Amount:             args.Amount,
		VerbalQuote:        args.VerbalQuote,
		HandshakeConfirmed: args.HandshakeConfirmed,
		OverallConfidence:  args.OverallConfidence,
	})

	var ready *authz.ReadyForPaymentEvent
	for _, ev := range events {
		if r, ok := ev.(authz.ReadyForPaymentEvent); ok {
			r := r
			ready = &r
			continue
		}
		s.emitEvent(ev)
	}

	if !decision.Accepted {
		s.logger.Info("execute rejected",
			"session_id", s.sessionID,
			"code", decision.Code,
			"amount", args.Amount,
		)
		return s.respond(model.RejectCall(call, decision.Reason))
	}
	if ready == nil {
		return s.respond(model.RejectCall(call, "authorization did not produce a payment"))
	}
	if args.Amount != ready.Amount {
		s.logger.Warn("restated amount differs from verbal agreement",
			"session_id", s.sessionID,
			"restated_amount", args.Amount,
			"agreed_amount", ready.Amount,
		)
	}

	_ = s.sendJSONPriority(protocol.ServerReadyForPayment{
		Type:          "ready_for_payment",
		Name:          ready.Candidate.Name,
		WalletAddress: ready.Candidate.WalletAddress,
		Amount:        ready.Amount,
		Quote:         ready.Quote,
		Confidence:    ready.Confidence,
	})

	outcome := s.gate.Fire(s.ctx, payment.Request{
		RecipientName: ready.Candidate.Name,
		WalletAddress: ready.Candidate.WalletAddress,
		Amount:        ready.Amount,
		Memo:          ready.Quote,
	})

	switch outcome.Status {
	case payment.StatusComplete:
		_ = s.sendJSONPriority(protocol.ServerPaymentComplete{
			Type:          "payment_complete",
			Name:          ready.Candidate.Name,
			WalletAddress: ready.Candidate.WalletAddress,
			Amount:        ready.Amount,
			TxID:          outcome.Receipt.TxID,
			Status:        outcome.Receipt.Status,
		})
		return s.respond(model.CallResponse{ID: call.ID, Name: call.Name, Body: map[string]any{
			"acknowledged": true,
			"status":       "complete",
			"tx_id":        outcome.Receipt.TxID,
		}})
	case payment.StatusBlocked:
		_ = s.sendJSONPriority(protocol.ServerBlocked{Type: "blocked", Code: "payment_blocked", Reason: outcome.Reason})
		return s.respond(model.RejectCall(call, outcome.Reason))
	default:
		_ = s.sendJSONPriority(protocol.ServerPaymentFailed{Type: "payment_failed", Amount: ready.Amount, Reason: outcome.Reason})
		return s.respond(model.RejectCall(call, outcome.Reason))
	}
}

func (s *LiveSession) emitEvents(events []authz.Event) {
	for _, ev := range events {
		s.emitEvent(ev)
	}
}

func (s *LiveSession) emitEvent(ev authz.Event) {
	switch e := ev.(type) {
	case authz.NarrationEvent:
		_ = s.sendJSON(protocol.ServerNarration{Type: "narration", Visual: e.Visual, Audio: e.Audio, Person: e.Person})
	case authz.PersonIdentifiedEvent:
		_ = s.sendJSON(protocol.ServerPersonIdentified{
			Type:          "person_identified",
			Name:          e.Name,
			WalletAddress: e.WalletAddress,
			Confidence:    e.Confidence,
		})
	case authz.PersonUnknownEvent:
		_ = s.sendJSON(protocol.ServerPersonUnknown{Type: "person_unknown", Description: e.Description})
	case authz.VerbalStatusEvent:
		_ = s.sendJSON(protocol.ServerVerbalStatus{
			Type:       "verbal_status",
			Agreed:     e.Agreed,
			Amount:     e.Amount,
			Quote:      e.Quote,
			Confidence: e.Confidence,
		})
	case authz.HandshakeStatusEvent:
		_ = s.sendJSON(protocol.ServerHandshakeStatus{
			Type:            "handshake_status",
			Active:          e.Active,
			Description:     e.Description,
			Confidence:      e.Confidence,
			StableDurationS: e.StableDurationS,
		})
	case authz.ConditionsMetEvent:
		_ = s.sendJSONPriority(protocol.ServerConditionsMet{
			Type:       "conditions_met",
			Name:       e.Name,
			Amount:     e.Amount,
			Confidence: e.Confidence,
		})
	case authz.BlockedEvent:
		_ = s.sendJSONPriority(protocol.ServerBlocked{Type: "blocked", Code: e.Code, Reason: e.Reason})
	}
}

func (s *LiveSession) respond(resp model.CallResponse) error {
	return s.peer.Respond(s.ctx, resp)
}

func (s *LiveSession) sendWarning(code, message string) error {
	return s.sendJSON(protocol.ServerWarning{Type: "warning", Code: code, Message: message})
}

func (s *LiveSession) sendError(code, message string, close bool) error {
	msg := protocol.ServerError{Type: "error", Code: code, Message: message, Close: close}
	if close {
		return s.sendJSONPriority(msg)
	}
	return s.sendJSON(msg)
}

func (s *LiveSession) sendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueueNormal(outboundFrame{payload: payload})
}

func (s *LiveSession) sendJSONPriority(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.enqueuePriority(outboundFrame{payload: payload})
}

func (s *LiveSession) enqueueNormal(frame outboundFrame) error {
	select {
	case s.outboundNormal <- frame:
		return nil
	default:
		// Narration and status frames are advisory; losing one under
		// backpressure is preferable to stalling arbitration.
		return errBackpressure
	}
}

func (s *LiveSession) enqueuePriority(frame outboundFrame) error {
	for i := 0; i < 4; i++ {
		select {
		case s.outboundPriority <- frame:
			return nil
		default:
		}
		select {
		case <-s.outboundPriority:
		default:
		}
	}
	select {
	case s.outboundPriority <- frame:
		return nil
	default:
		return errBackpressure
	}
}

// Cancel hard-stops the session. Used by the tracker at shutdown.
func (s *LiveSession) Cancel() {
	if s == nil || s.cancel == nil {
		return
	}
	s.cancel()
}

// SendWarning is the tracker-facing warning hook.
func (s *LiveSession) SendWarning(code, message string) error {
	if s == nil {
		return nil
	}
	return s.sendWarning(code, message)
}

package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/infrastructure/signal"

	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const dataChannelLabel = "meetrelay"

var ErrMeetingRejected = errors.New("relay rejected the meeting")

type SessionConfig struct {
	MeetingID    domain.MeetingID
	DisplayName  string
	ICEServers   []string
	ReofferDelay time.Duration
}

// Session is one peer's participation in a meeting: a pion PeerConnection
// negotiated through the relay. Role is fixed when the session is created.
type Session struct {
	meetingID  domain.MeetingID
	role       domain.Role
	signal     *SignalClient
	pc         *webrtc.PeerConnection
	negotiator *Negotiator
	logger     *zap.SugaredLogger

	mu                sync.Mutex
	pendingCandidates []webrtc.ICECandidateInit
	channel           *webrtc.DataChannel

	messages chan string
	opened   chan struct{}
	openOnce sync.Once
}

// NewSession looks the meeting up, decides the role and prepares the peer
// connection. Nothing is sent on the signal client until Run.
func NewSession(ctx context.Context, dir *DirectoryClient, sig *SignalClient, cfg SessionConfig, logger *zap.SugaredLogger) (*Session, error) {
	record, err := dir.GetMeeting(ctx, cfg.MeetingID)
	if err != nil {
		return nil, err
	}
	role := domain.DetermineRole(record, cfg.DisplayName)

	var iceServers []webrtc.ICEServer
	if len(cfg.ICEServers) > 0 {
		iceServers = []webrtc.ICEServer{{URLs: cfg.ICEServers}}
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	s := &Session{
		meetingID: cfg.MeetingID,
		role:      role,
		signal:    sig,
		pc:        pc,
		logger:    logger.With("meeting_id", cfg.MeetingID, "role", role, "conn_id", sig.ID()),
		messages:  make(chan string, 16),
		opened:    make(chan struct{}),
	}
	s.negotiator = NewNegotiator(role, cfg.ReofferDelay, s.sendOffer, s.sendAnswer, s.logger)

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if err := sig.SendCandidate(s.meetingID, c.ToJSON()); err != nil {
			s.logger.Debugw("failed to send candidate", "error", err)
		}
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Infow("peer connection state changed", "state", state.String())
		s.negotiator.StateChanged(domain.PeerConnectionState(state.String()))
	})

	if role.IsHost() {
		dc, err := pc.CreateDataChannel(dataChannelLabel, nil)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("failed to create data channel: %w", err)
		}
		s.attach(dc)
	} else {
		pc.OnDataChannel(s.attach)
	}

	return s, nil
}

func (s *Session) Role() domain.Role {
	return s.role
}

// Messages carries text received on the data channel.
func (s *Session) Messages() <-chan string {
	return s.messages
}

// Opened is closed once the data channel is usable.
func (s *Session) Opened() <-chan struct{} {
	return s.opened
}

func (s *Session) Send(text string) error {
	s.mu.Lock()
	dc := s.channel
	s.mu.Unlock()
	if dc == nil {
		return errors.New("data channel not open")
	}
	return dc.SendText(text)
}

// Run joins the meeting and processes relay events until ctx ends, the
// relay rejects the join or the signal connection drops.
func (s *Session) Run(ctx context.Context) error {
	if err := s.signal.Join(s.meetingID); err != nil {
		return err
	}
	s.negotiator.Start()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-s.signal.Events():
			if !ok {
				return ErrClientClosed
			}
			if err := s.handle(msg); err != nil {
				if errors.Is(err, ErrMeetingRejected) {
					return err
				}
				s.logger.Warnw("failed to handle relay event", "type", msg.Type, "error", err)
			}
		}
	}
}

// Close leaves the meeting and tears the peer connection down.
func (s *Session) Close() error {
	s.negotiator.Close()
	_ = s.signal.Leave(s.meetingID)
	return s.pc.Close()
}

func (s *Session) handle(msg signal.Message) error {
	switch msg.Type {
	case domain.EventUserJoined:
		var p struct {
			ID domain.ConnectionID `json:"id"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		s.negotiator.PeerJoined(p.ID)

	case domain.EventUserLeft:
		s.logger.Infow("peer left", "payload", string(msg.Payload))

	case domain.EventReceiveOffer:
		var p struct {
			Offer json.RawMessage `json:"offer"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		s.negotiator.OfferReceived(p.Offer)

	case domain.EventReceiveAnswer:
		var p struct {
			Answer webrtc.SessionDescription `json:"answer"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		if s.pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
			s.logger.Debugw("ignoring answer without a pending offer")
			return nil
		}
		if err := s.pc.SetRemoteDescription(p.Answer); err != nil {
			return fmt.Errorf("failed to apply answer: %w", err)
		}
		s.flushCandidates()

	case domain.EventReceiveICECandidate:
		var p struct {
			Candidate webrtc.ICECandidateInit `json:"candidate"`
		}
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return err
		}
		s.addCandidate(p.Candidate)

	case domain.EventMeetingError:
		return fmt.Errorf("%w: %s", ErrMeetingRejected, string(msg.Payload))

	default:
		s.logger.Debugw("ignoring relay event", "type", msg.Type)
	}
	return nil
}

// sendOffer is the negotiator's offer callback. A re-offer while connectivity
// is interrupted restarts ICE; an offer still awaiting its answer is resent.
func (s *Session) sendOffer() {
	if s.pc.SignalingState() == webrtc.SignalingStateHaveLocalOffer {
		if local := s.pc.LocalDescription(); local != nil {
			s.publish(s.signal.SendOffer, local)
			return
		}
	}

	var opts *webrtc.OfferOptions
	if s.negotiator.State().Interrupted() {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	offer, err := s.pc.CreateOffer(opts)
	if err != nil {
		s.logger.Errorw("failed to create offer", "error", err)
		return
	}
	if err := s.pc.SetLocalDescription(offer); err != nil {
		s.logger.Errorw("failed to set local offer", "error", err)
		return
	}
	s.publish(s.signal.SendOffer, s.pc.LocalDescription())
}

func (s *Session) sendAnswer(raw json.RawMessage) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		s.logger.Warnw("dropping unreadable offer", "error", err)
		return
	}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		s.logger.Errorw("failed to apply offer", "error", err)
		return
	}
	s.flushCandidates()

	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		s.logger.Errorw("failed to create answer", "error", err)
		return
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		s.logger.Errorw("failed to set local answer", "error", err)
		return
	}
	s.publish(s.signal.SendAnswer, s.pc.LocalDescription())
}

func (s *Session) publish(send func(domain.MeetingID, any) error, desc *webrtc.SessionDescription) {
	if err := send(s.meetingID, desc); err != nil {
		s.logger.Warnw("failed to send session description", "type", desc.Type.String(), "error", err)
	}
}

// candidates that arrive before the remote description are held back
func (s *Session) addCandidate(c webrtc.ICECandidateInit) {
	if s.pc.RemoteDescription() == nil {
		s.mu.Lock()
		s.pendingCandidates = append(s.pendingCandidates, c)
		s.mu.Unlock()
		return
	}
	if err := s.pc.AddICECandidate(c); err != nil {
		s.logger.Debugw("failed to add candidate", "error", err)
	}
}

func (s *Session) flushCandidates() {
	s.mu.Lock()
	pending := s.pendingCandidates
	s.pendingCandidates = nil
	s.mu.Unlock()

	for _, c := range pending {
		if err := s.pc.AddICECandidate(c); err != nil {
			s.logger.Debugw("failed to add candidate", "error", err)
		}
	}
}

func (s *Session) attach(dc *webrtc.DataChannel) {
	s.mu.Lock()
	s.channel = dc
	s.mu.Unlock()

	dc.OnOpen(func() {
		s.openOnce.Do(func() { close(s.opened) })
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case s.messages <- string(msg.Data):
		default:
			s.logger.Warnw("dropping data channel message, reader is slow")
		}
	})
}

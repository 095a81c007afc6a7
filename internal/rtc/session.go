package rtc

import (
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Sender slot kinds. A session carries at most one outbound track per kind.
const (
	trackKindVideo = "video"
	trackKindAudio = "audio"
)

// TrackSender is a replaceable outbound track slot on a negotiation session.
// *webrtc.RTPSender satisfies it through the adapter.
type TrackSender interface {
	ReplaceTrack(track webrtc.TrackLocal) error
}

// DataChannel is the subset of a data channel the clock probe needs.
type DataChannel interface {
	Label() string
	OnOpen(fn func())
	OnMessage(fn func(data []byte))
	Send(data []byte) error
	Close() error
}

// SessionConn is the subset of *webrtc.PeerConnection a session drives. The
// production implementation wraps pion (adapter.go); tests substitute mocks.
type SessionConn interface {
	CreateOffer(opts *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	AddTrack(track webrtc.TrackLocal) (TrackSender, error)
	CreateDataChannel(label string) (DataChannel, error)
	Close() error
}

// Session is the negotiation state for one remote peer: the owned session
// connection, the queue of not-yet-applicable ICE candidates, and the
// remote-description flag. The mutex makes "apply remote description and
// flush the queue" one atomic transition, so concurrent flush attempts can
// neither double-apply nor reorder candidates.
type Session struct {
	peerID  string
	offerer bool

	mu        sync.Mutex
	conn      SessionConn
	remoteSet bool
	pending   []webrtc.ICECandidateInit
	senders   map[string]TrackSender
	rttMs     int64
	clockStop chan struct{}
}

func newSession(peerID string, offerer bool, conn SessionConn) *Session {
	return &Session{
		peerID:  peerID,
		offerer: offerer,
		conn:    conn,
		senders: make(map[string]TrackSender),
	}
}

// PeerID identifies the remote peer this session negotiates with.
func (s *Session) PeerID() string { return s.peerID }

// Offerer reports whether the local side proposed the first offer.
func (s *Session) Offerer() bool { return s.offerer }

// applyRemote sets the remote description and, on success, flushes the
// candidate queue in arrival order. Each queued candidate is applied exactly
// once; a rejected candidate is logged and dropped, never retried.
func (s *Session) applyRemote(desc webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetRemoteDescription(desc); err != nil {
		return err
	}
	s.remoteSet = true

	for _, candidate := range s.pending {
		if err := s.conn.AddICECandidate(candidate); err != nil {
			slog.Warn("queued candidate rejected", "peer", s.peerID, "error", err)
		}
	}
	s.pending = nil
	return nil
}

// addCandidate applies the candidate if the remote description is already
// set, otherwise appends it to the queue for the next flush.
func (s *Session) addCandidate(candidate webrtc.ICECandidateInit) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.remoteSet {
		s.pending = append(s.pending, candidate)
		return
	}
	if err := s.conn.AddICECandidate(candidate); err != nil {
		slog.Warn("candidate rejected", "peer", s.peerID, "error", err)
	}
}

// addTrack attaches an outbound track and records its sender slot by kind.
func (s *Session) addTrack(kind string, track webrtc.TrackLocal) error {
	sender, err := s.conn.AddTrack(track)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.senders[kind] = sender
	s.mu.Unlock()
	return nil
}

// replaceTrack swaps the underlying track of the named sender slot in place.
// No offer/answer round trip happens.
func (s *Session) replaceTrack(kind string, track webrtc.TrackLocal) error {
	s.mu.Lock()
	sender, ok := s.senders[kind]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return sender.ReplaceTrack(track)
}

// setTrack makes the named slot carry track: an existing sender swaps in
// place, a missing one is attached fresh.
func (s *Session) setTrack(kind string, track webrtc.TrackLocal) error {
	s.mu.Lock()
	sender, ok := s.senders[kind]
	s.mu.Unlock()
	if ok {
		return sender.ReplaceTrack(track)
	}
	return s.addTrack(kind, track)
}

// createOffer produces a local offer, optionally with an ICE restart.
func (s *Session) createOffer(restart bool) (webrtc.SessionDescription, error) {
	var opts *webrtc.OfferOptions
	if restart {
		opts = &webrtc.OfferOptions{ICERestart: true}
	}
	offer, err := s.conn.CreateOffer(opts)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := s.conn.SetLocalDescription(offer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return offer, nil
}

// createAnswer produces the local answer to an applied remote offer.
func (s *Session) createAnswer() (webrtc.SessionDescription, error) {
	answer, err := s.conn.CreateAnswer()
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	if err := s.conn.SetLocalDescription(answer); err != nil {
		return webrtc.SessionDescription{}, err
	}
	return answer, nil
}

func (s *Session) close() {
	s.mu.Lock()
	stop := s.clockStop
	s.clockStop = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	if err := s.conn.Close(); err != nil {
		slog.Warn("session close failed", "peer", s.peerID, "error", err)
	}
}

package rtc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Signaler carries negotiation messages to a named peer. The watch session
// implements it on top of the signaling client.
type Signaler interface {
	SendOffer(toUserID, sdp string) error
	SendAnswer(toUserID, sdp string) error
	SendCandidate(toUserID string, candidate webrtc.ICECandidateInit) error
}

// Hooks are the callbacks a session connection fires into the coordinator.
type Hooks struct {
	OnCandidate       func(candidate webrtc.ICECandidateInit)
	OnConnectionState func(state webrtc.PeerConnectionState)
	OnDataChannel     func(dc DataChannel)
}

// SessionFactory builds the underlying connection for one peer session.
type SessionFactory func(peerID string, hooks Hooks) (SessionConn, error)

// Coordinator keeps N bilateral negotiation sessions consistent under
// concurrent signaling messages, connectivity events, and media toggles.
//
// Role assignment avoids glare deterministically: every already-present
// member offers toward a newcomer, and the newcomer only answers. So
// PeerJoined (we were here first) creates an offering session, while an
// incoming offer creates an answering one.
type Coordinator struct {
	signaler Signaler
	factory  SessionFactory

	mu    sync.Mutex
	peers map[string]*Session

	baseVideo  webrtc.TrackLocal
	baseAudio  webrtc.TrackLocal
	shareVideo webrtc.TrackLocal
	shareAudio webrtc.TrackLocal
	sharing    bool
}

func NewCoordinator(signaler Signaler, factory SessionFactory) *Coordinator {
	return &Coordinator{
		signaler: signaler,
		factory:  factory,
		peers:    make(map[string]*Session),
	}
}

// SetBaseTracks registers the camera/microphone tracks attached to every new
// session when no share is active. Either may be nil for a receive-only
// client.
func (c *Coordinator) SetBaseTracks(video, audio webrtc.TrackLocal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseVideo = video
	c.baseAudio = audio
}

// PeerJoined starts a negotiation toward a newcomer: we were already in the
// room, so we are the offerer.
func (c *Coordinator) PeerJoined(peerID string) error {
	session, _, err := c.ensureSession(peerID, true)
	if err != nil {
		return err
	}
	offer, err := session.createOffer(false)
	if err != nil {
		return fmt.Errorf("create offer for %s: %w", peerID, err)
	}
	if err := c.signaler.SendOffer(peerID, offer.SDP); err != nil {
		// Relay failure toward one peer never tears down the others.
		slog.Warn("offer relay failed", "peer", peerID, "error", err)
	}
	return nil
}

// HandleOffer answers an incoming offer. The same path serves both the
// initial negotiation (newcomer side) and a connectivity-restart repeat from
// the offerer: no extra message types exist for restarts.
func (c *Coordinator) HandleOffer(fromUserID, sdp string) error {
	session, _, err := c.ensureSession(fromUserID, false)
	if err != nil {
		return err
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := session.applyRemote(offer); err != nil {
		return fmt.Errorf("apply offer from %s: %w", fromUserID, err)
	}
	answer, err := session.createAnswer()
	if err != nil {
		return fmt.Errorf("answer %s: %w", fromUserID, err)
	}
	if err := c.signaler.SendAnswer(fromUserID, answer.SDP); err != nil {
		slog.Warn("answer relay failed", "peer", fromUserID, "error", err)
	}
	return nil
}

// HandleAnswer completes a negotiation we initiated.
func (c *Coordinator) HandleAnswer(fromUserID, sdp string) error {
	session, ok := c.session(fromUserID)
	if !ok {
		slog.Warn("answer for unknown peer", "peer", fromUserID)
		return nil
	}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := session.applyRemote(answer); err != nil {
		return fmt.Errorf("apply answer from %s: %w", fromUserID, err)
	}
	return nil
}

// HandleCandidate feeds a trickled candidate into the peer's session,
// creating the session state on first need so an early candidate is queued
// rather than dropped.
func (c *Coordinator) HandleCandidate(fromUserID string, candidate webrtc.ICECandidateInit) error {
	session, _, err := c.ensureSession(fromUserID, false)
	if err != nil {
		return err
	}
	session.addCandidate(candidate)
	return nil
}

// PeerLeft tears down the session for a departed peer. Other sessions are
// untouched.
func (c *Coordinator) PeerLeft(peerID string) {
	c.mu.Lock()
	session, ok := c.peers[peerID]
	delete(c.peers, peerID)
	c.mu.Unlock()
	if ok {
		session.close()
	}
}

// StartShare swaps the outgoing video (and audio when given) track on every
// existing session in place, with no renegotiation. Sessions created while
// the share is active get the share track from the start.
func (c *Coordinator) StartShare(video, audio webrtc.TrackLocal) {
	c.mu.Lock()
	c.shareVideo = video
	c.shareAudio = audio
	c.sharing = true
	sessions := c.snapshot()
	c.mu.Unlock()

	c.swapTracks(sessions, video, audio)
}

// StopShare restores the camera/microphone tracks the same way.
func (c *Coordinator) StopShare() {
	c.mu.Lock()
	c.sharing = false
	c.shareVideo = nil
	c.shareAudio = nil
	video, audio := c.baseVideo, c.baseAudio
	sessions := c.snapshot()
	c.mu.Unlock()

	c.swapTracks(sessions, video, audio)
}

// Sharing reports whether a share is currently active.
func (c *Coordinator) Sharing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sharing
}

// PeerRTT returns the measured clock-probe round trip for a peer, if any.
func (c *Coordinator) PeerRTT(peerID string) (int64, bool) {
	session, ok := c.session(peerID)
	if !ok {
		return 0, false
	}
	rtt := session.rtt()
	return rtt, rtt > 0
}

// Close tears down every session.
func (c *Coordinator) Close() {
	c.mu.Lock()
	sessions := c.snapshot()
	c.peers = make(map[string]*Session)
	c.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}

func (c *Coordinator) session(peerID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.peers[peerID]
	return s, ok
}

func (c *Coordinator) snapshot() []*Session {
	sessions := make([]*Session, 0, len(c.peers))
	for _, s := range c.peers {
		sessions = append(sessions, s)
	}
	return sessions
}

// ensureSession returns the peer's session, creating it on first need. The
// created flag tells the caller whether tracks were just attached.
func (c *Coordinator) ensureSession(peerID string, offerer bool) (*Session, bool, error) {
	c.mu.Lock()
	if s, ok := c.peers[peerID]; ok {
		c.mu.Unlock()
		return s, false, nil
	}
	c.mu.Unlock()

	conn, err := c.factory(peerID, Hooks{
		OnCandidate:       func(candidate webrtc.ICECandidateInit) { c.sendCandidate(peerID, candidate) },
		OnConnectionState: func(state webrtc.PeerConnectionState) { c.onConnectionState(peerID, state) },
		OnDataChannel:     func(dc DataChannel) { c.onDataChannel(peerID, dc) },
	})
	if err != nil {
		return nil, false, fmt.Errorf("create session for %s: %w", peerID, err)
	}

	session := newSession(peerID, offerer, conn)

	c.mu.Lock()
	if existing, ok := c.peers[peerID]; ok {
		// Lost the race; keep the first session.
		c.mu.Unlock()
		conn.Close()
		return existing, false, nil
	}
	c.peers[peerID] = session
	// Read the tracks under the same lock that registers the session, so a
	// share toggle either happened before this read or will find the
	// session in its snapshot.
	video, audio := c.activeTracks()
	c.mu.Unlock()

	if video != nil {
		if err := session.addTrack(trackKindVideo, video); err != nil {
			slog.Warn("video track attach failed", "peer", peerID, "error", err)
		}
	}
	if audio != nil {
		if err := session.addTrack(trackKindAudio, audio); err != nil {
			slog.Warn("audio track attach failed", "peer", peerID, "error", err)
		}
	}

	// A toggle landing between the read and the attach found no sender
	// slots to swap on this session; re-read and converge.
	c.mu.Lock()
	videoNow, audioNow := c.activeTracks()
	c.mu.Unlock()
	if videoNow != nil && videoNow != video {
		if err := session.setTrack(trackKindVideo, videoNow); err != nil {
			slog.Warn("video track attach failed", "peer", peerID, "error", err)
		}
	}
	if audioNow != nil && audioNow != audio {
		if err := session.setTrack(trackKindAudio, audioNow); err != nil {
			slog.Warn("audio track attach failed", "peer", peerID, "error", err)
		}
	}

	if offerer {
		c.openClockChannel(session)
	}
	return session, true, nil
}

// activeTracks picks what a brand-new session should send right now: the
// share tracks while sharing, the baseline otherwise. Callers hold c.mu.
func (c *Coordinator) activeTracks() (video, audio webrtc.TrackLocal) {
	if c.sharing {
		video, audio = c.shareVideo, c.shareAudio
		if audio == nil {
			audio = c.baseAudio
		}
		return video, audio
	}
	return c.baseVideo, c.baseAudio
}

func (c *Coordinator) swapTracks(sessions []*Session, video, audio webrtc.TrackLocal) {
	for _, s := range sessions {
		if video != nil {
			if err := s.replaceTrack(trackKindVideo, video); err != nil {
				slog.Warn("video track replace failed", "peer", s.peerID, "error", err)
			}
		}
		if audio != nil {
			if err := s.replaceTrack(trackKindAudio, audio); err != nil {
				slog.Warn("audio track replace failed", "peer", s.peerID, "error", err)
			}
		}
	}
}

func (c *Coordinator) sendCandidate(peerID string, candidate webrtc.ICECandidateInit) {
	if err := c.signaler.SendCandidate(peerID, candidate); err != nil {
		slog.Warn("candidate relay failed", "peer", peerID, "error", err)
	}
}

// onConnectionState restarts connectivity when a session fails. Only the
// offerer side restarts, so both sides failing at once cannot re-introduce
// glare; the restart reuses the ordinary offer/answer/ICE flow.
func (c *Coordinator) onConnectionState(peerID string, state webrtc.PeerConnectionState) {
	slog.Debug("connection state", "peer", peerID, "state", state.String())
	if state != webrtc.PeerConnectionStateFailed {
		return
	}
	session, ok := c.session(peerID)
	if !ok || !session.offerer {
		return
	}
	slog.Info("restarting connectivity", "peer", peerID)
	offer, err := session.createOffer(true)
	if err != nil {
		slog.Warn("restart offer failed", "peer", peerID, "error", err)
		return
	}
	if err := c.signaler.SendOffer(peerID, offer.SDP); err != nil {
		slog.Warn("restart offer relay failed", "peer", peerID, "error", err)
	}
}

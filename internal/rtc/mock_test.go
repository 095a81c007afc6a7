package rtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
)

// mockSignaler records every relayed message.
type mockSignaler struct {
	mu         sync.Mutex
	offers     []string
	answers    []string
	candidates []string
	offerSDPs  []string
}

func (m *mockSignaler) SendOffer(toUserID, sdp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers = append(m.offers, toUserID)
	m.offerSDPs = append(m.offerSDPs, sdp)
	return nil
}

func (m *mockSignaler) SendAnswer(toUserID, sdp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, toUserID)
	return nil
}

func (m *mockSignaler) SendCandidate(toUserID string, candidate webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append(m.candidates, toUserID)
	return nil
}

type mockSender struct {
	mu       sync.Mutex
	replaced []webrtc.TrackLocal
}

func (m *mockSender) ReplaceTrack(track webrtc.TrackLocal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaced = append(m.replaced, track)
	return nil
}

type mockChannel struct {
	mu        sync.Mutex
	label     string
	onOpen    func()
	onMessage func(data []byte)
	sent      [][]byte
}

func (m *mockChannel) Label() string             { return m.label }
func (m *mockChannel) OnOpen(fn func())          { m.onOpen = fn }
func (m *mockChannel) OnMessage(fn func([]byte)) { m.onMessage = fn }
func (m *mockChannel) Close() error              { return nil }

func (m *mockChannel) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockChannel) getSent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

// mockConn is a scriptable SessionConn that records every call.
type mockConn struct {
	mu           sync.Mutex
	offerCount   int
	lastRestart  bool
	remote       []webrtc.SessionDescription
	candidates   []webrtc.ICECandidateInit
	tracks       []webrtc.TrackLocal
	senders      []*mockSender
	channels     []*mockChannel
	closed       bool
	remoteErr    error
	candidateErr func(candidate webrtc.ICECandidateInit) error
}

func (m *mockConn) CreateOffer(opts *webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offerCount++
	m.lastRestart = opts != nil && opts.ICERestart
	return webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  fmt.Sprintf("offer-%d", m.offerCount),
	}, nil
}

func (m *mockConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "answer-1"}, nil
}

func (m *mockConn) SetLocalDescription(desc webrtc.SessionDescription) error { return nil }

func (m *mockConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remoteErr != nil {
		return m.remoteErr
	}
	m.remote = append(m.remote, desc)
	return nil
}

func (m *mockConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.candidateErr != nil {
		if err := m.candidateErr(candidate); err != nil {
			return err
		}
	}
	m.candidates = append(m.candidates, candidate)
	return nil
}

func (m *mockConn) AddTrack(track webrtc.TrackLocal) (TrackSender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracks = append(m.tracks, track)
	sender := &mockSender{}
	m.senders = append(m.senders, sender)
	return sender, nil
}

func (m *mockConn) CreateDataChannel(label string) (DataChannel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dc := &mockChannel{label: label}
	m.channels = append(m.channels, dc)
	return dc, nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) addedCandidates() []webrtc.ICECandidateInit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), m.candidates...)
}

// fakeTrack satisfies webrtc.TrackLocal without touching any media pipeline.
type fakeTrack struct {
	id   string
	kind webrtc.RTPCodecType
}

func (f *fakeTrack) Bind(webrtc.TrackLocalContext) (webrtc.RTPCodecParameters, error) {
	return webrtc.RTPCodecParameters{}, nil
}
func (f *fakeTrack) Unbind(webrtc.TrackLocalContext) error { return nil }
func (f *fakeTrack) ID() string                            { return f.id }
func (f *fakeTrack) RID() string                           { return "" }
func (f *fakeTrack) StreamID() string                      { return "mock" }
func (f *fakeTrack) Kind() webrtc.RTPCodecType             { return f.kind }

// testFactory hands out one mockConn per peer and keeps the hooks around so
// tests can fire connectivity events.
type testFactory struct {
	mu    sync.Mutex
	conns map[string]*mockConn
	hooks map[string]Hooks
}

func newTestFactory() *testFactory {
	return &testFactory{
		conns: make(map[string]*mockConn),
		hooks: make(map[string]Hooks),
	}
}

func (f *testFactory) factory(peerID string, hooks Hooks) (SessionConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn := &mockConn{}
	f.conns[peerID] = conn
	f.hooks[peerID] = hooks
	return conn, nil
}

func (f *testFactory) conn(peerID string) *mockConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conns[peerID]
}

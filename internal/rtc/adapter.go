package rtc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pion/webrtc/v4"
)

// RelayServer is one relay endpoint descriptor as issued by the server's
// credential route.
type RelayServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// FetchRelayServers asks the signaling server for relay descriptors. An
// empty list is fine; sessions then run on the base STUN server alone.
func FetchRelayServers(ctx context.Context, httpClient *http.Client, baseURL string) ([]RelayServer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/turn-credentials", nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch relay servers: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch relay servers: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		ICEServers []RelayServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode relay servers: %w", err)
	}
	return body.ICEServers, nil
}

// NewPionFactory builds production sessions on pion, merging the fetched
// relay descriptors into the base connectivity-server list.
func NewPionFactory(stunServer string, relays []RelayServer) SessionFactory {
	return func(peerID string, hooks Hooks) (SessionConn, error) {
		iceServers := []webrtc.ICEServer{{URLs: []string{stunServer}}}
		for _, relay := range relays {
			iceServers = append(iceServers, webrtc.ICEServer{
				URLs:       relay.URLs,
				Username:   relay.Username,
				Credential: relay.Credential,
			})
		}

		pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: iceServers})
		if err != nil {
			return nil, err
		}

		pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
			if candidate == nil {
				return
			}
			hooks.OnCandidate(candidate.ToJSON())
		})
		pc.OnConnectionStateChange(hooks.OnConnectionState)
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			hooks.OnDataChannel(&pionDataChannel{dc: dc})
		})

		return &pionConn{pc: pc}, nil
	}
}

// pionConn adapts *webrtc.PeerConnection to SessionConn.
type pionConn struct {
	pc *webrtc.PeerConnection
}

func (p *pionConn) CreateOffer(opts *webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(opts)
}

func (p *pionConn) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *pionConn) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *pionConn) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *pionConn) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(candidate)
}

func (p *pionConn) AddTrack(track webrtc.TrackLocal) (TrackSender, error) {
	return p.pc.AddTrack(track)
}

func (p *pionConn) CreateDataChannel(label string) (DataChannel, error) {
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}
	return &pionDataChannel{dc: dc}, nil
}

func (p *pionConn) Close() error {
	return p.pc.Close()
}

// pionDataChannel adapts *webrtc.DataChannel to DataChannel.
type pionDataChannel struct {
	dc *webrtc.DataChannel
}

func (d *pionDataChannel) Label() string { return d.dc.Label() }

func (d *pionDataChannel) OnOpen(fn func()) { d.dc.OnOpen(fn) }

func (d *pionDataChannel) OnMessage(fn func(data []byte)) {
	d.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}

func (d *pionDataChannel) Send(data []byte) error { return d.dc.Send(data) }

func (d *pionDataChannel) Close() error { return d.dc.Close() }

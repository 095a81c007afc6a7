package rtc

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// The clock probe rides a dedicated data channel per session. The offerer
// pings on an interval, the answerer echoes, and the measured round trip is
// exposed per peer for the session stats readout.
const (
	clockChannelLabel = "clock"
	clockPingInterval = 5 * time.Second
)

type clockProbe struct {
	Type     string `msgpack:"type"`
	SentAtMs int64  `msgpack:"sentAtMs"`
}

const (
	clockPing = "ping"
	clockPong = "pong"
)

func (s *Session) setRTT(ms int64) {
	atomic.StoreInt64(&s.rttMs, ms)
}

func (s *Session) rtt() int64 {
	return atomic.LoadInt64(&s.rttMs)
}

// openClockChannel creates the probe channel on an offering session and
// starts pinging once it opens.
func (c *Coordinator) openClockChannel(session *Session) {
	dc, err := session.conn.CreateDataChannel(clockChannelLabel)
	if err != nil {
		slog.Warn("clock channel create failed", "peer", session.peerID, "error", err)
		return
	}

	stop := make(chan struct{})
	session.mu.Lock()
	session.clockStop = stop
	session.mu.Unlock()

	dc.OnMessage(func(data []byte) {
		handleClockMessage(session, dc, data)
	})
	dc.OnOpen(func() {
		go pingLoop(session, dc, stop)
	})
}

// onDataChannel wires the echo side of the probe on an answering session.
func (c *Coordinator) onDataChannel(peerID string, dc DataChannel) {
	if dc.Label() != clockChannelLabel {
		return
	}
	session, ok := c.session(peerID)
	if !ok {
		return
	}
	dc.OnMessage(func(data []byte) {
		handleClockMessage(session, dc, data)
	})
}

func handleClockMessage(session *Session, dc DataChannel, data []byte) {
	var probe clockProbe
	if err := msgpack.Unmarshal(data, &probe); err != nil {
		slog.Warn("bad clock probe", "peer", session.peerID, "error", err)
		return
	}
	switch probe.Type {
	case clockPing:
		reply, err := msgpack.Marshal(clockProbe{Type: clockPong, SentAtMs: probe.SentAtMs})
		if err == nil {
			dc.Send(reply)
		}
	case clockPong:
		session.setRTT(time.Now().UnixMilli() - probe.SentAtMs)
	}
}

func pingLoop(session *Session, dc DataChannel, stop <-chan struct{}) {
	ticker := time.NewTicker(clockPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ping, err := msgpack.Marshal(clockProbe{Type: clockPing, SentAtMs: time.Now().UnixMilli()})
			if err != nil {
				return
			}
			if err := dc.Send(ping); err != nil {
				slog.Debug("clock ping failed", "peer", session.peerID, "error", err)
				return
			}
		}
	}
}

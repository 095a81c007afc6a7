package playback

import (
	"log/slog"
	"sync"
	"time"

	"github.com/im-anant/streeem/internal/protocol"
)

const (
	// SeekThresholdSec is the drift beyond which the engine hard-seeks
	// instead of nudging the rate.
	SeekThresholdSec = 0.25

	// MinRate and MaxRate bound the invisible rate nudge.
	MinRate = 0.98
	MaxRate = 1.02

	// convergedSec is the drift below which the rate snaps back to 1.0.
	convergedSec = 0.05

	// rateGain converts drift seconds into a rate offset.
	rateGain = 0.1
)

// Engine converts broadcast playback snapshots into local seek and rate
// corrections. The most recently received snapshot is current truth; nobody
// arbitrates who may broadcast.
type Engine struct {
	player Player
	now    func() time.Time

	mu      sync.Mutex
	nudging bool
}

func NewEngine(player Player) *Engine {
	return &Engine{player: player, now: time.Now}
}

// Estimate projects where the sender's playhead is now, given its snapshot
// and the local wall clock in milliseconds.
func Estimate(snap *protocol.PlaybackStatePayload, nowMs int64) float64 {
	if !snap.Playing {
		return snap.PositionSec
	}
	elapsed := nowMs - snap.HostTsMs
	if elapsed < 0 {
		elapsed = 0
	}
	return snap.PositionSec + float64(elapsed)/1000
}

// Apply folds one snapshot into the local player: content handoff first, then
// play/pause, then drift correction — a hard seek past the threshold, a
// bounded rate nudge inside it, and rate restoration once converged.
func (e *Engine) Apply(snap *protocol.PlaybackStatePayload) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if snap.ContentID != "" && snap.ContentID != e.player.ContentID() {
		e.player.SetContent(snap.ContentID)
	}

	if snap.Playing && !e.player.Playing() {
		e.player.Play()
	} else if !snap.Playing && e.player.Playing() {
		e.player.Pause()
	}

	estimated := Estimate(snap, e.now().UnixMilli())
	drift := e.player.Position() - estimated

	switch {
	case drift > SeekThresholdSec || drift < -SeekThresholdSec:
		slog.Debug("hard seek", "drift", drift, "to", estimated)
		e.player.Seek(estimated)
		e.player.SetRate(1.0)
		e.nudging = false
	case !snap.Playing:
		// Paused and close enough; nothing to converge.
	case drift > convergedSec || drift < -convergedSec:
		rate := clampRate(1.0 - drift*rateGain)
		e.player.SetRate(rate)
		e.nudging = true
	case e.nudging:
		e.player.SetRate(1.0)
		e.nudging = false
	}
}

func clampRate(rate float64) float64 {
	if rate < MinRate {
		return MinRate
	}
	if rate > MaxRate {
		return MaxRate
	}
	return rate
}

package playback

import (
	"sync"
	"time"
)

// Player is the local playback surface the sync engine corrects. Rendering
// is someone else's problem; anything that can report and adjust a playhead
// qualifies.
type Player interface {
	Position() float64
	Playing() bool
	Play()
	Pause()
	Seek(positionSec float64)
	SetRate(rate float64)
	SetContent(contentID string)
	ContentID() string
}

// VirtualPlayer is a clock-driven Player with no media behind it: the
// position advances with wall time scaled by the current rate. The CLI runs
// on it; embedders swap in a real player.
type VirtualPlayer struct {
	mu        sync.Mutex
	now       func() time.Time
	contentID string
	basePos   float64
	baseAt    time.Time
	rate      float64
	playing   bool
}

func NewVirtualPlayer() *VirtualPlayer {
	return &VirtualPlayer{now: time.Now, rate: 1.0}
}

func (p *VirtualPlayer) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.positionLocked()
}

func (p *VirtualPlayer) positionLocked() float64 {
	if !p.playing {
		return p.basePos
	}
	return p.basePos + p.now().Sub(p.baseAt).Seconds()*p.rate
}

func (p *VirtualPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *VirtualPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		return
	}
	p.baseAt = p.now()
	p.playing = true
}

func (p *VirtualPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return
	}
	p.basePos = p.positionLocked()
	p.playing = false
}

func (p *VirtualPlayer) Seek(positionSec float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.basePos = positionSec
	p.baseAt = p.now()
}

func (p *VirtualPlayer) SetRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.basePos = p.positionLocked()
	p.baseAt = p.now()
	p.rate = rate
}

func (p *VirtualPlayer) SetContent(contentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if contentID == p.contentID {
		return
	}
	p.contentID = contentID
	p.basePos = 0
	p.baseAt = p.now()
	p.playing = false
}

func (p *VirtualPlayer) ContentID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.contentID
}

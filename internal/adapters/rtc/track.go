package rtc

import (
	"sync"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/edulab/huddle/internal/core"
)

var _ core.LocalTrack = (*SampleTrack)(nil)

// SampleTrack wraps a static sample track with a mute flag. Samples written
// while the track is disabled are dropped, so the track stays attached to
// every peer link across a toggle and no renegotiation happens.
type SampleTrack struct {
	track   *webrtc.TrackLocalStaticSample
	enabled atomic.Bool

	mu      sync.Mutex
	onEnded func()
	stopped bool
}

func NewSampleTrack(codec webrtc.RTPCodecCapability, id, streamID string) (*SampleTrack, error) {
	track, err := webrtc.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, err
	}
	st := &SampleTrack{track: track}
	st.enabled.Store(true)
	return st, nil
}

func (t *SampleTrack) ID() string                { return t.track.ID() }
func (t *SampleTrack) Kind() webrtc.RTPCodecType { return t.track.Kind() }
func (t *SampleTrack) Sender() webrtc.TrackLocal { return t.track }
func (t *SampleTrack) SetEnabled(enabled bool)   { t.enabled.Store(enabled) }
func (t *SampleTrack) Enabled() bool             { return t.enabled.Load() }

// WriteSample forwards a captured sample to all attached links, dropping
// it while the track is muted.
func (t *SampleTrack) WriteSample(s media.Sample) error {
	if !t.enabled.Load() {
		return nil
	}
	return t.track.WriteSample(s)
}

func (t *SampleTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

// Stop ends the track deliberately. The OnEnded callback is reserved for
// spontaneous ends (platform-stopped screen share) and is not fired here.
func (t *SampleTrack) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Interrupt ends the track as the platform would, e.g. the user stopping
// a screen share from the OS picker rather than the session controls.
// Fires OnEnded, unlike Stop.
func (t *SampleTrack) Interrupt() {
	t.mu.Lock()
	fn := t.onEnded
	alreadyStopped := t.stopped
	t.stopped = true
	t.mu.Unlock()
	if fn != nil && !alreadyStopped {
		fn()
	}
}

package rtc

import (
	"testing"

	"github.com/pion/webrtc/v4"
)

func newVideoTrack(t *testing.T) *SampleTrack {
	t.Helper()
	track, err := NewSampleTrack(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "camera-1", "huddle")
	if err != nil {
		t.Fatalf("new track: %v", err)
	}
	return track
}

func TestTrackStartsEnabled(t *testing.T) {
	track := newVideoTrack(t)
	if !track.Enabled() {
		t.Error("fresh track should be enabled")
	}
	track.SetEnabled(false)
	if track.Enabled() {
		t.Error("track still enabled after mute")
	}
	track.SetEnabled(true)
	if !track.Enabled() {
		t.Error("track not re-enabled")
	}
}

func TestInterruptFiresOnEndedOnce(t *testing.T) {
	track := newVideoTrack(t)
	fired := 0
	track.OnEnded(func() { fired++ })

	track.Interrupt()
	track.Interrupt()

	if fired != 1 {
		t.Errorf("OnEnded fired %d times, want 1", fired)
	}
}

func TestStopSuppressesOnEnded(t *testing.T) {
	track := newVideoTrack(t)
	fired := 0
	track.OnEnded(func() { fired++ })

	track.Stop()
	track.Interrupt()

	if fired != 0 {
		t.Errorf("deliberate stop fired OnEnded %d times, want 0", fired)
	}
}

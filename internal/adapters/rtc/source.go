package rtc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/core"
)

var _ core.MediaSource = (*SyntheticSource)(nil)

const feedInterval = 20 * time.Millisecond

// SyntheticSource is a headless core.MediaSource: it produces silence and
// blank frames on a fixed cadence instead of reading real devices. The
// agent uses it to exercise the full negotiation path without hardware;
// a capture-backed source slots in behind the same interface.
type SyntheticSource struct {
	ctx context.Context
}

func NewSyntheticSource(ctx context.Context) *SyntheticSource {
	return &SyntheticSource{ctx: ctx}
}

func (s *SyntheticSource) CaptureMicrophone() (core.LocalTrack, error) {
	return s.capture(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio")
}

func (s *SyntheticSource) CaptureCamera() (core.LocalTrack, error) {
	return s.capture(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "camera")
}

func (s *SyntheticSource) CaptureScreen() (core.LocalTrack, error) {
	return s.capture(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "screen")
}

func (s *SyntheticSource) capture(codec webrtc.RTPCodecCapability, label string) (*SampleTrack, error) {
	track, err := NewSampleTrack(codec, label+"-"+uuid.NewString(), "huddle")
	if err != nil {
		return nil, err
	}
	go s.feed(track, label)
	return track, nil
}

// feed writes empty samples until the track is stopped or the source
// context ends. Writes while muted are dropped by the track itself.
func (s *SyntheticSource) feed(track *SampleTrack, label string) {
	ticker := time.NewTicker(feedInterval)
	defer ticker.Stop()
	sample := media.Sample{Data: []byte{0x00}, Duration: feedInterval}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			track.mu.Lock()
			stopped := track.stopped
			track.mu.Unlock()
			if stopped {
				return
			}
			if err := track.WriteSample(sample); err != nil {
				log.Error().Err(err).Str("module", "rtc").Str("track", label).Msg("feed write")
				return
			}
		}
	}
}

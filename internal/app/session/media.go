package session

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/edulab/huddle/internal/protocol"
)

// toggleCamera mutes or unmutes the camera track in place. The track keeps
// flowing on every link, so no renegotiation happens; only a presence
// broadcast goes out.
func (s *Session) toggleCamera() {
	if s.camera == nil {
		return
	}
	enabled := !s.camera.Enabled()
	s.camera.SetEnabled(enabled)
	s.flags.Video = enabled
	_ = s.channel.Send(protocol.MediaState(s.selfID, s.flags))
	log.Info().Str("module", "session.media").Bool("video", enabled).Msg("camera toggled")
}

func (s *Session) toggleMicrophone() {
	if s.microphone == nil {
		return
	}
	enabled := !s.microphone.Enabled()
	s.microphone.SetEnabled(enabled)
	s.flags.Audio = enabled
	_ = s.channel.Send(protocol.MediaState(s.selfID, s.flags))
	log.Info().Str("module", "session.media").Bool("audio", enabled).Msg("microphone toggled")
}

// startScreenShare acquires a display track and swaps it onto every link
// before yielding control, so no peer ever sees a half-switched room.
// Acquisition failure leaves all state untouched. The platform ending the
// share on its own takes the same stop path as an explicit stop.
func (s *Session) startScreenShare() error {
	if s.screen != nil {
		return nil
	}
	screen, err := s.source.CaptureScreen()
	if err != nil {
		return fmt.Errorf("acquiring screen: %w", err)
	}
	screen.OnEnded(func() {
		s.post(s.stopScreenShare)
	})

	s.registry.each(func(e *peerEntry) {
		if err := e.link.ReplaceVideo(screen); err != nil {
			log.Error().Err(err).Str("module", "session.media").Str("peer", string(e.id)).Msg("replace video with screen")
		}
	})
	s.screen = screen
	s.flags.Sharing = true
	_ = s.channel.Send(protocol.MediaState(s.selfID, s.flags))
	log.Info().Str("module", "session.media").Msg("screen share started")
	return nil
}

// stopScreenShare restores the camera track on every link and announces
// sharing over. Idempotent: the spontaneous-end path and an explicit stop
// can both land here.
func (s *Session) stopScreenShare() {
	if s.screen == nil {
		return
	}
	s.screen.Stop()
	s.screen = nil

	s.registry.each(func(e *peerEntry) {
		if err := e.link.ReplaceVideo(s.camera); err != nil {
			log.Error().Err(err).Str("module", "session.media").Str("peer", string(e.id)).Msg("restore camera")
		}
	})
	s.flags.Sharing = false
	_ = s.channel.Send(protocol.MediaState(s.selfID, s.flags))
	log.Info().Str("module", "session.media").Msg("screen share stopped")
}

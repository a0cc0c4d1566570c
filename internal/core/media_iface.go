package core

import "github.com/pion/webrtc/v4"

// LocalTrack is a capture track shared by every peer link. Muting flips
// Enabled in place (the track keeps flowing on all links, just silenced)
// so no renegotiation is needed for a camera or microphone toggle.
type LocalTrack interface {
	ID() string
	Kind() webrtc.RTPCodecType
	SetEnabled(bool)
	Enabled() bool
	// Sender returns the attachable pion track.
	Sender() webrtc.TrackLocal
	// OnEnded sets a callback fired when the track stops on its own
	// (the platform ended a screen share). Stop does not fire it.
	OnEnded(func())
	Stop()
}

// MediaSource acquires local capture tracks. Acquisition errors must be
// handled at the call site: camera/mic failure blocks room entry, screen
// failure blocks only the share toggle.
type MediaSource interface {
	CaptureMicrophone() (LocalTrack, error)
	CaptureCamera() (LocalTrack, error)
	CaptureScreen() (LocalTrack, error)
}

package transcode

import "fmt"

// TrackKind distinguishes video renditions from audio-only variants.
type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// TrackSpec describes one output track of the encoding ladder.
type TrackSpec struct {
	// ID names the track and its playlist, e.g. "720p" or "audio_128k".
	ID   string
	Kind TrackKind

	// Width and Height apply to video tracks only.
	Width  int
	Height int

	// Bitrate is the target bitrate in encoder notation, e.g. "1800k".
	Bitrate string

	// Codec applies to audio tracks, e.g. "aac". Video codec selection is
	// driven by capability detection.
	Codec string
}

func (s TrackSpec) String() string {
	if s.Kind == TrackVideo {
		return fmt.Sprintf("%s (%s %dx%d @ %s)", s.ID, s.Kind, s.Width, s.Height, s.Bitrate)
	}
	return fmt.Sprintf("%s (%s %s @ %s)", s.ID, s.Kind, s.Codec, s.Bitrate)
}

// PlaylistName is the track's media playlist file name.
func (s TrackSpec) PlaylistName() string {
	return s.ID + ".m3u8"
}

// PerfSettings holds the encoder performance knobs shared by all tracks.
type PerfSettings struct {
	Preset         string
	Tune           string
	CRF            int
	Threads        int
	SegmentSeconds int
}

// Package manifest composes the multivariant master playlist from the tracks
// that encoded successfully.
package manifest

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/renameio/v2"

	"hls-vault/internal/logging"
	"hls-vault/internal/transcode"
)

// MasterPlaylistName is the entry point clients request.
const MasterPlaylistName = "master.m3u8"

// audioGroupID names the single audio rendition group referenced by every
// video variant.
const audioGroupID = "audio"

// defaultAudioBandwidth is the fixed allowance added to each variant's
// bandwidth on top of the parsed video bitrate.
const defaultAudioBandwidth = 128000

// ManifestError reports a failed master playlist composition.
type ManifestError struct {
	Err error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("composing master playlist: %v", e.Err)
}

func (e *ManifestError) Unwrap() error {
	return e.Err
}

// ParseBandwidth converts encoder bitrate notation into bits per second:
// "1800k" is 1800000, a bare number is taken as-is. Unparseable input yields
// zero so a malformed ladder entry is visible rather than fatal.
func ParseBandwidth(bitrate string) int {
	s := strings.TrimSpace(strings.ToLower(bitrate))
	multiplier := 1
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier = 1000
		s = strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier = 1000000
		s = strings.TrimSuffix(s, "m")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n * multiplier
}

// Compose writes the master playlist into outputDir referencing only the
// tracks in succeeded, ordered as configured in specs. Exactly one audio
// rendition is flagged default: the first configured one that succeeded.
// Any surviving track is enough; an asset whose video rungs all failed
// still gets a master with its audio renditions.
func Compose(outputDir string, specs []transcode.TrackSpec, succeeded map[string]bool) error {
	var audio, video []transcode.TrackSpec
	for _, spec := range specs {
		if !succeeded[spec.ID] {
			continue
		}
		if spec.Kind == transcode.TrackAudio {
			audio = append(audio, spec)
		} else {
			video = append(video, spec)
		}
	}
	if len(audio) == 0 && len(video) == 0 {
		return &ManifestError{Err: fmt.Errorf("no tracks succeeded")}
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:6\n")
	b.WriteString("#EXT-X-INDEPENDENT-SEGMENTS\n")

	for i, spec := range audio {
		def := "NO"
		if i == 0 {
			def = "YES"
		}
		fmt.Fprintf(&b,
			"#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=%q,NAME=%q,DEFAULT=%s,AUTOSELECT=YES,URI=%q\n",
			audioGroupID, spec.ID, def, spec.PlaylistName())
	}

	for _, spec := range video {
		bandwidth := ParseBandwidth(spec.Bitrate) + defaultAudioBandwidth
		line := fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%dx%d",
			bandwidth, spec.Width, spec.Height)
		if len(audio) > 0 {
			line += fmt.Sprintf(",AUDIO=%q", audioGroupID)
		}
		b.WriteString(line + "\n")
		b.WriteString(spec.PlaylistName() + "\n")
	}

	path := filepath.Join(outputDir, MasterPlaylistName)
	if err := renameio.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return &ManifestError{Err: err}
	}

	logging.Info("master playlist written: %d video, %d audio tracks", len(video), len(audio))
	return nil
}

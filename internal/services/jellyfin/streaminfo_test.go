package jellyfin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetStreamInfo(t *testing.T) {
	tests := []struct {
		name   string
		stream MediaStream
		badges []string
		hdr    bool
	}{
		{"4K dolby vision", MediaStream{Type: "Video", Width: 3840, VideoRangeType: "DOVI"}, []string{"4K", "Dolby Vision"}, true},
		{"1080p hdr10", MediaStream{Type: "Video", Width: 1920, VideoRangeType: "HDR10"}, []string{"1080p", "HDR10"}, true},
		{"4K hdr10+", MediaStream{Type: "Video", Width: 3840, VideoRangeType: "HDR10Plus"}, []string{"4K", "HDR10+"}, true},
		{"720p bt2020", MediaStream{Type: "Video", Width: 1280, ColorPrimaries: "bt2020"}, []string{"720p", "HDR"}, true},
		{"sd sdr", MediaStream{Type: "Video", Width: 720, VideoRangeType: "SDR"}, []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &MediaSource{MediaStreams: []MediaStream{{Type: "Audio"}, tt.stream}}
			info := GetStreamInfo(source)
			assert.Equal(t, tt.badges, info.Badges)
			assert.Equal(t, tt.hdr, info.IsHDR)
		})
	}

	assert.Empty(t, GetStreamInfo(nil).Badges)
	assert.Empty(t, GetStreamInfo(&MediaSource{}).Badges)
}

func TestFormatAudioInfo(t *testing.T) {
	assert.Equal(t, "eng DTS-HD MA 5.1 @ 1536 Kbps",
		FormatAudioInfo(MediaStream{Language: "eng", Codec: "dts", Profile: "HD MA", Channels: 6, BitRate: 1536000}))
	assert.Equal(t, "EAC3 7.1 Atmos",
		FormatAudioInfo(MediaStream{Codec: "eac3", Profile: "Atmos", Channels: 8}))
	assert.Equal(t, "", FormatAudioInfo(MediaStream{}))
}

func TestFormatSubtitleInfo(t *testing.T) {
	assert.Equal(t, "eng (SRT) [Forced] [Default]",
		FormatSubtitleInfo(MediaStream{Language: "eng", Codec: "srt", IsForced: true, IsDefault: true}))
	assert.Equal(t, "fre (PGSSUB)", FormatSubtitleInfo(MediaStream{Language: "fre", Codec: "pgssub"}))
}

package jellyfin

import (
	"fmt"
	"strings"
)

// StreamInfo summarizes the video stream of a media source
type StreamInfo struct {
	Badges    []string `json:"badges"`
	Width     int      `json:"width,omitempty"`
	Height    int      `json:"height,omitempty"`
	Codec     string   `json:"codec,omitempty"`
	BitRate   int64    `json:"bitRate,omitempty"`
	FrameRate float64  `json:"frameRate,omitempty"`
	IsHDR     bool     `json:"isHDR"`
}

// GetStreamInfo derives resolution and dynamic range badges from the first
// video stream of source
func GetStreamInfo(source *MediaSource) StreamInfo {
	if source == nil {
		return StreamInfo{Badges: []string{}}
	}

	var video *MediaStream
	for i := range source.MediaStreams {
		if source.MediaStreams[i].Type == "Video" {
			video = &source.MediaStreams[i]
			break
		}
	}
	if video == nil {
		return StreamInfo{Badges: []string{}}
	}

	badges := []string{}
	if resolution := resolutionBadge(video.Width); resolution != "" {
		badges = append(badges, resolution)
	}

	hdr := isHDR(video)
	if hdr {
		badges = append(badges, hdrBadge(video))
	}

	return StreamInfo{
		Badges:    badges,
		Width:     video.Width,
		Height:    video.Height,
		Codec:     video.Codec,
		BitRate:   video.BitRate,
		FrameRate: video.RealFrameRate,
		IsHDR:     hdr,
	}
}

func resolutionBadge(width int) string {
	switch {
	case width >= 3840:
		return "4K"
	case width >= 1920:
		return "1080p"
	case width >= 1280:
		return "720p"
	default:
		return ""
	}
}

func isHDR(video *MediaStream) bool {
	return strings.HasPrefix(video.VideoRangeType, "HDR") ||
		strings.HasPrefix(video.VideoRangeType, "DOVI") ||
		video.ColorPrimaries == "bt2020" ||
		video.ColorTransfer == "smpte2084"
}

func hdrBadge(video *MediaStream) string {
	switch {
	case video.VideoDoViTitle != "" || strings.HasPrefix(video.VideoRangeType, "DOVI"):
		return "Dolby Vision"
	case video.VideoRangeType == "HDR10Plus":
		return "HDR10+"
	case video.VideoRangeType == "HDR10":
		return "HDR10"
	default:
		return "HDR"
	}
}

// FormatAudioInfo renders an audio stream as e.g. "eng DTS-HD MA 5.1 @ 1536 Kbps"
func FormatAudioInfo(stream MediaStream) string {
	var parts []string

	if stream.Language != "" {
		parts = append(parts, stream.Language)
	}
	if stream.Codec != "" {
		codec := strings.ToUpper(stream.Codec)
		if codec == "DTS" && stream.Profile != "" {
			codec = "DTS-" + stream.Profile
		}
		parts = append(parts, codec)
	}
	if layout := channelLayout(stream.Channels); layout != "" {
		parts = append(parts, layout)
	}
	if stream.Profile == "Atmos" {
		parts = append(parts, "Atmos")
	}
	if stream.BitRate > 0 {
		parts = append(parts, fmt.Sprintf("@ %d Kbps", (stream.BitRate+500)/1000))
	}

	return strings.Join(parts, " ")
}

func channelLayout(channels int) string {
	switch {
	case channels <= 0:
		return ""
	case channels == 1:
		return "1.0"
	case channels == 2:
		return "2.0"
	case channels == 6:
		return "5.1"
	case channels == 8:
		return "7.1"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}

// FormatSubtitleInfo renders a subtitle stream as e.g. "eng (SRT) [Forced]"
func FormatSubtitleInfo(stream MediaStream) string {
	var parts []string

	if stream.Language != "" {
		parts = append(parts, stream.Language)
	}
	if stream.Codec != "" {
		parts = append(parts, "("+strings.ToUpper(stream.Codec)+")")
	}
	if stream.IsForced {
		parts = append(parts, "[Forced]")
	}
	if stream.IsDefault {
		parts = append(parts, "[Default]")
	}

	return strings.Join(parts, " ")
}

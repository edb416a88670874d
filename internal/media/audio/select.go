package audio

import (
	"strconv"
	"strings"

	"levelset/internal/media/ffprobe"
)

// Selection identifies the audio stream a video's extracted track is built from.
type Selection struct {
	Primary ffprobe.Stream
	// Ordinal is the position among audio streams (0-based), or -1 when the
	// container has no audio.
	Ordinal int
	// Count is the number of audio streams in the container.
	Count int
}

// Found reports whether an audio stream was selected.
func (s Selection) Found() bool {
	return s.Ordinal >= 0
}

// MapSpec returns the ffmpeg -map specifier for the selected stream.
func (s Selection) MapSpec() string {
	if !s.Found() {
		return ""
	}
	return "0:a:" + strconv.Itoa(s.Ordinal)
}

// NeedsMap reports whether ffmpeg's default stream choice could differ from
// the selection, which is only possible with several audio streams.
func (s Selection) NeedsMap() bool {
	return s.Found() && s.Count > 1
}

// Label returns a short human-readable summary of the selected stream.
func (s Selection) Label() string {
	if !s.Found() {
		return ""
	}
	return formatStreamSummary(s.Primary)
}

// Select picks the audio stream a listener would hear by default: the
// default-flagged track wins, commentary tracks lose, then more channels,
// lossless sources, and earlier tracks.
func Select(streams []ffprobe.Stream) Selection {
	candidates := buildCandidates(streams)
	if len(candidates) == 0 {
		return Selection{Ordinal: -1}
	}
	best := candidates[0]
	bestScore := scorePrimary(best)
	for _, cand := range candidates[1:] {
		if score := scorePrimary(cand); score > bestScore {
			best, bestScore = cand, score
		}
	}
	return Selection{Primary: best.stream, Ordinal: best.order, Count: len(candidates)}
}

type candidate struct {
	stream         ffprobe.Stream
	order          int
	title          string
	isLossless     bool
	isCommentary   bool
	channels       int
	defaultFlagged bool
}

func scorePrimary(cand candidate) float64 {
	score := 0.0
	if cand.defaultFlagged {
		score += 2000
	}
	if cand.isCommentary {
		score -= 1500
	}
	switch {
	case cand.channels >= 8:
		score += 1000
	case cand.channels >= 6:
		score += 800
	case cand.channels >= 4:
		score += 600
	case cand.channels >= 2:
		score += 400
	default:
		score += 200
	}
	if cand.isLossless {
		score += 100
	}
	// Prefer earlier tracks when scores tie.
	score -= float64(cand.order) * 0.1
	return score
}

func buildCandidates(streams []ffprobe.Stream) []candidate {
	result := make([]candidate, 0, len(streams))
	for _, stream := range streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		cand := candidate{
			stream:         stream,
			order:          len(result),
			title:          normalizeTitle(stream.Tags),
			channels:       channelCount(stream),
			defaultFlagged: stream.Disposition["default"] == 1,
			isLossless:     detectLossless(stream),
		}
		cand.isCommentary = strings.Contains(cand.title, "commentary") || stream.Disposition["comment"] == 1
		result = append(result, cand)
	}
	return result
}

func normalizeTitle(tags map[string]string) string {
	for _, key := range []string{"title", "TITLE", "handler_name", "HANDLER_NAME"} {
		if value, ok := tags[key]; ok {
			return strings.ToLower(strings.TrimSpace(value))
		}
	}
	return ""
}

func detectLossless(stream ffprobe.Stream) bool {
	codec := strings.ToLower(stream.CodecName)
	switch {
	case codec == "flac", codec == "alac", codec == "truehd", codec == "mlp", codec == "wavpack":
		return true
	case strings.HasPrefix(codec, "pcm_"):
		return true
	default:
		return false
	}
}

func channelCount(stream ffprobe.Stream) int {
	if stream.Channels > 0 {
		return stream.Channels
	}
	layout := strings.ToLower(strings.TrimSpace(stream.ChannelLayout))
	switch {
	case layout == "":
		return 0
	case strings.HasPrefix(layout, "7.1"):
		return 8
	case strings.HasPrefix(layout, "5.1"):
		return 6
	case strings.HasPrefix(layout, "quad"), strings.HasPrefix(layout, "4.0"):
		return 4
	case strings.HasPrefix(layout, "stereo"), strings.HasPrefix(layout, "2.0"):
		return 2
	case strings.HasPrefix(layout, "mono"):
		return 1
	default:
		return 0
	}
}

func formatStreamSummary(stream ffprobe.Stream) string {
	parts := []string{"#" + strconv.Itoa(stream.Index)}
	if codec := strings.TrimSpace(stream.CodecName); codec != "" {
		parts = append(parts, codec)
	}
	if ch := channelCount(stream); ch > 0 {
		parts = append(parts, strconv.Itoa(ch)+"ch")
	}
	if title := strings.TrimSpace(stream.Tags["title"]); title != "" {
		parts = append(parts, strconv.Quote(title))
	}
	return strings.Join(parts, " ")
}

// Package audio picks which audio stream of a multi-track video container is
// measured and extracted. It depends only on internal/media/ffprobe.
package audio

// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// It is used to confirm that an input actually carries an audio stream before
// the loudness passes spend minutes decoding it. The package has no
// levelset-specific dependencies.
package ffprobe

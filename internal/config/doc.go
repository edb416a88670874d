// Package config loads, normalizes, and validates levelset configuration data.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks such as LEVELSET_FFMPEG and
// LEVELSET_TARGET_LUFS. Command code should obtain every setting through this
// package so the batch, pipeline, and history layers receive sanitized paths
// and a validated loudness target.
package config

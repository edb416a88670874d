// Package media classifies and discovers the audio/video files a batch run
// operates on.
//
// Classification is purely extension based: a fixed allow-list maps each
// supported suffix to an audio or video kind. Discover walks a single folder
// (non-recursively) and returns the supported files in a stable order, and
// OutputPath derives where the normalized copy of a file is written.
package media

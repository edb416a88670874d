package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Kind distinguishes audio inputs from video inputs.
type Kind int

const (
	KindUnknown Kind = iota
	KindAudio
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// ExtractedAudioExt is the container used for audio extracted from video inputs.
const ExtractedAudioExt = ".m4a"

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".flac": {}, ".wav": {}, ".m4a": {},
	".ogg": {}, ".opus": {}, ".aac": {}, ".wma": {},
}

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {},
	".wmv": {}, ".flv": {}, ".webm": {}, ".m4v": {},
}

// ErrUnsupported reports a path whose extension is not on the allow-list.
var ErrUnsupported = errors.New("unsupported media extension")

// File is a discovered input. It is never mutated after discovery.
type File struct {
	Path string
	Kind Kind
}

// Name returns the base name of the file.
func (f File) Name() string {
	return filepath.Base(f.Path)
}

// IsVideo reports whether the file is a video container.
func (f File) IsVideo() bool {
	return f.Kind == KindVideo
}

// KindOf classifies a path by its (case-insensitive) extension.
func KindOf(path string) Kind {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := audioExtensions[ext]; ok {
		return KindAudio
	}
	if _, ok := videoExtensions[ext]; ok {
		return KindVideo
	}
	return KindUnknown
}

// Classify builds a File for path or returns ErrUnsupported.
func Classify(path string) (File, error) {
	kind := KindOf(path)
	if kind == KindUnknown {
		return File{}, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	return File{Path: path, Kind: kind}, nil
}

// SupportedExtensions lists the allow-list for the given kind, sorted.
func SupportedExtensions(kind Kind) []string {
	var source map[string]struct{}
	switch kind {
	case KindAudio:
		source = audioExtensions
	case KindVideo:
		source = videoExtensions
	default:
		return nil
	}
	out := make([]string, 0, len(source))
	for ext := range source {
		out = append(out, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(out)
	return out
}

// Discover lists the supported regular files directly inside dir, ordered by
// name. Subdirectories (including a previous run's output folder) are skipped.
func Discover(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		file, err := Classify(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		files = append(files, file)
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// OutputPath returns where the normalized copy of file lands inside outputDir.
// Video inputs always produce the extracted-audio container.
func OutputPath(file File, outputDir string) string {
	name := file.Name()
	if file.IsVideo() {
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ExtractedAudioExt
	}
	return filepath.Join(outputDir, name)
}

// AssignOutputs maps every file to a unique output path in outputDir. When two
// inputs would collide (for example "song.mp4" and "song.m4a"), later files
// get their source extension folded into the stem: "song.mp4.m4a" becomes
// "song-mp4.m4a".
func AssignOutputs(files []File, outputDir string) []string {
	outputs := make([]string, len(files))
	taken := make(map[string]struct{}, len(files))
	for i, file := range files {
		candidate := OutputPath(file, outputDir)
		if _, clash := taken[strings.ToLower(candidate)]; clash {
			candidate = disambiguate(file, outputDir, taken)
		}
		taken[strings.ToLower(candidate)] = struct{}{}
		outputs[i] = candidate
	}
	return outputs
}

func disambiguate(file File, outputDir string, taken map[string]struct{}) string {
	name := file.Name()
	srcExt := filepath.Ext(name)
	stem := strings.TrimSuffix(name, srcExt)
	outExt := srcExt
	if file.IsVideo() {
		outExt = ExtractedAudioExt
	}
	base := stem + "-" + strings.TrimPrefix(strings.ToLower(srcExt), ".")
	candidate := filepath.Join(outputDir, base+outExt)
	for n := 2; ; n++ {
		if _, clash := taken[strings.ToLower(candidate)]; !clash {
			return candidate
		}
		candidate = filepath.Join(outputDir, fmt.Sprintf("%s-%d%s", base, n, outExt))
	}
}

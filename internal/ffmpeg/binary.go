package ffmpeg

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvBinary overrides the ffmpeg executable when no explicit path is configured.
const EnvBinary = "LEVELSET_FFMPEG"

// ResolveBinary returns the ffmpeg executable to run. The result is always
// non-empty; when nothing better is found it falls back to the bare name and
// lets PATH resolution fail at execution time.
func ResolveBinary(configured string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if value, ok := os.LookupEnv(EnvBinary); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	if self, err := os.Executable(); err == nil {
		candidate := sidecarCandidate(self, "ffmpeg")
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			return candidate
		}
	}
	if resolved, err := exec.LookPath(executableName("ffmpeg")); err == nil {
		return resolved
	}
	return executableName("ffmpeg")
}

// ResolveProbeBinary returns the ffprobe executable, preferring one that sits
// next to the resolved ffmpeg binary.
func ResolveProbeBinary(configured, ffmpegBinary string) string {
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	if strings.ContainsRune(ffmpegBinary, filepath.Separator) {
		candidate := sidecarCandidate(ffmpegBinary, "ffprobe")
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			return candidate
		}
	}
	return executableName("ffprobe")
}

func sidecarCandidate(neighbour, name string) string {
	return filepath.Join(filepath.Dir(neighbour), executableName(name))
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

package preflight

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"levelset/internal/config"
	"levelset/internal/deps"
	"levelset/internal/ffmpeg"
)

// CheckDirectoryAccess verifies that path is a directory the current user can
// read, write, and traverse.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckReadableDirectory verifies that path is a directory that can be listed.
func CheckReadableDirectory(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckSystemDeps evaluates the executables levelset runs. FFprobe is
// optional unless ffmpeg.probe_inputs is enabled.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	binary := ffmpeg.ResolveBinary(cfg.FFmpeg.Binary)
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     binary,
			Description: "Required for measurement and normalization",
		},
		probeRequirement(cfg, binary),
	})
}

func probeRequirement(cfg *config.Config, ffmpegBinary string) deps.Requirement {
	return deps.Requirement{
		Name:        "FFprobe",
		Command:     ffmpeg.ResolveProbeBinary(cfg.FFmpeg.FFprobeBinary, ffmpegBinary),
		Description: "Audio stream inspection (ffmpeg.probe_inputs)",
		Optional:    !cfg.FFmpeg.ProbeInputs,
	}
}

// Package ffmpeg runs the external ffmpeg engine as a bounded subprocess.
//
// Runner executes one invocation with a hard timeout and keeps only the tail of
// the diagnostic (stderr) stream, which is where loudnorm prints its JSON
// statistics block. Failures are classified into ErrNotFound, ErrTimeout, and
// *ExitError so callers can map them onto their own taxonomies with errors.Is
// and errors.As. ResolveBinary mirrors how the tool locates ffmpeg: explicit
// configuration, the LEVELSET_FFMPEG environment variable, a sidecar binary
// next to the running executable, and finally PATH.
package ffmpeg

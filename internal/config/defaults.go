package config

const (
	defaultConfigPath             = "~/.config/levelset/config.toml"
	projectConfigName             = "levelset.toml"
	defaultInputDir               = "."
	defaultOutputSubdir           = "normalized"
	defaultLogDir                 = "~/.local/share/levelset/logs"
	defaultHistoryPath            = "~/.local/share/levelset/history.db"
	defaultTargetLUFS             = -16.0
	defaultFFmpegBinary           = "ffmpeg"
	defaultAnalysisTimeoutSeconds = 300
	defaultExecuteTimeoutSeconds  = 600
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultLogRetentionDays       = 30

	// EnvFFmpeg overrides ffmpeg.binary when the config leaves it empty.
	EnvFFmpeg = "LEVELSET_FFMPEG"
	// EnvTargetLUFS overrides loudness.target_lufs when set.
	EnvTargetLUFS = "LEVELSET_TARGET_LUFS"
)

// Default returns a Config populated with defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InputDir:     defaultInputDir,
			OutputSubdir: defaultOutputSubdir,
			LogDir:       defaultLogDir,
		},
		Loudness: Loudness{
			TargetLUFS: defaultTargetLUFS,
		},
		FFmpeg: FFmpeg{
			AnalysisTimeoutSeconds: defaultAnalysisTimeoutSeconds,
			ExecuteTimeoutSeconds:  defaultExecuteTimeoutSeconds,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

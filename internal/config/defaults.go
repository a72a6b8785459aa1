package config

const (
	defaultDataDir            = "~/.local/share/ussplitter"
	defaultLogDir             = "~/.local/share/ussplitter/logs"
	defaultBind               = "127.0.0.1:5000"
	defaultEngineBinary       = "demucs"
	defaultModel              = "htdemucs"
	defaultBitrate            = 128
	defaultEngineJobs         = 2
	defaultQueuePollInterval  = 1
	defaultErrorRetryInterval = 5
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Server: Server{
			Bind: defaultBind,
		},
		Engine: Engine{
			Binary:       defaultEngineBinary,
			DefaultModel: defaultModel,
			Bitrate:      defaultBitrate,
			Jobs:         defaultEngineJobs,
		},
		Worker: Worker{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

const (
	defaultStateDirFallback      = "~/.local/state/vlmprep"
	defaultLogDir                = "~/.local/state/vlmprep/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogColor              = "auto"
	defaultFrameInterval         = 30
	defaultFrameJPEGQuality      = 95
	defaultResolution            = 512
	defaultNormalizeOnError      = "abort"
	defaultNormalizeJPEGQuality  = 95
	defaultCaptionBackend        = "hf"
	defaultCaptionModel          = "Salesforce/blip-image-captioning-base"
	defaultHFBaseURL             = "https://api-inference.huggingface.co"
	defaultCaptionMaxLength      = 50
	defaultCaptionNumBeams       = 5
	defaultCaptionDevice         = "auto"
	defaultCaptionPrompt         = "Describe this image in one short sentence."
	defaultItemTimeoutSeconds    = 120
	defaultRequestTimeoutSeconds = 60
	defaultRetryAttempts         = 3
)

// DefaultImageExtensions is the extension set both image stages match by
// default. Matching is case-insensitive.
var DefaultImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tiff"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir(),
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			Color:  defaultLogColor,
		},
		Frames: Frames{
			Interval:    defaultFrameInterval,
			JPEGQuality: defaultFrameJPEGQuality,
			CleanStale:  true,
		},
		Normalize: Normalize{
			Resolution:  defaultResolution,
			Extensions:  append([]string(nil), DefaultImageExtensions...),
			OnError:     defaultNormalizeOnError,
			JPEGQuality: defaultNormalizeJPEGQuality,
		},
		Captions: Captions{
			Backend:               defaultCaptionBackend,
			Model:                 defaultCaptionModel,
			MaxLength:             defaultCaptionMaxLength,
			NumBeams:              defaultCaptionNumBeams,
			Device:                defaultCaptionDevice,
			Prompt:                defaultCaptionPrompt,
			Extensions:            append([]string(nil), DefaultImageExtensions...),
			ItemTimeoutSeconds:    defaultItemTimeoutSeconds,
			RequestTimeoutSeconds: defaultRequestTimeoutSeconds,
			RetryAttempts:         defaultRetryAttempts,
		},
		RunLog: RunLog{
			Enabled: true,
		},
	}
}

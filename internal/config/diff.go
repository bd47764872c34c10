package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything
// structural (listeners, providers, audio chain) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// VADThresholdChanged covers vad.threshold only. Window and pool
	// changes need a detector pool rebuild and are not hot-reloadable.
	VADThresholdChanged bool
	NewVADThreshold     float64

	// TTSChanged covers voice and speed; new calls pick them up.
	TTSChanged bool

	// TimeoutsChanged covers the call flow timers; new calls pick them up.
	TimeoutsChanged bool
}

// Empty reports whether the diff carries no changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.VADThresholdChanged && !d.TTSChanged && !d.TimeoutsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.VAD.Threshold != new.VAD.Threshold {
		d.VADThresholdChanged = true
		d.NewVADThreshold = new.VAD.Threshold
	}

	if old.TTS != new.TTS {
		d.TTSChanged = true
	}

	if old.Timeouts != new.Timeouts {
		d.TimeoutsChanged = true
	}

	return d
}

package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DefaultLevelChanged bool
	NewDefaultLevel     int

	FeedbackChanged    bool
	NewFeedbackEnabled bool

	// RestartRequired lists sections that changed but only take effect after
	// a restart (providers, reference, audio, history, listen addresses).
	RestartRequired []string
}

// Changed reports whether any hot-reloadable field differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.DefaultLevelChanged || d.FeedbackChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Analysis.DefaultLevel != new.Analysis.DefaultLevel {
		d.DefaultLevelChanged = true
		d.NewDefaultLevel = new.Analysis.DefaultLevel
	}
	if old.Feedback.Enabled != new.Feedback.Enabled {
		d.FeedbackChanged = true
		d.NewFeedbackEnabled = new.Feedback.Enabled
	}

	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.OpsAddr != new.Server.OpsAddr {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !sameProviders(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Reference != new.Reference {
		d.RestartRequired = append(d.RestartRequired, "reference")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if old.History != new.History {
		d.RestartRequired = append(d.RestartRequired, "history")
	}
	return d
}

// sameProviders compares the identity fields of each entry. Options are
// ignored.
func sameProviders(a, b ProvidersConfig) bool {
	same := func(x, y ProviderEntry) bool {
		return x.Name == y.Name && x.Model == y.Model && x.BaseURL == y.BaseURL && x.APIKey == y.APIKey
	}
	return same(a.STT, b.STT) && same(a.STTFallback, b.STTFallback) && same(a.LLM, b.LLM)
}

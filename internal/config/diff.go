package config

import "reflect"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked individually;
// everything else sets RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PracticeChanged covers the practice behaviour block: new sessions pick
	// up the new values, running sessions keep the old ones.
	PracticeChanged bool
	NewPractice     PracticeConfig

	// ScenarioPathChanged means the catalogue should be reloaded.
	ScenarioPathChanged bool
	NewScenarioPath     string

	// RestartRequired is set when providers, server networking, storage, or
	// cache settings changed. Those are wired at startup and cannot be
	// swapped under live sessions.
	RestartRequired bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Practice != new.Practice {
		d.PracticeChanged = true
		d.NewPractice = new.Practice
	}

	if old.Scenarios.Path != new.Scenarios.Path {
		d.ScenarioPathChanged = true
		d.NewScenarioPath = new.Scenarios.Path
	}

	if !reflect.DeepEqual(old.Providers, new.Providers) ||
		old.Server.ListenAddr != new.Server.ListenAddr ||
		!reflect.DeepEqual(old.Server.TLS, new.Server.TLS) ||
		old.Server.StaticDir != new.Server.StaticDir ||
		old.Storage != new.Storage ||
		old.Cache != new.Cache {
		d.RestartRequired = true
	}

	return d
}

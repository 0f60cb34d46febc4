package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs. Conversation and
// safety changes are applied by rebuilding the pipeline around the existing
// providers; anything else needs a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ConversationChanged covers persona, sampling and turn timeout.
	ConversationChanged bool

	// SafetyChanged covers the validator prompt and settings and the reply
	// texts.
	SafetyChanged bool

	// TranscriptionChanged covers language hints.
	TranscriptionChanged bool

	// RestartRequired lists top-level sections whose changes only take
	// effect after a restart.
	RestartRequired []string
}

// Reloadable reports whether the diff contains a change that can be applied
// without a restart.
func (d ConfigDiff) Reloadable() bool {
	return d.ConversationChanged || d.SafetyChanged || d.TranscriptionChanged
}

// Diff compares old and new.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{
		ConversationChanged:  !reflect.DeepEqual(old.Conversation, new.Conversation),
		SafetyChanged:        !reflect.DeepEqual(old.Safety, new.Safety),
		TranscriptionChanged: !reflect.DeepEqual(old.Transcription, new.Transcription),
	}
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"speech", old.Speech, new.Speech},
		{"audit", old.Audit, new.Audit},
		{"telemetry", old.Telemetry, new.Telemetry},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	slices.Sort(d.RestartRequired)
	return d
}

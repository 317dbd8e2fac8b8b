package service

import (
	"strings"

	"github.com/alexisbeaulieu97/monorun/internal/config"
)

// ScriptKind discriminates a resolved script.
type ScriptKind int

const (
	// ScriptNone means there is nothing to execute.
	ScriptNone ScriptKind = iota
	// ScriptText is shell text handed to an executor.
	ScriptText
	// ScriptOverride is a fixed outcome that is never executed.
	ScriptOverride
)

// Script is the resolved, executable form of a check or run script.
type Script struct {
	Kind     ScriptKind
	Text     string
	Override bool
}

// ScriptFromConfig converts a configuration script. Line arrays are joined
// with newlines; empty text and empty arrays resolve to ScriptNone.
func ScriptFromConfig(cfg config.Script) Script {
	switch cfg.Kind {
	case config.ScriptText:
		if cfg.Text == "" {
			return Script{}
		}
		return Script{Kind: ScriptText, Text: cfg.Text}
	case config.ScriptLines:
		if len(cfg.Lines) == 0 {
			return Script{}
		}
		return Script{Kind: ScriptText, Text: strings.Join(cfg.Lines, "\n")}
	case config.ScriptBool:
		return Script{Kind: ScriptOverride, Override: cfg.Bool}
	default:
		return Script{}
	}
}

// IsNone reports whether nothing was configured.
func (s Script) IsNone() bool {
	return s.Kind == ScriptNone
}

// IsOverride reports whether the script is a fixed outcome.
func (s Script) IsOverride() bool {
	return s.Kind == ScriptOverride
}

func (s Script) String() string {
	switch s.Kind {
	case ScriptText:
		return s.Text
	case ScriptOverride:
		if s.Override {
			return "true"
		}
		return "false"
	default:
		return "<none>"
	}
}

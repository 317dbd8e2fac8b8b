package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// ScriptKind discriminates the accepted shapes of a check or run script.
type ScriptKind int

const (
	// ScriptNone means nothing was configured.
	ScriptNone ScriptKind = iota
	// ScriptText is a single, possibly multi-line, string.
	ScriptText
	// ScriptLines is an array of lines.
	ScriptLines
	// ScriptBool is a fixed outcome that never executes anything.
	ScriptBool
)

// Script is a check or run script as written in a configuration file.
type Script struct {
	Kind  ScriptKind
	Text  string
	Lines []string
	Bool  bool
}

// TextScript builds a single-string script.
func TextScript(text string) Script {
	return Script{Kind: ScriptText, Text: text}
}

// LinesScript builds an array script.
func LinesScript(lines ...string) Script {
	return Script{Kind: ScriptLines, Lines: append([]string{}, lines...)}
}

// BoolScript builds a fixed-outcome script.
func BoolScript(value bool) Script {
	return Script{Kind: ScriptBool, Bool: value}
}

// IsEmpty reports whether the script carries nothing to execute. Boolean
// scripts are never empty.
func (s Script) IsEmpty() bool {
	switch s.Kind {
	case ScriptText:
		return s.Text == ""
	case ScriptLines:
		return len(s.Lines) == 0
	case ScriptBool:
		return false
	default:
		return true
	}
}

// UnmarshalYAML accepts a string, a sequence of strings or a boolean.
func (s *Script) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		switch value.ShortTag() {
		case "!!bool":
			var b bool
			if err := value.Decode(&b); err != nil {
				return err
			}
			*s = BoolScript(b)
			return nil
		case "!!str":
			*s = TextScript(value.Value)
			return nil
		case "!!null":
			*s = Script{}
			return nil
		}
	case yaml.SequenceNode:
		lines := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.ShortTag() != "!!str" {
				return fmt.Errorf("line %d: script lines must be strings", item.Line)
			}
			lines = append(lines, item.Value)
		}
		*s = Script{Kind: ScriptLines, Lines: lines}
		return nil
	}

	return fmt.Errorf("line %d: script must be a string, a list of strings or a boolean", value.Line)
}

package rewrite

import (
	"errors"
	"fmt"
	"strings"
)

type Mode uint8

const (
	ModeMirrorA Mode = iota
	ModeMirrorB
	ModePrivacyMirror
	ModeCanonicalize
	ModeCustom
	ModePassthrough
)

var ErrUnknownMode = errors.New("unknown rewrite mode")

// Stored names match the keys written by earlier releases.
var modeNames = [...]string{
	ModeMirrorA:       "vxtwitter",
	ModeMirrorB:       "fxtwitter",
	ModePrivacyMirror: "nitter",
	ModeCanonicalize:  "clean",
	ModeCustom:        "custom",
	ModePassthrough:   "original",
}

var modeAliases = map[string]Mode{
	"mirror-a":       ModeMirrorA,
	"mirror-b":       ModeMirrorB,
	"privacy-mirror": ModePrivacyMirror,
	"canonicalize":   ModeCanonicalize,
	"passthrough":    ModePassthrough,
}

// Modes lists every mode in declaration order.
func Modes() []Mode {
	return []Mode{ModeMirrorA, ModeMirrorB, ModePrivacyMirror, ModeCanonicalize, ModeCustom, ModePassthrough}
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", m)
}

// Description is a short human label for CLI and API listings.
func (m Mode) Description() string {
	switch m {
	case ModeMirrorA:
		return "embed mirror (" + MirrorAHost + ")"
	case ModeMirrorB:
		return "embed mirror (" + MirrorBHost + ")"
	case ModePrivacyMirror:
		return "privacy mirror (configurable host)"
	case ModeCanonicalize:
		return "strip tracking parameters"
	case ModeCustom:
		return "custom rules"
	case ModePassthrough:
		return "leave links untouched"
	default:
		return "unknown"
	}
}

// ParseMode accepts stored names and the descriptive aliases, case-insensitively.
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range modeNames {
		if name == s {
			return Mode(i), nil
		}
	}
	if m, ok := modeAliases[s]; ok {
		return m, nil
	}
	return ModePassthrough, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Package filter implements the per-platform search filter model attached to a watch.
//
// A filter-set is a tagged union: each platform has its own concrete type and the
// operations on it never cross platform boundaries. The zero value of every variant
// means "platform defaults" and is stored as an empty blob.
package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Platform identifiers.
const (
	PlatformEnjoei       = "enjoei"
	PlatformMercadoLivre = "ml"
	PlatformOlx          = "olx"
)

// KeyClear is the pseudo-key the chat UI uses for "clear all filters".
const KeyClear = "clr"

// ErrUnknownPlatform is returned when a blob is decoded for a platform without a filter model.
var ErrUnknownPlatform = errors.New("unknown platform")

// Set is a platform-typed filter-set.
type Set interface {
	// Platform returns the platform identifier the set belongs to.
	Platform() string
	// Toggle returns a new set with key set to value, or cleared if value is already active.
	// Unknown keys or values return the set unchanged.
	Toggle(key, value string) Set
	// Summary returns a short tag like "[usado, tam: M]", or "" when everything is default.
	Summary() string
	// View describes every togglable option and whether it is active.
	View() View
	// IsDefault reports whether the set equals the platform defaults.
	IsDefault() bool
}

// Option is a single togglable choice in a View.
type Option struct {
	Key    string
	Value  string
	Label  string
	Active bool
}

// View is a structured choice-set for presentation, one slice per row.
type View struct {
	Rows [][]Option
}

// Empty returns the all-defaults set for a platform, or nil if the platform is unknown.
func Empty(platform string) Set {
	switch platform {
	case PlatformEnjoei:
		return Enjoei{}
	case PlatformMercadoLivre:
		return MercadoLivre{}
	case PlatformOlx:
		return Olx{}
	}
	return nil
}

// Clear returns the defaults of the set's platform.
func Clear(s Set) Set {
	if s == nil {
		return nil
	}
	return Empty(s.Platform())
}

// Encode serializes a set. Default sets encode to "" so storage keeps no blob at all.
func Encode(s Set) (string, error) {
	if s == nil || s.IsDefault() {
		return "", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal filters: %w", err)
	}
	return string(data), nil
}

// Decode parses a stored blob for the given platform. An empty blob yields the defaults.
// On malformed input the defaults are returned together with the error.
func Decode(platform, blob string) (Set, error) {
	empty := Empty(platform)
	if empty == nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownPlatform, platform)
	}
	blob = strings.TrimSpace(blob)
	if blob == "" || blob == "null" || blob == "{}" {
		return empty, nil
	}

	var (
		s   Set
		err error
	)
	switch platform {
	case PlatformEnjoei:
		var v Enjoei
		err = json.Unmarshal([]byte(blob), &v)
		s = v.normalize()
	case PlatformMercadoLivre:
		var v MercadoLivre
		err = json.Unmarshal([]byte(blob), &v)
		s = v.normalize()
	case PlatformOlx:
		var v Olx
		err = json.Unmarshal([]byte(blob), &v)
		s = v.normalize()
	}
	if err != nil {
		return empty, fmt.Errorf("unmarshal %s filters: %w", platform, err)
	}
	return s, nil
}

// Canonical re-encodes a stored blob so equivalent filter-sets compare equal.
// Blobs that cannot be decoded collapse to "".
func Canonical(platform, blob string) string {
	s, err := Decode(platform, blob)
	if err != nil {
		return ""
	}
	out, err := Encode(s)
	if err != nil {
		return ""
	}
	return out
}

// choose implements select-again-to-clear for enumerated fields.
// Selecting the default value always lands on the default.
func choose(current, next, def string) string {
	if next == def || current == next {
		return ""
	}
	return next
}

func summarize(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func known(v string, allowed map[string]string) string {
	for _, a := range allowed {
		if a == v {
			return v
		}
	}
	return ""
}

func clearRow() []Option {
	return []Option{{Key: KeyClear, Value: "0", Label: "Limpar filtros"}}
}

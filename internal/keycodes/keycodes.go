// Package keycodes resolves the editor's platform-aware modifier aliases
// ("primary", "access", ...) into concrete modifier keys.
//
// The editor keymap and every browser driver resolve shortcuts through this
// package so that a shortcut pressed by a driver is the one the editor listens for.
package keycodes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kuitang/blockcheck/internal/errs"
)

// Modifier key names, spelled the way browser automation tools expect them.
const (
	Shift   = "Shift"
	Alt     = "Alt"
	Control = "Control"
	Meta    = "Meta"
)

// Alias names accepted by Resolve.
const (
	Primary      = "primary"
	PrimaryShift = "primaryShift"
	PrimaryAlt   = "primaryAlt"
	Secondary    = "secondary"
	Access       = "access"
	Ctrl         = "ctrl"
	AltAlias     = "alt"
	CtrlShift    = "ctrlShift"
	ShiftAlias   = "shift"
	ShiftAlt     = "shiftAlt"
)

type aliasDef struct {
	apple []string
	other []string
}

var aliases = map[string]aliasDef{
	Primary:      {apple: []string{Meta}, other: []string{Control}},
	PrimaryShift: {apple: []string{Shift, Meta}, other: []string{Control, Shift}},
	PrimaryAlt:   {apple: []string{Alt, Meta}, other: []string{Control, Alt}},
	Secondary:    {apple: []string{Shift, Alt, Meta}, other: []string{Control, Shift, Alt}},
	Access:       {apple: []string{Control, Alt}, other: []string{Shift, Alt}},
	Ctrl:         {apple: []string{Control}, other: []string{Control}},
	AltAlias:     {apple: []string{Alt}, other: []string{Alt}},
	CtrlShift:    {apple: []string{Control, Shift}, other: []string{Control, Shift}},
	ShiftAlias:   {apple: []string{Shift}, other: []string{Shift}},
	ShiftAlt:     {apple: []string{Shift, Alt}, other: []string{Shift, Alt}},
}

// Aliases returns the supported alias names, sorted.
func Aliases() []string {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the modifier keys an alias stands for on the given platform.
func Resolve(alias string, apple bool) ([]string, error) {
	def, ok := aliases[alias]
	if !ok {
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown modifier alias %q", alias))
	}
	src := def.other
	if apple {
		src = def.apple
	}
	out := make([]string, len(src))
	copy(out, src)
	return out, nil
}

// IsApple reports whether a platform name (GOOS style) uses Apple key conventions.
func IsApple(platform string) bool {
	switch strings.ToLower(strings.TrimSpace(platform)) {
	case "darwin", "mac", "macos", "ios":
		return true
	default:
		return false
	}
}

// Chord is a key pressed while holding a set of modifiers.
type Chord struct {
	Modifiers []string
	Key       string
}

// NewChord resolves alias and pairs it with key.
func NewChord(alias, key string, apple bool) (Chord, error) {
	mods, err := Resolve(alias, apple)
	if err != nil {
		return Chord{}, err
	}
	return Chord{Modifiers: mods, Key: key}, nil
}

// Has reports whether the chord holds the modifier.
func (c Chord) Has(modifier string) bool {
	for _, m := range c.Modifiers {
		if m == modifier {
			return true
		}
	}
	return false
}

// String renders the chord as "Shift+Alt+z".
func (c Chord) String() string {
	parts := make([]string, 0, len(c.Modifiers)+1)
	parts = append(parts, c.Modifiers...)
	parts = append(parts, c.Key)
	return strings.Join(parts, "+")
}

package prefs

import "errors"

// ErrInvalidPreferences marks a malformed or incomplete preference profile.
// It is fatal for a run.
var ErrInvalidPreferences = errors.New("invalid preferences")

package models

import (
	"maps"
	"strings"
	"time"
)

// OneShot identifies a ticker event that must fire at most once per room.
type OneShot string

const (
	TimeWarning OneShot = "time-warning"

	ghostCapturePrefix = "ghost-capture:"
)

// GhostCapture is the one-shot key for replaying a challenge room capture.
func GhostCapture(captureID string) OneShot {
	return OneShot(ghostCapturePrefix + captureID)
}

func (o OneShot) IsGhostCapture() bool {
	return strings.HasPrefix(string(o), ghostCapturePrefix)
}

// Flags records when each one-shot event fired.
type Flags map[OneShot]time.Time

func (f Flags) Fired(e OneShot) bool {
	_, ok := f[e]
	return ok
}

// Fire marks e as fired and reports whether it was not fired before.
func (f *Flags) Fire(e OneShot, at time.Time) bool {
	if *f == nil {
		*f = make(Flags)
	}
	if (*f).Fired(e) {
		return false
	}
	(*f)[e] = at
	return true
}

func (f Flags) Clone() Flags {
	if f == nil {
		return nil
	}
	return maps.Clone(f)
}

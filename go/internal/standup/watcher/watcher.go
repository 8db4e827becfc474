package watcher

import (
	"time"
)

// PollInterval is how often the wall clock is checked. The poll is a fixed
// period from whenever the watcher started, not aligned to minute edges.
const PollInterval = time.Minute

// MinuteWatcher matches the wall clock against a daily target hour and minute.
type MinuteWatcher struct {
	hour    int
	minute  int
	enabled bool
}

// New returns a watcher for hour:minute. Out-of-range values give a disabled
// watcher that never matches.
func New(hour, minute int) *MinuteWatcher {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Disabled()
	}
	return &MinuteWatcher{hour: hour, minute: minute, enabled: true}
}

// Disabled returns a watcher that never matches.
func Disabled() *MinuteWatcher {
	return &MinuteWatcher{}
}

// Enabled reports whether the watcher has a valid target.
func (w *MinuteWatcher) Enabled() bool {
	return w.enabled
}

// Target returns the configured hour and minute.
func (w *MinuteWatcher) Target() (hour, minute int) {
	return w.hour, w.minute
}

// Matches reports whether now falls in the target minute, in now's location.
func (w *MinuteWatcher) Matches(now time.Time) bool {
	if !w.enabled {
		return false
	}
	return now.Hour() == w.hour && now.Minute() == w.minute
}

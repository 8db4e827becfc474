package models

import (
	"strconv"
	"strings"
)

// TeamMember is a roster entry as stored in the settings file.
type TeamMember struct {
	Name     string `json:"name" yaml:"name" validate:"required"`
	Disabled bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Sound is a selectable audio file.
type Sound struct {
	Name     string `json:"name" yaml:"name"`
	Path     string `json:"path" yaml:"path" validate:"required"`
	Selected bool   `json:"selected" yaml:"selected"`
}

// StandupPickerSettings holds everything the picker screen reads from settings.
//
// Numeric values are kept as the strings the settings editor writes. A value
// that does not parse disables the feature that depends on it.
type StandupPickerSettings struct {
	TeamMembers                []TeamMember `json:"teamMembers" yaml:"teamMembers" validate:"unique=Name,dive"`
	StandupHour                string       `json:"standupHour" yaml:"standupHour"`
	StandupMinute              string       `json:"standupMinute" yaml:"standupMinute"`
	StandupTimeInMin           string       `json:"standupTimeInMin" yaml:"standupTimeInMin"`
	StandupEndReminderAfterMin string       `json:"standupEndReminderAfterMin" yaml:"standupEndReminderAfterMin"`
	StandupEndReminderSound    string       `json:"standupEndReminderSound" yaml:"standupEndReminderSound"`
	SuccessSound               string       `json:"successSound" yaml:"successSound"`
	StandupMusic               []Sound      `json:"standupMusic" yaml:"standupMusic" validate:"dive"`
	Background                 string       `json:"background" yaml:"background"`
}

// Settings is an immutable configuration snapshot.
type Settings struct {
	Language      string                `json:"language" yaml:"language"`
	StandupPicker StandupPickerSettings `json:"standupPicker" yaml:"standupPicker"`
}

// Clone returns a deep copy so callers can hand the snapshot around freely.
func (s Settings) Clone() Settings {
	out := s
	out.StandupPicker.TeamMembers = append([]TeamMember(nil), s.StandupPicker.TeamMembers...)
	out.StandupPicker.StandupMusic = append([]Sound(nil), s.StandupPicker.StandupMusic...)
	return out
}

// StandupTime returns the configured daily trigger time.
func (s Settings) StandupTime() (hour, minute int, ok bool) {
	hour, err := parseNumber(s.StandupPicker.StandupHour)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = parseNumber(s.StandupPicker.StandupMinute)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// SessionSeconds is the length of one standup session.
func (s Settings) SessionSeconds() (int, bool) {
	minutes, err := parseNumber(s.StandupPicker.StandupTimeInMin)
	if err != nil || minutes <= 0 {
		return 0, false
	}
	return minutes * 60, true
}

// ReminderOffsetSeconds is how many seconds before the end of the session the
// reminder cue plays. The settings express it as minutes after the start.
func (s Settings) ReminderOffsetSeconds() (int, bool) {
	total, ok := s.SessionSeconds()
	if !ok {
		return 0, false
	}
	after, err := parseNumber(s.StandupPicker.StandupEndReminderAfterMin)
	if err != nil || after <= 0 {
		return 0, false
	}
	offset := total - after*60
	if offset <= 0 {
		return 0, false
	}
	return offset, true
}

// SelectedStandupSounds returns the notification sounds chosen for the daily trigger.
func (s Settings) SelectedStandupSounds() []Sound {
	var sounds []Sound
	for _, sound := range s.StandupPicker.StandupMusic {
		if sound.Selected {
			sounds = append(sounds, sound)
		}
	}
	return sounds
}

// BackgroundImage returns the relative asset path for the configured background.
func (s Settings) BackgroundImage() string {
	name := fileNameWithExtension(s.StandupPicker.Background)
	if name == "" {
		return DefaultBackgroundImage
	}
	return "./assets/images/" + name
}

// DefaultBackgroundImage is used until settings name another one.
const DefaultBackgroundImage = "./assets/images/background.jpg"

func fileNameWithExtension(path string) string {
	name := path
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		name = path[i+1:]
	}
	if !strings.Contains(name, ".") {
		return ""
	}
	return name
}

func parseNumber(v string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(v))
}

package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/models"
)

// ErrInvalidSettings wraps every validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// DefaultPath is where settings live when SETTINGS_PATH is not set.
const DefaultPath = "standup_settings.yaml"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Default returns the settings used when no settings file exists yet.
func Default() models.Settings {
	return models.Settings{
		Language: "en",
		StandupPicker: models.StandupPickerSettings{
			StandupHour:                "9",
			StandupMinute:              "30",
			StandupTimeInMin:           "15",
			StandupEndReminderAfterMin: "13",
		},
	}
}

// Store holds the current settings snapshot and the file it is persisted to.
type Store struct {
	path string

	mu          sync.RWMutex
	current     models.Settings
	subscribers []chan models.Settings
}

// LoadFromPath reads and validates the settings at path. A missing file
// yields Default.
func LoadFromPath(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info().Str("path", path).Msg("settings file not found, using defaults")
		s.current = Default()
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	s.current = cfg
	return s, nil
}

// Parse decodes and validates a YAML settings document.
func Parse(data []byte) (models.Settings, error) {
	var cfg models.Settings
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return models.Settings{}, fmt.Errorf("failed to parse settings file: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return models.Settings{}, err
	}
	return cfg, nil
}

// Validate checks structural constraints. Numeric fields are not checked:
// a value that does not parse only disables its feature.
func Validate(cfg *models.Settings) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}
	return nil
}

// Current returns a copy of the active snapshot.
func (s *Store) Current() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Save validates cfg, writes it to disk and notifies subscribers.
func (s *Store) Save(cfg models.Settings) error {
	if err := Validate(&cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFile(s.path, data); err != nil {
		return err
	}
	s.current = cfg.Clone()

	for _, ch := range s.subscribers {
		publishLatest(ch, s.current.Clone())
	}

	log.Info().
		Str("path", s.path).
		Int("members", len(cfg.StandupPicker.TeamMembers)).
		Msg("settings saved")
	return nil
}

// Subscribe returns a channel that receives every saved snapshot. Slow
// readers only see the latest one.
func (s *Store) Subscribe() <-chan models.Settings {
	ch := make(chan models.Settings, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// publishLatest replaces any unread snapshot in ch with cfg.
func publishLatest(ch chan models.Settings, cfg models.Settings) {
	for {
		select {
		case ch <- cfg:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

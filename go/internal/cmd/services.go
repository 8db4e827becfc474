package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/audio"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/dbconfig"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/health"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/labels"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/preferences"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/settings"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/controller"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/gateway"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/history"
	"github.com/prabjohns-atex/scrum-daily-standup-picker/go/internal/standup/publisher"
)

// Services holds every long-lived component of the process.
type Services struct {
	Settings    *settings.Store
	Controller  *controller.Controller
	Connections *gateway.ConnectionManager
	History     *history.Repository // nil unless HISTORY_ENABLED
	Health      *health.Checker

	recorder  *history.Recorder
	relay     *publisher.Relay
	publisher *publisher.JetStreamPublisher
	database  *sql.DB
}

func setupServices(ctx context.Context, cfg Config) (*Services, error) {
	s := &Services{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	store, err := settings.LoadFromPath(cfg.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	s.Settings = store
	current := store.Current()

	catalog, err := setupLabels(cfg, current.Language)
	if err != nil {
		return nil, err
	}

	ctrlCfg := controller.Config{
		Settings:        current,
		SettingsUpdates: store.Subscribe(),
		Labels:          catalog,
	}

	if cfg.AudioCommand != "" {
		player, err := audio.NewPlayer(cfg.AudioCommand)
		if err != nil {
			return nil, fmt.Errorf("failed to create audio player: %w", err)
		}
		ctrlCfg.Player = player
		log.Info().Str("command", cfg.AudioCommand).Msg("audio enabled")
	} else {
		log.Info().Msg("AUDIO_COMMAND not set, sounds disabled")
	}

	dbCfg := dbconfig.NewConfigFromEnv()
	if cfg.needsDatabase() {
		s.database, err = setupDatabase(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.PreferencesBackend {
	case "postgres":
		prefs := preferences.NewPostgresStore(s.database)
		if err := prefs.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		ctrlCfg.Preferences = prefs
	default:
		prefs, err := preferences.NewFileStore(cfg.PreferencesPath)
		if err != nil {
			return nil, err
		}
		ctrlCfg.Preferences = prefs
	}

	s.Controller = controller.New(ctrlCfg)

	s.Connections = gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	s.Controller.AddListener(s.Connections)

	if cfg.HistoryEnabled {
		s.History, err = history.Connect(ctx, dbCfg.DSN())
		if err != nil {
			return nil, err
		}
		if err := s.History.RunMigrations(ctx); err != nil {
			return nil, err
		}
		s.recorder = history.NewRecorder(s.History)
		s.Controller.AddListener(s.recorder)
		log.Info().Msg("session history enabled")
	}

	if cfg.NATSURL != "" {
		jsCfg := publisher.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		jsCfg.StreamName = cfg.NATSStream
		jsCfg.SubjectPrefix = cfg.NATSSubjectPrefix

		s.publisher, err = publisher.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, err
		}
		s.relay = publisher.NewRelay(s.publisher, publisher.DefaultRelayConfig())
		s.Controller.AddListener(s.relay)
		log.Info().Str("nats_url", cfg.NATSURL).Str("stream", jsCfg.StreamName).Msg("event publishing enabled")
	}

	s.Health = s.buildHealth()

	ok = true
	return s, nil
}

func setupLabels(cfg Config, language string) (*labels.Catalog, error) {
	if cfg.LabelsPath != "" {
		catalog, err := labels.LoadFile(language, cfg.LabelsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load labels: %w", err)
		}
		return catalog, nil
	}
	if language == "" {
		language = labels.DefaultLanguage
	}
	return labels.New(language)
}

func (s *Services) buildHealth() *health.Checker {
	checker := health.NewChecker(s.Controller, s.Connections)
	if s.database != nil {
		checker.AddDependency("postgres", s.database.PingContext)
	}
	if s.History != nil {
		checker.AddDependency("history", s.History.Ping)
	}
	if s.relay != nil {
		pub := s.publisher
		checker.WithRelay(s.relay).AddDependency("nats", func(context.Context) error {
			if !pub.Connected() {
				return errors.New("disconnected")
			}
			return nil
		})
	}
	return checker
}

// historyReader avoids handing the gateway a typed nil.
func (s *Services) historyReader() gateway.HistoryReader {
	if s.History == nil {
		return nil
	}
	return s.History
}

// Run starts the background components and blocks until ctx is cancelled
// and all of them have returned. Listener workers stop only after the
// controller, so its final session report is still delivered.
func (s *Services) Run(ctx context.Context) {
	workersCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var wg sync.WaitGroup
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	start(func() { s.Connections.Start(workersCtx) })
	if s.recorder != nil {
		start(func() { s.recorder.Run(workersCtx) })
	}
	if s.relay != nil {
		start(func() { s.relay.Run(workersCtx) })
	}

	if err := s.Controller.Run(ctx); err != nil {
		log.Error().Err(err).Msg("controller stopped with error")
	}
	stopWorkers()
	wg.Wait()
}

// Close releases external connections. It is safe on a partly built value.
func (s *Services) Close() {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close NATS connection")
		}
	}
	if s.History != nil {
		s.History.Close()
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close database")
		}
	}
}

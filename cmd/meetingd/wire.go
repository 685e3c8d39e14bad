package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/warp/meeting-engine/cache"
	"github.com/warp/meeting-engine/config"
	"github.com/warp/meeting-engine/engine"
	"github.com/warp/meeting-engine/identity"
	"github.com/warp/meeting-engine/logging"
	"github.com/warp/meeting-engine/meeting"
	"github.com/warp/meeting-engine/notify"
	"github.com/warp/meeting-engine/sources"
	"github.com/warp/meeting-engine/store/sqlite"
)

// app is every long-lived component a command may need.
type app struct {
	cfg      *config.Config
	secrets  config.Secrets
	log      logging.Logger
	store    *sqlite.Store
	loader   *sources.DirectoryLoader
	identity *identity.JWTResolver
	notifier *notify.Async
	registry *prometheus.Registry
	engine   *engine.Engine
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.New(&logging.Config{
		Level:       logging.ParseLevel(cfg.Log.Level),
		ServiceName: "meetingd",
		JSONFormat:  cfg.Log.JSON,
		Output:      os.Stderr,
	})
}

// buildApp wires the store, directory, identity, notifications and engine.
// Callers own Close.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:      cfg,
		secrets:  config.LoadSecrets(envFile),
		log:      newLogger(cfg),
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.store, err = sqlite.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	backend, err := a.cacheBackend()
	if err != nil {
		a.store.Close()
		return nil, err
	}
	a.loader = sources.NewDirectoryLoader(a.store, backend, cfg.Cache.TTL, cfg.Lookup(), a.log)

	if a.secrets.JWTSecret != "" {
		a.identity, err = identity.NewJWTResolver(a.secrets.JWTSecret, cfg.TokenTTL, a.employeeName)
		if err != nil {
			a.store.Close()
			return nil, err
		}
	} else {
		a.log.Warn("JWT_SECRET not set, write routes are unauthenticated")
	}

	a.notifier = notify.NewAsync(notify.NewDispatcher(a.channels()...), a.log, cfg.Notify.SendTimeout)

	deps := engine.Deps{
		Store:      a.store,
		Adapters:   engine.DefaultAdapters(a.store, a.log, a.feeds()...),
		Directory:  a.loader,
		Notifier:   a.notifier,
		Logger:     a.log,
		Registerer: a.registry,
	}
	if a.identity != nil {
		deps.Identity = a.identity
	}
	a.engine = engine.New(cfg.Engine(), deps)
	return a, nil
}

func (a *app) Close() {
	a.notifier.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn("close database", logging.Err(err))
	}
}

func (a *app) cacheBackend() (cache.Backend, error) {
	switch a.cfg.Cache.Backend {
	case "redis":
		client := cache.NewRedisClient(a.cfg.Cache.RedisAddr, a.secrets.RedisPassword, a.cfg.Cache.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis %s: %w", a.cfg.Cache.RedisAddr, err)
		}
		a.log.Info("directory cache on redis", logging.F("addr", a.cfg.Cache.RedisAddr))
		return cache.NewRedisBackend(client), nil
	default:
		return cache.NewMemoryBackend(), nil
	}
}

func (a *app) feeds() []sources.RowSource {
	client := &http.Client{Timeout: a.cfg.Engine().DefaultTimeout}
	loc := a.cfg.Location()
	var out []sources.RowSource
	for _, f := range a.cfg.ICS {
		out = append(out, sources.NewICSStaffSource(f.ID, f.URL, client, loc))
	}
	return out
}

// channels enables each delivery channel whose credentials are present.
func (a *app) channels() []notify.Channel {
	var out []notify.Channel
	if a.secrets.SendGridAPIKey != "" {
		ch, err := notify.NewSendGridChannel(a.secrets.SendGridAPIKey, a.cfg.Notify.FromEmail, a.cfg.Notify.FromName)
		if err != nil {
			a.log.Warn("email notifications disabled", logging.Err(err))
		} else {
			out = append(out, ch)
		}
	}
	if a.secrets.TwilioAccountSID != "" {
		ch, err := notify.NewTwilioChannel(a.secrets.TwilioAccountSID, a.secrets.TwilioAuthToken, a.cfg.Notify.SMSFrom)
		if err != nil {
			a.log.Warn("sms notifications disabled", logging.Err(err))
		} else {
			out = append(out, ch)
		}
	}
	if len(out) == 0 {
		a.log.Info("no notification channels configured")
	}
	return out
}

func (a *app) employeeName(ctx context.Context, id string) (string, bool) {
	emps, err := a.loader.Employees(ctx)
	if err != nil {
		return "", false
	}
	for _, e := range emps {
		if e.ID == id {
			return e.Name, true
		}
	}
	return "", false
}

func (a *app) today() meeting.Date {
	return meeting.DateOf(time.Now().In(a.cfg.Location()))
}

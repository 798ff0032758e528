// MQTT Device Gateway
//
// This is the main entry point for the gateway. It bridges Tasmota-style
// MQTT devices (switches, fans, sensors, LED strips, telemetry probes) to a
// supervisory controller: device status topics are decoded into ordered
// reports, transitions become DON/DOF events, and supervisory commands are
// translated into device command topics.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/mqtt-device-gateway/internal/api"
	"github.com/nerrad567/mqtt-device-gateway/internal/device"
	"github.com/nerrad567/mqtt-device-gateway/internal/gateway"
	"github.com/nerrad567/mqtt-device-gateway/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-device-gateway/internal/infrastructure/database"
	"github.com/nerrad567/mqtt-device-gateway/internal/infrastructure/influxdb"
	"github.com/nerrad567/mqtt-device-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-device-gateway/internal/infrastructure/mqtt"
	"github.com/nerrad567/mqtt-device-gateway/internal/metrics"
	"github.com/nerrad567/mqtt-device-gateway/internal/supervisor"
	"github.com/nerrad567/mqtt-device-gateway/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	// Default configuration file path
	defaultConfigPath = "configs/config.yaml"

	// exitConfig tells the process supervisor that restarting will not help.
	exitConfig = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if isConfigError(err) {
			os.Exit(exitConfig)
		}
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear wiring of optional components
	log := logging.Default()
	log.Info("starting MQTT device gateway",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded",
		"path", configPath,
		"devices", len(cfg.Devices),
		"level", cfg.Logging.Level,
	)

	registry, rejected := device.NewRegistry(descriptors(cfg.Devices), log.Component("registry"))
	if registry.Len() == 0 {
		return fmt.Errorf("%w: no usable devices (%d rejected)", gateway.ErrConfiguration, len(rejected))
	}

	m := metrics.New()

	// Reporters are appended to in place; the session reads them through the
	// pointer, so everything added before session.Start is delivered to.
	reporters := gateway.MultiReporter{}

	var history device.HistoryRepository
	if cfg.Database.Enabled {
		db, openErr := database.Open(cfg.Database)
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		repo := device.NewSQLiteHistoryRepository(db.DB)
		if days := cfg.Database.RetentionDays; days > 0 {
			removed, pruneErr := repo.PruneHistory(ctx, time.Duration(days)*24*time.Hour)
			if pruneErr != nil {
				log.Warn("pruning event journal failed", "error", pruneErr)
			} else if removed > 0 {
				log.Info("pruned event journal", "removed", removed, "retention_days", days)
			}
		}
		history = repo
		reporters = append(reporters, gateway.NewJournalReporter(history))
		log.Info("event journal ready", "path", db.Path())
	} else {
		log.Info("event journal disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxSink, connErr := influxdb.Open(ctx, cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB sink")
			if closeErr := influxSink.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxSink.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		reporters = append(reporters, influxSink)
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(log.Component("websocket"))
		reporters = append(reporters, hub)
	}

	lwt, err := json.Marshal(gateway.NewLWTMessage(cfg.Gateway.ID))
	if err != nil {
		return fmt.Errorf("encoding last will: %w", err)
	}
	mqttClient, err := mqtt.New(cfg.MQTT, mqtt.WithWill(gateway.HealthTopic(cfg.Gateway.TopicPrefix), lwt))
	if err != nil {
		return fmt.Errorf("creating MQTT client: %w", err)
	}
	mqttClient.SetLogger(log.Component("mqtt"))

	session, err := gateway.NewSession(registry, mqttClient, &reporters, sessionConfig(cfg))
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	session.SetLogger(log.Component("session"))
	session.SetMetrics(m)

	router := gateway.NewRouter(session)
	router.SetLogger(log.Component("router"))
	router.SetMetrics(m)
	if history != nil {
		router.SetJournal(history)
	}

	if cfg.Supervisor.MQTT {
		sup := supervisor.New(cfg.Gateway.TopicPrefix, session, router)
		sup.SetLogger(log.Component("supervisor"))
		reporters = append(reporters, sup)
		if subErr := session.AddSubscription(sup.SubscribeTopic(), sup.HandleCommand); subErr != nil {
			return fmt.Errorf("registering command subscription: %w", subErr)
		}
	}

	health := gateway.NewHealthReporter(gateway.HealthReporterConfig{
		GatewayID:   cfg.Gateway.ID,
		Version:     version,
		TopicPrefix: cfg.Gateway.TopicPrefix,
		Interval:    time.Duration(cfg.Gateway.HealthInterval) * time.Second,
		Session:     session,
	})
	health.SetLogger(log.Component("health"))

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer func() {
		log.Info("stopping session")
		session.Stop()
	}()
	log.Info("broker connected",
		"broker", mqttClient.Broker(),
		"client_id", cfg.MQTT.Broker.ClientID,
		"devices", registry.Len(),
	)

	health.Start(ctx)
	// Runs before session.Stop so the stopping status is still published.
	defer health.Stop()

	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Registry: registry,
			Commands: router,
			Health:   health,
			History:  history,
			Metrics:  m,
			Hub:      hub,
			Version:  version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, health, session, InfluxDB, database.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses MQTTGW_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("MQTTGW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// descriptors converts configured devices. Validation happens in the registry.
func descriptors(devs []config.DeviceConfig) []device.Descriptor {
	out := make([]device.Descriptor, 0, len(devs))
	for _, d := range devs {
		out = append(out, device.Descriptor{
			ID:           d.ID,
			Name:         d.Name,
			Family:       device.Family(d.Type),
			StatusTopic:  d.StatusTopic,
			CommandTopic: d.CommandTopic,
		})
	}
	return out
}

// sessionConfig derives session tuning from configuration.
// With broker-managed reconnect the session only counts attempts.
func sessionConfig(cfg *config.Config) gateway.SessionConfig {
	sc := gateway.SessionConfig{
		ConnectTimeout:  time.Duration(cfg.MQTT.ConnectTimeout) * time.Second,
		ReportQueueSize: cfg.Gateway.ReportQueueSize,
	}
	if !cfg.MQTT.Reconnect.Auto {
		sc.RetryInterval = time.Duration(cfg.Gateway.RetryInterval) * time.Second
		sc.MaxReconnectAttempts = cfg.MQTT.Reconnect.MaxAttempts
	}
	return sc
}

// isConfigError reports whether err should not be retried by a supervisor
// process (systemd, docker restart policy).
func isConfigError(err error) bool {
	return errors.Is(err, config.ErrInvalid) || errors.Is(err, gateway.ErrConfiguration)
}

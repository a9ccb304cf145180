// SeerLink Core - Hub-to-Platform Bridge
//
// This is the main entry point for the SeerLink bridge. It connects a
// home-automation hub's JSON API and push socket to MQTT, WebSocket, and
// REST consumers, classifying hub devices into platform categories.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/seerlink/seerlink-core/internal/api"
	"github.com/seerlink/seerlink-core/internal/bridge"
	"github.com/seerlink/seerlink-core/internal/hub"
	"github.com/seerlink/seerlink-core/internal/infrastructure/config"
	"github.com/seerlink/seerlink-core/internal/infrastructure/influxdb"
	"github.com/seerlink/seerlink-core/internal/infrastructure/logging"
	"github.com/seerlink/seerlink-core/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SeerLink",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Hub JSON API client and push socket listener
	hubClient := hub.NewClient(hub.ClientConfig{
		Host:     cfg.Hub.Host,
		Port:     cfg.Hub.HTTPPort,
		Username: cfg.Hub.Username,
		Password: cfg.Hub.Password,
	})
	hubClient.SetLogger(log)

	hubListener := hub.NewListener(hub.ListenerConfig{
		Host: cfg.Hub.Host,
		Port: cfg.Hub.ASCIIPort,
	})
	hubListener.SetLogger(log)

	b, err := bridge.New(bridge.BridgeOptions{
		Client:   hubClient,
		Listener: hubListener,
		Rules: bridge.Rules{
			AllowedInterfaces:  cfg.Hub.AllowedInterfaces,
			ForcedCovers:       cfg.Hub.ForcedCovers,
			AllowEvents:        cfg.Hub.AllowEvents,
			AllowedEventGroups: cfg.Hub.AllowedEventGroups,
		},
		Namespace:    cfg.Hub.Namespace,
		NameTemplate: cfg.Hub.NameTemplate,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	// Fetch the hub inventory and build the registry
	setupCtx, cancelSetup := context.WithTimeout(ctx, cfg.GetSetupTimeout())
	err = b.Setup(setupCtx)
	cancelSetup()
	if err != nil {
		return fmt.Errorf("bridge setup: %w", err)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, shared between the API server and the fan-out below
	wsHub := api.NewHub(cfg.WebSocket, log)
	go wsHub.Run(ctx)

	fanout := &fanout{
		bridge:    b,
		mqtt:      mqttClient,
		influx:    influxClient,
		wsHub:     wsHub,
		namespace: cfg.Hub.Namespace,
		qos:       byte(cfg.MQTT.QoS),
		logger:    log,
	}

	// Remote keypresses flow through the notifier; device state changes
	// through per-entity subscriptions. Both wired before Start so the
	// first push line is already observed.
	b.SetNotifier(fanout)
	b.SubscribeAll(fanout.publishState)

	if mqttClient != nil {
		if err := subscribeCommands(ctx, mqttClient, b, byte(cfg.MQTT.QoS), log); err != nil {
			return fmt.Errorf("subscribing to command topic: %w", err)
		}
	}

	// Start the push listener
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		if stopErr := b.Stop(); stopErr != nil {
			log.Error("error stopping bridge", "error", stopErr)
		}
	}()

	// The bridge is useless without a live push connection; bail out
	// early rather than serving an inert API.
	if err := b.WaitAvailable(ctx, cfg.Hub.AvailabilityAttempts, cfg.GetAvailabilityInterval()); err != nil {
		return fmt.Errorf("hub availability: %w", err)
	}
	log.Info("hub connection established")

	if mqttClient != nil {
		topics := mqtt.Topics{}
		if err := mqttClient.PublishRetained(topics.SystemAvailability(), []byte("online")); err != nil {
			log.Warn("publishing availability", "error", err)
		}
		defer func() {
			//nolint:errcheck // Best-effort offline marker during shutdown
			mqttClient.PublishRetained(topics.SystemAvailability(), []byte("offline"))
		}()
	}

	// HTTP API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Bridge:      b,
		Version:     version,
		ExternalHub: wsHub,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SEERLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SEERLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// fanout delivers bridge updates to the host-side sinks: MQTT topics,
// the WebSocket hub, and the optional state history.
type fanout struct {
	bridge    *bridge.Bridge
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	wsHub     *api.Hub
	namespace string
	qos       byte
	logger    *logging.Logger
}

// stateMessage is the JSON payload published for device state changes.
type stateMessage struct {
	UniqueID          string  `json:"unique_id"`
	Ref               int     `json:"ref"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Value             float64 `json:"value"`
	PrevValue         float64 `json:"prev_value"`
	Status            string  `json:"status"`
	ConnectionRefresh bool    `json:"connection_refresh"`
	Timestamp         string  `json:"timestamp"`
}

// remoteEventMessage is the JSON payload published for remote keypresses.
// ID is the device ref; MessageID deduplicates redeliveries.
type remoteEventMessage struct {
	ID        int     `json:"id"`
	Event     float64 `json:"event"`
	UniqueID  string  `json:"unique_id"`
	MessageID string  `json:"message_id"`
	Timestamp string  `json:"timestamp"`
}

// publishState fans one device update out to MQTT, WebSocket, and InfluxDB.
// Runs on the hub's receive goroutine; all sinks are non-blocking.
func (f *fanout) publishState(u hub.Update) {
	entity, ok := f.bridge.Entity(u.Ref)
	if !ok {
		return
	}

	msg := stateMessage{
		UniqueID:          entity.UniqueID(),
		Ref:               u.Ref,
		Name:              entity.DisplayName(),
		Category:          string(entity.Category()),
		Value:             u.Value,
		PrevValue:         u.PrevValue,
		Status:            entity.Device().Status(),
		ConnectionRefresh: u.ConnectionRefresh,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}

	if f.mqtt != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			f.logger.Error("marshalling state message", "ref", u.Ref, "error", err)
			return
		}
		topic := mqtt.Topics{}.DeviceState(u.Ref)
		if err := f.mqtt.PublishRetained(topic, payload); err != nil {
			f.logger.Warn("publishing state", "topic", topic, "error", err)
		}
	}

	f.wsHub.Broadcast(api.ChannelDeviceState, msg)

	if f.influx != nil {
		f.influx.WriteDeviceState(entity.UniqueID(), string(entity.Category()), u.Value)
	}
}

// NotifyRemoteEvent implements bridge.Notifier.
func (f *fanout) NotifyRemoteEvent(ref int, event float64) {
	msg := remoteEventMessage{
		ID:        ref,
		Event:     event,
		UniqueID:  fmt.Sprintf("%s-%d", f.namespace, ref),
		MessageID: uuid.New().String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if f.mqtt != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			f.logger.Error("marshalling remote event", "ref", ref, "error", err)
			return
		}
		topic := mqtt.Topics{}.RemoteEvent()
		if err := f.mqtt.Publish(topic, payload, f.qos, false); err != nil {
			f.logger.Warn("publishing remote event", "topic", topic, "error", err)
		}
	}

	f.wsHub.Broadcast(api.ChannelRemoteEvent, msg)

	if f.influx != nil {
		f.influx.WriteRemoteEvent(msg.UniqueID, event)
	}
}

// sceneMessage is the JSON payload published for scene activations.
type sceneMessage struct {
	Group     string `json:"group"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp"`
}

// NotifySceneActivated implements bridge.Notifier.
func (f *fanout) NotifySceneActivated(group, name string) {
	msg := sceneMessage{
		Group:     group,
		Name:      name,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if f.mqtt != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			f.logger.Error("marshalling scene event", "group", group, "name", name, "error", err)
			return
		}
		topic := mqtt.Topics{}.SceneActivated(name)
		if err := f.mqtt.Publish(topic, payload, f.qos, false); err != nil {
			f.logger.Warn("publishing scene event", "topic", topic, "error", err)
		}
	}

	f.wsHub.Broadcast(api.ChannelSceneActivated, msg)

	if f.influx != nil {
		f.influx.WritePoint("scene_activated",
			map[string]string{"group": group, "name": name},
			map[string]interface{}{"count": 1},
		)
	}
}

// commandMessage is the JSON payload accepted on the command topic.
// Either a typed action or a raw value must be present.
type commandMessage struct {
	Ref    int    `json:"ref"`
	Action string `json:"action"`
	Value  *int   `json:"value"`
}

// subscribeCommands wires the inbound MQTT command topic to the bridge.
func subscribeCommands(ctx context.Context, client *mqtt.Client, b *bridge.Bridge, qos byte, log *logging.Logger) error {
	topic := mqtt.Topics{}.Command()
	return client.Subscribe(topic, qos, func(_ string, payload []byte) error {
		var cmd commandMessage
		if err := json.Unmarshal(payload, &cmd); err != nil {
			log.Warn("invalid command payload", "error", err)
			return nil
		}

		cmdCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		var err error
		switch {
		case cmd.Action != "":
			value := 0
			if cmd.Value != nil {
				value = *cmd.Value
			}
			err = b.Control(cmdCtx, cmd.Ref, cmd.Action, value)
		case cmd.Value != nil:
			err = b.ControlByValue(cmdCtx, cmd.Ref, *cmd.Value)
		default:
			log.Warn("command without action or value", "ref", cmd.Ref)
			return nil
		}
		if err != nil {
			log.Warn("command failed", "ref", cmd.Ref, "action", cmd.Action, "error", err)
		}
		return nil
	})
}

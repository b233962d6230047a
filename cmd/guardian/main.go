package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/alert"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/api"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/config"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/db"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/ingest"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/notify"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/serialmux"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/session"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/stream"
	"github.com/perakmenang41-hue/ChildTrackerSafe/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "Listen address")
	dbPath        = flag.String("db", "guardian.db", "SQLite database path")
	configPath    = flag.String("config", config.DefaultConfigPath, "Tuning config (.json)")
	zonesPath     = flag.String("zones", "", "Hazard zone file (.json, .yaml); built-in zones when empty")
	subject       = flag.String("subject", "", "Subject id for device payloads that carry none")
	uid           = flag.String("uid", "", "Account uid resolved to a subject through the registry (takes precedence over -subject)")
	port          = flag.String("port", "/dev/ttyUSB0", "Serial port of the tracker (ignored in dev mode)")
	baudRate      = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	disableSerial = flag.Bool("disable-serial", false, "Run without a serial tracker")
	mqttBroker    = flag.String("mqtt", "", "MQTT broker URL (e.g. tcp://localhost:1883); enables MQTT ingest and notifications")
	mqttUser      = flag.String("mqtt-user", "", "MQTT username (password from GUARDIAN_MQTT_PASSWORD)")
	kafkaBrokers  = flag.String("kafka", "", "Comma-separated Kafka brokers for the alert mirror")
	overpassAt    = flag.String("overpass", "", "lat,lon around which supermarkets are added as hazard zones")
	speedUnits    = flag.String("units", "mps", "Default speed units for summaries (mps, mph, kmph, kph)")
	devMode       = flag.Bool("dev", false, "Replay -fixtures through a mock serial tracker")
	fixturesPath  = flag.String("fixtures", "fixtures/tracker.txt", "Fixture lines replayed in dev mode")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		os.Exit(runMigrate(os.Args[2:]))
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("guardian", version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zones, err := loadZones(ctx, cfg, *zonesPath, *overpassAt, nil)
	if err != nil {
		log.Fatalf("Failed to load hazard zones: %v", err)
	}
	log.Printf("loaded %d hazard zones", len(zones))

	store, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	retention := db.NewRetentionWorker(store)
	retention.Start()
	defer retention.Stop()

	// status and journal fan out to the Kafka mirror when configured
	var mirrors alert.MultiStore
	journals := alert.MultiJournal{store}
	if brokers := splitList(*kafkaBrokers); len(brokers) > 0 {
		mirror := stream.NewKafkaMirror(brokers, cfg.GetKafkaTopic())
		defer mirror.Close()
		mirrors = append(mirrors, mirror)
		journals = append(journals, mirror)
		log.Printf("mirroring alerts to kafka topic %s", cfg.GetKafkaTopic())
	}

	notifiers := alert.MultiNotifier{store}
	var mqttSource *ingest.MQTTSource
	mqttClient, err := dialMQTT(cfg)
	if err != nil {
		log.Printf("MQTT disabled: %v", err)
	}
	if mqttClient != nil {
		defer mqttClient.Disconnect(250)
		notifiers = append(notifiers, notify.NewMQTTNotifier(mqttClient, cfg.GetMQTTTopicPrefix()))
	} else {
		notifiers = append(notifiers, notify.LogNotifier{})
	}

	opts := alert.Options{
		Workers:   cfg.GetDispatchWorkers(),
		QueueSize: cfg.GetDispatchQueueSize(),
		Timeout:   cfg.GetDispatchTimeout(),
		Cooldown:  cfg.GetAlertCooldown(),
		Journal:   journals,
	}
	if len(mirrors) > 0 {
		opts.Mirror = mirrors
	}
	dispatcher := alert.NewDispatcher(store, notifiers, opts)
	dispatcher.Start(ctx)

	sessions := session.NewManager(ctx, session.Options{
		Sink:            dispatcher,
		Positions:       store,
		Zones:           zones,
		Analyzer:        cfg.AnalyzerConfig(),
		Motion:          cfg.MotionThresholds(),
		HistoryCapacity: cfg.GetHistoryCapacity(),
	})

	router := ingest.NewRouter(sessions, subjectProvider(store, *uid, *subject))

	if mqttClient != nil {
		mqttSource = ingest.NewMQTTSource(mqttClient, cfg.GetMQTTTopicPrefix(), router)
		if err := mqttSource.Start(ctx); err != nil {
			log.Printf("MQTT ingest disabled: %v", err)
			mqttSource = nil
		}
	}

	tracker, err := openTracker()
	if err != nil {
		log.Fatalf("failed to open tracker: %v", err)
	}
	defer tracker.Close()

	if err := tracker.Initialize(); err != nil {
		log.Fatalf("failed to initialize tracker: %v", err)
	}

	var wg sync.WaitGroup

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := tracker.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ingest.ServeSerial(ctx, tracker, router)
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(store, sessions, *speedUnits).ServeMux()
		tracker.AttachAdminRoutes(mux)
		store.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	if mqttSource != nil {
		mqttSource.Stop()
	}
	sessions.Close()
	dispatcher.Close()
	st := dispatcher.Stats()
	log.Printf("dispatcher: delivered=%d dropped=%d failures=%d mirror_failures=%d", st.Delivered, st.Dropped, st.Failures, st.MirrorFailures)
	log.Printf("Graceful shutdown complete")
}

// runMigrate handles 'guardian migrate [-db path] <action> [version]'.
func runMigrate(args []string) int {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	path := fs.String("db", "guardian.db", "SQLite database path")
	_ = fs.Parse(args)

	if err := db.RunMigrateCommand(fs.Args(), *path, os.Stdout); err != nil {
		log.Printf("migrate: %v", err)
		return 1
	}
	return 0
}

func openTracker() (serialmux.SerialMuxInterface, error) {
	switch {
	case *disableSerial:
		log.Printf("serial tracker disabled")
		return serialmux.NewDisabledSerialMux(), nil
	case *devMode:
		data, err := os.ReadFile(*fixturesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures file: %w", err)
		}
		log.Printf("replaying %s through a mock tracker", *fixturesPath)
		return serialmux.NewMockSerialMux(strings.Split(string(data), "\n"), 500*time.Millisecond), nil
	default:
		return serialmux.NewRealSerialMux(*port, serialmux.PortOptions{BaudRate: *baudRate})
	}
}

func dialMQTT(cfg *config.GuardianConfig) (mqtt.Client, error) {
	if *mqttBroker == "" {
		return nil, nil
	}
	client, err := notify.Dial(notify.DialOptions{
		Broker:   *mqttBroker,
		ClientID: cfg.GetMQTTClientID(),
		Username: *mqttUser,
		Password: os.Getenv("GUARDIAN_MQTT_PASSWORD"),
	})
	if err != nil {
		return nil, err
	}
	log.Printf("connected to MQTT broker %s", *mqttBroker)
	return client, nil
}

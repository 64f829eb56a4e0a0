package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"thermal_dashboard/internal/chart"
	"thermal_dashboard/internal/device"
	"thermal_dashboard/internal/handlers"
	"thermal_dashboard/internal/hub"
	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/repository"
	"thermal_dashboard/internal/repository/db"
	"thermal_dashboard/internal/server"
	"thermal_dashboard/internal/service"
	"thermal_dashboard/internal/settings"
	"thermal_dashboard/internal/simulator"
	"thermal_dashboard/internal/status"
	"thermal_dashboard/internal/stream"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix        = "DASHBOARD"
	seedAttempts     = 5
	seedBackoff      = time.Second
	pruneInterval    = time.Hour
	shutdownDeadline = 10 * time.Second
)

func main() {
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(viper.GetString("log.level"))

	// open DB
	conn, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()
	repos := repository.NewRepository(conn)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var simSrv *server.Server
	if viper.GetBool("simulate.enabled") {
		simSrv = startSimulator(ctx, log)
	}

	dev, err := device.NewClient(device.Config{
		BaseURL: viper.GetString("device.url"),
		Timeout: viper.GetDuration("device.timeout"),
	}, log.Named("device"))
	if err != nil {
		log.Fatalw("invalid device config", "err", err)
	}

	// browser push and shared status slot
	browsers := hub.New(log.Named("hub"))
	notifier := status.NewNotifier(status.Surfaces{browsers, logSurface{log.Named("status")}})

	// settings
	controller := settings.NewController(dev, notifier, browsers.Indicator(), settings.Options{
		SerializePerControl: viper.GetBool("settings.serialize_per_control"),
	}, log.Named("settings"))
	auditor := service.NewAuditor(repos.EventRepo, log.Named("audit"))
	controller.AddObserver(browsers)
	controller.AddObserver(auditor)
	seedControls(ctx, dev, controller, log)
	browsers.PublishControls(controller.Controls())

	// state distribution
	registry := stream.NewRegistry(log.Named("registry"))
	charts := chart.NewStore()
	opts := chart.Options{
		Theme:  chart.ThemeByName(viper.GetString("chart.theme")),
		Width:  viper.GetInt("chart.width"),
		Height: viper.GetInt("chart.height"),
	}
	registry.Subscribe(browsers)
	for _, kind := range chart.Kinds {
		registry.Subscribe(chart.NewRenderer(kind, opts, chart.Displays{charts, browsers}, log.Named("chart")))
	}

	observers := stream.FrameObservers{auditor}
	if viper.GetBool("stream.desync_status") {
		observers = append(observers, service.NewDesyncStatus(notifier))
	}
	client := stream.NewClient(stream.ClientConfig{
		URL:      dev.StreamURL(),
		Observer: observers,
	}, registry, log.Named("stream"))

	go browsers.Run(ctx)
	go func() {
		if err := client.RunWithReconnect(ctx); err != nil {
			log.Infow("stream_stopped", "err", err)
		}
	}()
	go pruneEvents(ctx, repos.EventRepo, viper.GetDuration("db.retention"), log)

	quit := make(chan struct{})
	services := service.NewService(service.Deps{
		Registry:   registry,
		Charts:     charts,
		Stream:     client,
		Controller: controller,
		Device:     dev,
		Farewell:   browsers,
		Repos:      repos,
		OnQuit:     func() { close(quit) },
		Log:        log,
	})
	apiHandler := handlers.NewHandler(services, browsers.HandleWebSocket(), log.Named("http"))

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler.InitRoutes(), log)

	// graceful shutdown
	waitForShutdown(cancel, quit, log, srv, simSrv)
}

// loadConfig reads configs/config.yml, DASHBOARD_* environment variables and
// command line flags, flags winning.
func loadConfig() error {
	flags := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	cfgPath := flags.String("config", "configs", "directory holding config.yml")
	flags.String("port", "", "dashboard HTTP port")
	flags.String("device", "", "device base URL")
	flags.Bool("simulate", false, "serve a simulated device")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	setDefaults()
	viper.AddConfigPath(*cfgPath)
	viper.SetConfigName("config")
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, flag := range map[string]string{
		"port":             "port",
		"device.url":       "device",
		"simulate.enabled": "simulate",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}
	return viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("log.level", logger.InfoLevel)
	viper.SetDefault("db.path", "app.db")
	viper.SetDefault("db.retention", 7*24*time.Hour)
	viper.SetDefault("device.url", "http://127.0.0.1:8081")
	viper.SetDefault("device.timeout", 10*time.Second)
	viper.SetDefault("chart.theme", chart.ThemeLight.Name)
	viper.SetDefault("chart.width", chart.DefaultWidth)
	viper.SetDefault("chart.height", chart.DefaultHeight)
	viper.SetDefault("simulate.port", "8081")
	viper.SetDefault("simulate.tick", time.Second)
	viper.SetDefault("simulate.history_seconds", 600)
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	log.Infow("opening sqlite", "path", dbPath)
	return db.InitDB(dbPath)
}

// startSimulator serves a simulated device on simulate.port.
func startSimulator(ctx context.Context, log *logger.Logger) *server.Server {
	cfg := simulator.DefaultConfig()
	cfg.Tick = viper.GetDuration("simulate.tick")
	cfg.HistorySeconds = viper.GetInt("simulate.history_seconds")
	cfg.Seed = time.Now().UnixNano()

	simLog := log.Named("simulator")
	sim := simulator.New(cfg, func() { simLog.Infow("simulator_quit_requested") }, simLog)
	go sim.Run(ctx)

	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("simulate.port"), sim.Handler(), simLog)
	return srv
}

// seedControls loads the form values from the device, retrying briefly while
// it comes up. The dashboard still starts without them.
func seedControls(ctx context.Context, dev *device.Client, c *settings.Controller, log *logger.Logger) {
	for i := 1; i <= seedAttempts; i++ {
		st, err := dev.Status(ctx)
		if err == nil {
			c.Seed(st)
			return
		}
		log.Warnw("device_status_failed", "attempt", i, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(seedBackoff):
		}
	}
}

func pruneEvents(ctx context.Context, events repository.EventRepo, keep time.Duration, log *logger.Logger) {
	if keep <= 0 {
		return
	}
	t := time.NewTicker(pruneInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := events.Prune(ctx, now.Add(-keep))
			if err != nil {
				log.Warnw("events_prune_failed", "err", err)
				continue
			}
			if n > 0 {
				log.Infow("events_pruned", "count", n)
			}
		}
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler http.Handler, log *logger.Logger) {
	go func() {
		if err := srv.Run(port, handler); err != nil {
			log.Fatalw("error starting server", "port", port, "err", err)
		}
	}()
}

// waitForShutdown blocks until a termination signal or an operator quit,
// then stops background work and drains the servers.
func waitForShutdown(cancel context.CancelFunc, quit <-chan struct{}, log *logger.Logger, servers ...*server.Server) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-quit:
	}

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer shutdownCancel()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorw("server forced to shutdown", "err", err)
		}
	}
}

// logSurface mirrors the status slot into the log.
type logSurface struct{ log *logger.Logger }

func (s logSurface) Display(message string) { s.log.Warnw("status_shown", "message", message) }
func (s logSurface) Hide()                  { s.log.Debugw("status_hidden") }
func (s logSurface) ScrollIntoView()        {}

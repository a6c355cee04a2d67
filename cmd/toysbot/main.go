package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/toysnicaragua/toysbot/internal/api"
	"github.com/toysnicaragua/toysbot/internal/commerce"
	"github.com/toysnicaragua/toysbot/internal/dialogue"
	"github.com/toysnicaragua/toysbot/internal/lockfile"
	"github.com/toysnicaragua/toysbot/internal/messaging"
	"github.com/toysnicaragua/toysbot/internal/scheduler"
	"github.com/toysnicaragua/toysbot/internal/session"
	"github.com/toysnicaragua/toysbot/internal/util"
	"github.com/toysnicaragua/toysbot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ToysBot state data
	DefaultStateDir = "/var/lib/toysbot"
	// DefaultWhatsAppDBFileName is the default SQLite filename for the whatsmeow session store
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultAppDBFileName is the default SQLite filename for conversation state
	DefaultAppDBFileName = "toysbot.db"
	// CatalogRefreshCron refreshes the product catalog cache every half hour
	CatalogRefreshCron = "*/30 * * * *"
	// InactivitySweepCron checks for idle conversations every minute
	InactivitySweepCron = "* * * * *"
	// SessionEvictionCron reclaims long-idle conversation state every hour
	SessionEvictionCron = "0 * * * *"
)

func main() {
	// Load environment configuration (also initializes the logger)
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping ToysBot with configured modules")
	slog.Debug("Final configuration",
		"state_dir", *flags.stateDir,
		"app_dsn_set", *flags.appDBDSN != "",
		"whatsapp_dsn_set", *flags.whatsappDBDSN != "",
		"commerce_base_url", *flags.commerceBaseURL,
		"api_addr", *flags.apiAddr,
		"backend", *flags.backend)

	if err := run(flags); err != nil {
		slog.Error("ToysBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ToysBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir         string
	WhatsAppDBDSN    string
	ApplicationDBDSN string
	CommerceBaseURL  string
	CommerceAPIKey   string
	APIAddr          string
	Backend          string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput        *string
	numeric         *bool
	stateDir        *string
	whatsappDBDSN   *string
	appDBDSN        *string
	commerceBaseURL *string
	commerceAPIKey  *string
	apiAddr         *string
	backend         *string
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	initializeLogger()

	config := Config{
		StateDir:         os.Getenv("TOYSBOT_STATE_DIR"),
		WhatsAppDBDSN:    os.Getenv("WHATSAPP_DB_DSN"),
		ApplicationDBDSN: os.Getenv("DATABASE_DSN"),
		CommerceBaseURL:  os.Getenv("ODOO_BASE_URL"),
		CommerceAPIKey:   os.Getenv("ODOO_API_KEY"),
		APIAddr:          os.Getenv("API_ADDR"),
		Backend:          os.Getenv("MESSAGING_BACKEND"),
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TOYSBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// DATABASE_URL is the legacy name for the application DSN
	if config.ApplicationDBDSN == "" {
		config.ApplicationDBDSN = os.Getenv("DATABASE_URL")
		if config.ApplicationDBDSN != "" {
			slog.Debug("Using DATABASE_URL as DATABASE_DSN", "dsn_set", true)
		}
	}

	// If no DSNs are provided, default to SQLite files in the state directory
	if config.WhatsAppDBDSN == "" {
		config.WhatsAppDBDSN = "file:" + filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
		slog.Debug("No WhatsApp DSN provided, defaulting to SQLite", "sqlite_path", config.WhatsAppDBDSN)
	}
	if config.ApplicationDBDSN == "" {
		config.ApplicationDBDSN = filepath.Join(config.StateDir, DefaultAppDBFileName)
		slog.Debug("No application DSN provided, defaulting to SQLite", "sqlite_path", config.ApplicationDBDSN)
	}

	if config.Backend == "" {
		config.Backend = "whatsmeow"
	}

	slog.Debug("environment variables loaded",
		"TOYSBOT_STATE_DIR", config.StateDir,
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDBDSN != "",
		"DATABASE_DSN_SET", config.ApplicationDBDSN != "",
		"ODOO_BASE_URL", config.CommerceBaseURL,
		"ODOO_API_KEY_SET", config.CommerceAPIKey != "",
		"API_ADDR", config.APIAddr,
		"MESSAGING_BACKEND", config.Backend)

	return config
}

// initializeLogger sets up structured logging; DEBUG=true enables debug level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:        flag.String("qr-output", "", "path to write login QR code"),
		numeric:         flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:        flag.String("state-dir", config.StateDir, "state directory for ToysBot data (overrides $TOYSBOT_STATE_DIR)"),
		whatsappDBDSN:   flag.String("whatsapp-db-dsn", config.WhatsAppDBDSN, "database DSN for the WhatsApp session store (overrides $WHATSAPP_DB_DSN)"),
		appDBDSN:        flag.String("db-dsn", config.ApplicationDBDSN, "database DSN for conversation state (overrides $DATABASE_DSN or $DATABASE_URL)"),
		commerceBaseURL: flag.String("commerce-base-url", config.CommerceBaseURL, "base URL of the Odoo commerce backend (overrides $ODOO_BASE_URL)"),
		commerceAPIKey:  flag.String("commerce-api-key", config.CommerceAPIKey, "API key for the commerce backend (overrides $ODOO_API_KEY)"),
		apiAddr:         flag.String("api-addr", config.APIAddr, "webhook server address (overrides $API_ADDR)"),
		backend:         flag.String("messaging-backend", config.Backend, "messaging backend: whatsmeow or twilio (overrides $MESSAGING_BACKEND)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"whatsappDBDSN_set", *flags.whatsappDBDSN != "",
		"appDBDSN_set", *flags.appDBDSN != "",
		"commerceBaseURL", *flags.commerceBaseURL,
		"apiAddr", *flags.apiAddr,
		"backend", *flags.backend)

	// Update database DSNs if not explicitly set but state directory changed
	if *flags.stateDir != config.StateDir {
		if *flags.whatsappDBDSN == config.WhatsAppDBDSN {
			*flags.whatsappDBDSN = "file:" + filepath.Join(*flags.stateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
			slog.Debug("Updated WhatsApp DSN based on state directory", "new_state_dir", *flags.stateDir)
		}
		if *flags.appDBDSN == config.ApplicationDBDSN {
			*flags.appDBDSN = filepath.Join(*flags.stateDir, DefaultAppDBFileName)
			slog.Debug("Updated application DSN based on state directory", "new_state_dir", *flags.stateDir)
		}
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	for _, dsn := range []string{*flags.whatsappDBDSN, *flags.appDBDSN} {
		if session.DetectDSNType(dsn) == "postgres" {
			continue
		}
		path := strings.TrimPrefix(dsn, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		dir := filepath.Dir(path)
		slog.Debug("Creating state directory for file-based database", "state_dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
			return err
		}
	}
	return nil
}

// buildSessionStore opens the conversation state store for the configured DSN
func buildSessionStore(flags Flags) (session.Store, error) {
	dsn := *flags.appDBDSN
	if dsn == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return session.NewInMemoryStore(), nil
	}
	if session.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		return session.NewPostgresStore(session.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", dsn)
	return session.NewSQLiteStore(session.WithDSN(dsn))
}

// buildMessagingService constructs the configured messaging backend
func buildMessagingService(flags Flags) (messaging.Service, error) {
	if *flags.backend == "twilio" {
		client, err := messaging.NewTwilioClient()
		if err != nil {
			return nil, err
		}
		return messaging.NewTwilioService(client), nil
	}

	var waOpts []whatsapp.Option
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if *flags.whatsappDBDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDBDSN))
	}
	client, err := whatsapp.NewClient(waOpts...)
	if err != nil {
		return nil, err
	}
	return messaging.NewWhatsAppService(client), nil
}

// run wires all modules together and blocks until shutdown
func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	store, err := buildSessionStore(flags)
	if err != nil {
		return err
	}
	defer store.Close()

	client, err := commerce.NewHTTPClient(
		commerce.WithBaseURL(*flags.commerceBaseURL),
		commerce.WithAPIKey(*flags.commerceAPIKey),
	)
	if err != nil {
		return err
	}
	catalog := commerce.NewCachedCatalog(client)

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	if err := msgService.Start(ctx); err != nil {
		return err
	}
	defer msgService.Stop()

	router := dialogue.NewRouter(store, client, catalog, msgService)
	defer router.Stop()

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(CatalogRefreshCron, func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), commerce.DefaultTimeout)
		defer cancel()
		if err := catalog.Refresh(refreshCtx); err != nil {
			slog.Warn("Scheduled catalog refresh failed", "error", err)
		}
	}); err != nil {
		return err
	}
	if err := sched.AddJob(InactivitySweepCron, func() {
		router.NudgeIdleUsers(context.Background())
	}); err != nil {
		return err
	}
	if err := sched.AddJob(SessionEvictionCron, func() {
		router.EvictIdleSessions(context.Background(), dialogue.EvictionHorizon)
	}); err != nil {
		return err
	}

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if twilioSvc, ok := msgService.(*messaging.TwilioService); ok {
		apiOpts = append(apiOpts, api.WithTwilioWebhook(twilioSvc.WebhookHandler))
	}
	server := api.NewServer(store, apiOpts...)

	errCh := make(chan error, 2)
	go func() {
		errCh <- server.Run()
	}()
	go func() {
		errCh <- router.Run(ctx, msgService.Responses(), msgService.Receipts())
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	if err := server.Stop(); err != nil {
		slog.Warn("API server shutdown error", "error", err)
	}
	return nil
}

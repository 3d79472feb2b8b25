package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/inmobilia-pe/inmobilia-ai/internal/analytics"
	"github.com/inmobilia-pe/inmobilia-ai/internal/api"
	"github.com/inmobilia-pe/inmobilia-ai/internal/flow"
	"github.com/inmobilia-pe/inmobilia-ai/internal/genai"
	"github.com/inmobilia-pe/inmobilia-ai/internal/notify"
	"github.com/inmobilia-pe/inmobilia-ai/internal/store"
	"github.com/inmobilia-pe/inmobilia-ai/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for assistant state data
	DefaultStateDir = "/var/lib/inmobilia"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "inmobilia.db"
)

func main() {
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)
	initializeLogger(*flags.debug)

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	llm := buildGenAIClient(flags)
	tracker := analytics.NewTracker(st)
	notifier := buildAdvisorNotifier(flags, llm)

	conv := flow.NewConversationFlow(llm, st, tracker, notifier, flow.NewRecommender(st))

	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	server := api.NewServer(conv, st, tracker, apiOpts...)

	slog.Info("Bootstrapping Inmobilia assistant",
		"dsn_type", store.DetectDSNType(*flags.dbDSN),
		"llm_configured", llm != nil,
		"advisor_notifications", notifier != nil,
		"api_addr", *flags.apiAddr)
	if err := server.Run(); err != nil {
		slog.Error("Inmobilia assistant failed to run", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	DatabaseURL   string
	StateDir      string
	OpenAIKey     string
	OpenAIModel   string
	APIAddr       string
	AdvisorNumber string
	Debug         bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDSN         *string
	openaiKey     *string
	openaiModel   *string
	apiAddr       *string
	advisorNumber *string
	debug         *bool
}

// initializeLogger sets up structured logging on stdout.
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	config := Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      util.EnvOrDefault("INMOBILIA_STATE_DIR", DefaultStateDir),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:   os.Getenv("OPENAI_MODEL"),
		APIAddr:       os.Getenv("API_ADDR"),
		AdvisorNumber: os.Getenv("ADVISOR_WHATSAPP"),
		Debug:         util.ParseBoolEnv("DEBUG", false),
	}

	// Default to SQLite in the state directory when no database is configured
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
	}

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for assistant data (overrides $INMOBILIA_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN, SQLite path or PostgreSQL URL (overrides $DATABASE_URL)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:   flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		advisorNumber: flag.String("advisor-whatsapp", config.AdvisorNumber, "WhatsApp number that receives lead handoffs (overrides $ADVISOR_WHATSAPP)"),
		debug:         flag.Bool("debug", config.Debug, "enable debug logging (overrides $DEBUG)"),
	}

	flag.Parse()

	// Follow the state directory when the DSN was derived from the default
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}

	return flags
}

// buildStore selects the storage backend from the DSN.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildGenAIClient constructs the LLM client. Without an API key the
// assistant runs on deterministic routing and canned replies only.
func buildGenAIClient(flags Flags) genai.ClientInterface {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	client, err := genai.NewClient(genaiOpts...)
	if err != nil {
		slog.Warn("GenAI client not configured, running in degraded mode", "error", err)
		return nil
	}
	return client
}

// buildAdvisorNotifier constructs the WhatsApp handoff notifier when Twilio
// credentials and an advisor number are configured.
func buildAdvisorNotifier(flags Flags, llm genai.ClientInterface) *notify.AdvisorNotifier {
	if *flags.advisorNumber == "" {
		slog.Debug("No advisor number configured, handoff notifications disabled")
		return nil
	}
	sender, err := notify.NewClient()
	if err != nil {
		slog.Warn("Twilio client not configured, handoff notifications disabled", "error", err)
		return nil
	}
	return notify.NewAdvisorNotifier(sender, llm, *flags.advisorNumber)
}

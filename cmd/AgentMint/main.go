package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BTreeMap/AgentMint/internal/api"
	"github.com/BTreeMap/AgentMint/internal/flow"
	"github.com/BTreeMap/AgentMint/internal/imagegen"
	"github.com/BTreeMap/AgentMint/internal/minting"
	"github.com/BTreeMap/AgentMint/internal/models"
	"github.com/BTreeMap/AgentMint/internal/pinning"
	"github.com/BTreeMap/AgentMint/internal/store"
	"github.com/BTreeMap/AgentMint/internal/telegram"
	"github.com/BTreeMap/AgentMint/internal/twiliowhatsapp"
	"github.com/BTreeMap/AgentMint/internal/util"
	"github.com/joho/godotenv"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for AgentMint state data
	DefaultStateDir = "/var/lib/agentmint"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "agentmint.db"
	// DefaultPort is the default HTTP port
	DefaultPort = "3000"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	if err := validateRequired(flags); err != nil {
		slog.Error("Missing required configuration", "error", err)
		os.Exit(1)
	}

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	mods := api.Modules{
		Telegram: buildTelegramOptions(flags),
		Twilio:   buildTwilioOptions(flags),
		Store:    buildStoreOptions(flags),
		Images:   buildImageOptions(flags),
		Pinning:  buildPinningOptions(flags),
		Minting:  buildMintingOptions(flags),
		Flow:     buildFlowOptions(flags),
	}
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping AgentMint with configured modules")
	slog.Debug("Final configuration", "transport", flags.transport, "state_dir", flags.stateDir, "dsn_set", flags.dbDSN != "", "port", flags.port, "image_backend", flags.imageBackend)
	if err := api.Run(mods, apiOpts...); err != nil {
		slog.Error("AgentMint failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("AgentMint exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken        string
	Port            string
	Domain          string
	Transport       string
	FalAPIKey       string
	OpenAIKey       string
	ImageBackend    string
	PinataJWT       string
	PrivateKey      string
	RPCURL          string
	ContractAddress string
	ExplorerURL     string
	DatabaseURL     string
	StateDir        string
	CapScope        string
	GenerationCap   int
	SessionTTL      time.Duration
	SessionMax      int
	TelegramDebug   bool
}

// Flags holds command line flag values
type Flags struct {
	botToken        string
	port            string
	domain          string
	transport       string
	falAPIKey       string
	openaiKey       string
	imageBackend    string
	pinataJWT       string
	privateKey      string
	rpcURL          string
	contractAddress string
	explorerURL     string
	dbDSN           string
	stateDir        string
	capScope        string
	generationCap   int
	sessionTTL      time.Duration
	sessionMax      int
	telegramDebug   bool
}

// initializeLogger installs the default slog logger. LOG_LEVEL picks the
// level; LOG_FILE additionally writes to a rotated file.
func initializeLogger() {
	level := slog.LevelInfo
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			level = slog.LevelInfo
		}
	}

	var out io.Writer = os.Stdout
	if path := os.Getenv("LOG_FILE"); path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
		})
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:        os.Getenv("BOT_TOKEN"),
		Port:            os.Getenv("PORT"),
		Domain:          os.Getenv("DOMAIN"),
		Transport:       os.Getenv("MESSAGING_TRANSPORT"),
		FalAPIKey:       os.Getenv("FAL_API_KEY"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		ImageBackend:    os.Getenv("IMAGE_BACKEND"),
		PinataJWT:       os.Getenv("PINATA_JWT"),
		PrivateKey:      os.Getenv("MAINNET_PRIVATE_KEY"),
		RPCURL:          os.Getenv("RPC_URL"),
		ContractAddress: os.Getenv("CONTRACT_ADDRESS"),
		ExplorerURL:     os.Getenv("EXPLORER_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("AGENTMINT_STATE_DIR"),
		CapScope:        os.Getenv("GENERATION_CAP_SCOPE"),
		GenerationCap:   util.ParseIntEnv("GENERATION_CAP", models.DefaultGenerationCap),
		SessionTTL:      util.ParseDurationEnv("SESSION_TTL", flow.DefaultSessionTTL),
		SessionMax:      util.ParseIntEnv("SESSION_MAX", flow.DefaultMaxSessions),
		TelegramDebug:   util.ParseBoolEnv("TELEGRAM_DEBUG", false),
	}

	if config.Port == "" {
		config.Port = DefaultPort
	}
	if config.Transport == "" {
		config.Transport = api.TransportTelegram
	}
	if config.ImageBackend == "" {
		config.ImageBackend = imagegen.BackendFal
	}
	if config.CapScope == "" {
		config.CapScope = string(models.CapScopeRound)
	}
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No AGENTMINT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	slog.Debug("environment variables loaded",
		"BOT_TOKEN_SET", config.BotToken != "",
		"PORT", config.Port,
		"DOMAIN", config.Domain,
		"MESSAGING_TRANSPORT", config.Transport,
		"IMAGE_BACKEND", config.ImageBackend,
		"FAL_API_KEY_SET", config.FalAPIKey != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"PINATA_JWT_SET", config.PinataJWT != "",
		"MAINNET_PRIVATE_KEY_SET", config.PrivateKey != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"AGENTMINT_STATE_DIR", config.StateDir)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	var flags Flags
	fs.StringVar(&flags.botToken, "bot-token", config.BotToken, "Telegram bot token (overrides $BOT_TOKEN)")
	fs.StringVar(&flags.port, "port", config.Port, "HTTP port (overrides $PORT)")
	fs.StringVar(&flags.domain, "domain", config.Domain, "public domain for webhook registration (overrides $DOMAIN)")
	fs.StringVar(&flags.transport, "transport", config.Transport, "messaging transport: telegram or twilio (overrides $MESSAGING_TRANSPORT)")
	fs.StringVar(&flags.falAPIKey, "fal-api-key", config.FalAPIKey, "fal.ai API key (overrides $FAL_API_KEY)")
	fs.StringVar(&flags.openaiKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.StringVar(&flags.imageBackend, "image-backend", config.ImageBackend, "image backend: fal or openai (overrides $IMAGE_BACKEND)")
	fs.StringVar(&flags.pinataJWT, "pinata-jwt", config.PinataJWT, "Pinata JWT (overrides $PINATA_JWT)")
	fs.StringVar(&flags.privateKey, "private-key", config.PrivateKey, "hex signing key (overrides $MAINNET_PRIVATE_KEY)")
	fs.StringVar(&flags.rpcURL, "rpc-url", config.RPCURL, "blockchain RPC endpoint (overrides $RPC_URL)")
	fs.StringVar(&flags.contractAddress, "contract-address", config.ContractAddress, "NFT contract address (overrides $CONTRACT_ADDRESS)")
	fs.StringVar(&flags.explorerURL, "explorer-url", config.ExplorerURL, "block explorer base URL (overrides $EXPLORER_URL)")
	fs.StringVar(&flags.dbDSN, "db-dsn", config.DatabaseURL, "audit store DSN (overrides $DATABASE_URL)")
	fs.StringVar(&flags.stateDir, "state-dir", config.StateDir, "state directory for AgentMint data (overrides $AGENTMINT_STATE_DIR)")
	fs.StringVar(&flags.capScope, "cap-scope", config.CapScope, "generation cap scope: round or lifetime (overrides $GENERATION_CAP_SCOPE)")
	fs.IntVar(&flags.generationCap, "generation-cap", config.GenerationCap, "images per session (overrides $GENERATION_CAP)")
	fs.DurationVar(&flags.sessionTTL, "session-ttl", config.SessionTTL, "idle session expiry (overrides $SESSION_TTL)")
	fs.IntVar(&flags.sessionMax, "session-max", config.SessionMax, "maximum live sessions (overrides $SESSION_MAX)")
	fs.BoolVar(&flags.telegramDebug, "telegram-debug", config.TelegramDebug, "log Bot API requests (overrides $TELEGRAM_DEBUG)")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}

	// Default the SQLite database into the state directory.
	if flags.dbDSN == "" {
		flags.dbDSN = filepath.Join(flags.stateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", flags.dbDSN)
	}

	slog.Debug("flags parsed",
		"transport", flags.transport,
		"port", flags.port,
		"domain", flags.domain,
		"imageBackend", flags.imageBackend,
		"stateDir", flags.stateDir,
		"dbDSN_set", flags.dbDSN != "",
		"generationCap", flags.generationCap,
		"capScope", flags.capScope)

	return flags, nil
}

// validateRequired reports every required value that is missing.
func validateRequired(flags Flags) error {
	var missing []string
	switch flags.transport {
	case api.TransportTelegram:
		if flags.botToken == "" {
			missing = append(missing, "BOT_TOKEN")
		}
		if flags.domain == "" {
			missing = append(missing, "DOMAIN")
		}
	case api.TransportTwilio:
		for _, key := range []string{"TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER"} {
			if os.Getenv(key) == "" {
				missing = append(missing, key)
			}
		}
	default:
		return fmt.Errorf("unknown messaging transport %q", flags.transport)
	}

	switch flags.imageBackend {
	case imagegen.BackendFal:
		if flags.falAPIKey == "" {
			missing = append(missing, "FAL_API_KEY")
		}
	case imagegen.BackendOpenAI:
		if flags.openaiKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown image backend %q", flags.imageBackend)
	}

	if flags.pinataJWT == "" {
		missing = append(missing, "PINATA_JWT")
	}
	if flags.privateKey == "" {
		missing = append(missing, "MAINNET_PRIVATE_KEY")
	}
	if !models.IsValidCapScope(models.CapScope(flags.capScope)) {
		return fmt.Errorf("invalid generation cap scope %q", flags.capScope)
	}

	if len(missing) > 0 {
		return errors.New("missing " + strings.Join(missing, ", "))
	}
	return nil
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if err := os.MkdirAll(flags.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", flags.stateDir, err)
	}
	if store.DetectDSNType(flags.dbDSN) == "sqlite3" {
		dir := filepath.Dir(strings.TrimPrefix(flags.dbDSN, "file:"))
		slog.Debug("Creating directory for file-based database", "dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	return nil
}

// buildTelegramOptions constructs Telegram client options; the token is passed through the API options.
func buildTelegramOptions(flags Flags) []telegram.Option {
	var tgOpts []telegram.Option
	if flags.telegramDebug {
		tgOpts = append(tgOpts, telegram.WithDebug(true))
	}
	return tgOpts
}

// buildTwilioOptions constructs Twilio configuration options; credentials come from the environment.
func buildTwilioOptions(flags Flags) []twiliowhatsapp.Option {
	if flags.transport != api.TransportTwilio {
		return nil
	}
	return []twiliowhatsapp.Option{
		twiliowhatsapp.WithAccountSID(os.Getenv("TWILIO_ACCOUNT_SID")),
		twiliowhatsapp.WithAuthToken(os.Getenv("TWILIO_AUTH_TOKEN")),
		twiliowhatsapp.WithFromWhats(os.Getenv("TWILIO_FROM_NUMBER")),
	}
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if flags.dbDSN == "" {
		slog.Debug("No database DSN provided, will use in-memory store")
		return storeOpts
	}
	if store.DetectDSNType(flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql")
		storeOpts = append(storeOpts, store.WithPostgresDSN(flags.dbDSN))
	} else {
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", flags.dbDSN)
		storeOpts = append(storeOpts, store.WithSQLiteDSN(flags.dbDSN))
	}
	return storeOpts
}

// buildImageOptions constructs image service options for the selected backend
func buildImageOptions(flags Flags) []imagegen.Option {
	imageOpts := []imagegen.Option{imagegen.WithBackend(flags.imageBackend)}
	switch flags.imageBackend {
	case imagegen.BackendFal:
		imageOpts = append(imageOpts, imagegen.WithAPIKey(flags.falAPIKey))
	case imagegen.BackendOpenAI:
		imageOpts = append(imageOpts, imagegen.WithAPIKey(flags.openaiKey))
	}
	return imageOpts
}

// buildPinningOptions constructs Pinata configuration options
func buildPinningOptions(flags Flags) []pinning.Option {
	var pinOpts []pinning.Option
	if flags.pinataJWT != "" {
		pinOpts = append(pinOpts, pinning.WithJWT(flags.pinataJWT))
	}
	return pinOpts
}

// buildMintingOptions constructs chain configuration options
func buildMintingOptions(flags Flags) []minting.Option {
	var mintOpts []minting.Option
	if flags.privateKey != "" {
		mintOpts = append(mintOpts, minting.WithPrivateKey(flags.privateKey))
	}
	if flags.rpcURL != "" {
		mintOpts = append(mintOpts, minting.WithRPCURL(flags.rpcURL))
	}
	if flags.contractAddress != "" {
		mintOpts = append(mintOpts, minting.WithContractAddress(flags.contractAddress))
	}
	return mintOpts
}

// buildFlowOptions constructs agent flow options
func buildFlowOptions(flags Flags) []flow.Option {
	flowOpts := []flow.Option{
		flow.WithGenerationCap(flags.generationCap),
		flow.WithCapScope(models.CapScope(flags.capScope)),
		flow.WithSessionStore(flow.NewSessionStore(flags.sessionMax, flags.sessionTTL)),
	}
	if flags.explorerURL != "" {
		flowOpts = append(flowOpts, flow.WithExplorerURL(flags.explorerURL))
	}
	return flowOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	return []api.Option{
		api.WithAddr(":" + flags.port),
		api.WithTransport(flags.transport),
		api.WithDomain(flags.domain),
		api.WithBotToken(flags.botToken),
		api.WithStateDir(flags.stateDir),
	}
}

package config

import (
	"log"
	"time"

	"github.com/easebot/rankledger/internal/core/domain"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Port         string
	IsProduction bool
	DataDir      string

	// Webhook ingestion
	WebhookSecret    string
	WebhookRateLimit string // ulule/limiter formatted rate, e.g. "30-M"

	// Chat platform collaborators
	DiscordToken   string
	GuildID        string
	PromoChannelID string
	LogChannelID   string

	// Rank table, loaded once at startup
	Ranks domain.RankTable

	// Operator session tokens for the manual purchase path
	JWTSecret            string
	JWTExpiryDuration    time.Duration
	JWTIssuer            string
	OperatorID           string
	OperatorPasswordHash string // bcrypt

	AllowTestCommands bool
	ReconcileInterval time.Duration // 0 disables the periodic role reconciliation

	// Optional Postgres ledger backend; jsonfile when empty
	DatabaseURL string

	// Optional product analytics
	PosthogAPIKey   string
	PosthogEndpoint string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("DATA_DIR", "./data")
	viper.SetDefault("WEBHOOK_SECRET", "")
	viper.SetDefault("WEBHOOK_RATE_LIMIT", "30-M")
	viper.SetDefault("DISCORD_TOKEN", "")
	viper.SetDefault("GUILD_ID", "")
	viper.SetDefault("PROMO_CHANNEL_ID", "")
	viper.SetDefault("LOG_CHANNEL_ID", "")
	viper.SetDefault("RANKS_FILE", "")
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_EXPIRY_DURATION", "1h")
	viper.SetDefault("JWT_ISSUER", "rankledger")
	viper.SetDefault("OPERATOR_ID", "")
	viper.SetDefault("OPERATOR_PASSWORD_HASH", "")
	viper.SetDefault("ALLOW_TEST_COMMANDS", true)
	viper.SetDefault("RECONCILE_INTERVAL", "0s")
	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("POSTHOG_API_KEY", "")
	viper.SetDefault("POSTHOG_ENDPOINT", "https://app.posthog.com")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")
	cfg.DataDir = viper.GetString("DATA_DIR")

	cfg.WebhookSecret = viper.GetString("WEBHOOK_SECRET")
	if cfg.WebhookSecret == "" {
		log.Println("Warning: WEBHOOK_SECRET not set. Webhook requests will be rejected with a server misconfiguration error.")
	}
	cfg.WebhookRateLimit = viper.GetString("WEBHOOK_RATE_LIMIT")

	cfg.DiscordToken = viper.GetString("DISCORD_TOKEN")
	cfg.GuildID = viper.GetString("GUILD_ID")
	cfg.PromoChannelID = viper.GetString("PROMO_CHANNEL_ID")
	cfg.LogChannelID = viper.GetString("LOG_CHANNEL_ID")
	if cfg.DiscordToken == "" || cfg.GuildID == "" {
		log.Println("Warning: DISCORD_TOKEN or GUILD_ID not set. Role sync and announcements will be disabled.")
	}

	ranksFile := viper.GetString("RANKS_FILE")
	if ranksFile != "" {
		table, err := domain.LoadRankTable(ranksFile)
		if err != nil {
			return nil, err
		}
		cfg.Ranks = table
	} else {
		cfg.Ranks = domain.DefaultRankTable()
	}

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET not set. Using default insecure key.")
	}

	jwtExpiryStr := viper.GetString("JWT_EXPIRY_DURATION")
	jwtExpiryDuration, err := time.ParseDuration(jwtExpiryStr)
	if err != nil {
		jwtExpiryDuration = time.Hour
		log.Printf("Warning: Invalid value for JWT_EXPIRY_DURATION (%q). Defaulting to %s.\n", jwtExpiryStr, jwtExpiryDuration)
	}
	cfg.JWTExpiryDuration = jwtExpiryDuration
	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")

	cfg.OperatorID = viper.GetString("OPERATOR_ID")
	cfg.OperatorPasswordHash = viper.GetString("OPERATOR_PASSWORD_HASH")
	if cfg.OperatorID == "" || cfg.OperatorPasswordHash == "" {
		log.Println("Warning: OPERATOR_ID or OPERATOR_PASSWORD_HASH not set. Operator login will be disabled.")
	}

	cfg.AllowTestCommands = viper.GetBool("ALLOW_TEST_COMMANDS")

	reconcileStr := viper.GetString("RECONCILE_INTERVAL")
	reconcileInterval, err := time.ParseDuration(reconcileStr)
	if err != nil {
		reconcileInterval = 0
		log.Printf("Warning: Invalid value for RECONCILE_INTERVAL (%q). Reconciliation disabled.\n", reconcileStr)
	}
	cfg.ReconcileInterval = reconcileInterval

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	cfg.PosthogAPIKey = viper.GetString("POSTHOG_API_KEY")
	cfg.PosthogEndpoint = viper.GetString("POSTHOG_ENDPOINT")

	return cfg, nil
}

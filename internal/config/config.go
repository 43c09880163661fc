package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server   ServerConfig
	MongoDB  MongoDBConfig
	Scraper  ScraperConfig
	Sheets   SheetsConfig
	Identity IdentityConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// ScraperConfig controls the daily menu scrape batch.
type ScraperConfig struct {
	MenuURL      string
	DiningHalls  []string
	WaitTimeout  time.Duration
	Headless     bool
	CronSchedule string
	Timezone     string
}

// SheetsConfig contains configuration for the scrape-run report sheet.
// Leaving both fields empty disables the sheet sink.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// IdentityConfig points at the external token verifier. An empty VerifyURL
// disables verification (local development only).
type IdentityConfig struct {
	VerifyURL string
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the
		// environment directly.
		_ = godotenv.Load()
	}

	waitTimeout, err := time.ParseDuration(getenvWithDefault("SCRAPE_WAIT_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCRAPE_WAIT_TIMEOUT: %w", err)
	}

	headless, err := strconv.ParseBool(getenvWithDefault("CHROME_HEADLESS", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid CHROME_HEADLESS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getenvWithDefault("APP_PORT", "8080"),
		},
		MongoDB: MongoDBConfig{
			URI:    getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "nudining"),
		},
		Scraper: ScraperConfig{
			MenuURL:      getenvWithDefault("MENU_URL", "https://nudining.com/public/whats-on-the-menu"),
			DiningHalls:  splitList(getenvWithDefault("DINING_HALLS", "United Table at International Village,The Eatery at Stetson East")),
			WaitTimeout:  waitTimeout,
			Headless:     headless,
			CronSchedule: os.Getenv("SCRAPE_CRON_SCHEDULE"),
			Timezone:     getenvWithDefault("TIMEZONE", "America/New_York"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_REPORT_ID"),
		},
		Identity: IdentityConfig{
			VerifyURL: os.Getenv("IDENTITY_VERIFY_URL"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	if c.MongoDB.URI == "" {
		return errors.New("MONGODB_URI must be provided")
	}
	if c.MongoDB.DBName == "" {
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	if c.Scraper.MenuURL == "" {
		return errors.New("MENU_URL must be provided")
	}
	if len(c.Scraper.DiningHalls) == 0 {
		return errors.New("DINING_HALLS must list at least one dining hall")
	}
	if c.Scraper.WaitTimeout <= 0 {
		return errors.New("SCRAPE_WAIT_TIMEOUT must be positive")
	}
	if c.Scraper.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	// Sheet reporting is optional, but a half-configured sink is a mistake.
	if (c.Sheets.SpreadsheetID == "") != (c.Sheets.CredentialsPath == "") {
		return errors.New("GOOGLE_SHEET_REPORT_ID and GOOGLE_SHEETS_CREDENTIALS_PATH must be set together")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

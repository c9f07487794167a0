package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration, loaded from the environment
// with .env support for local development.
type Config struct {
	Port   string
	DBPath string

	LinesPath   string
	CCTVPath    string
	PicturesDir string

	JWTSecret     string
	AdminUsername string
	AdminPassword string

	LineChannelSecret string
	LineChannelToken  string

	CWAAPIKey            string
	CWABaseURL           string
	RainfallPollInterval time.Duration

	PublicBaseURL string
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

// Load reads the configuration. A missing .env file is not an error.
func Load() *Config {
	godotenv.Load()

	port := getEnv("PORT", ":8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	return &Config{
		Port:   port,
		DBPath: getEnv("DB_PATH", "./data/bot.db"),

		LinesPath:   getEnv("LINES_PATH", "./data/lines.json"),
		CCTVPath:    getEnv("CCTV_PATH", "./data/cctv.json"),
		PicturesDir: getEnv("PICTURES_DIR", "./data/event_pictures"),

		JWTSecret:     getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		LineChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
		LineChannelToken:  os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),

		CWAAPIKey:            os.Getenv("CWA_API_KEY"),
		CWABaseURL:           os.Getenv("CWA_API_BASE"),
		RainfallPollInterval: getEnvSeconds("RAINFALL_POLL_INTERVAL", 10*time.Minute),

		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
	}
}

// RainfallPageURL is the public rainfall map page.
func (c *Config) RainfallPageURL() string {
	return c.PublicBaseURL + "/rainfall.html"
}

// CCTVPageURL is the public camera map page.
func (c *Config) CCTVPageURL() string {
	return c.PublicBaseURL + "/cctv.html"
}

// EventsPageURL is the public reported-events map page.
func (c *Config) EventsPageURL() string {
	return c.PublicBaseURL + "/events.html"
}

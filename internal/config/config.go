package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr       string
	DBPath           string
	ReceiptImagePath string
	LogLevel         string
	LogFormat        string
	LogFile          string

	SyncInterval        time.Duration
	SyncRetryAttempts   int
	SyncRetryBaseDelay  time.Duration
	BindingPollInterval time.Duration

	CloudConnectTimeout time.Duration
	CloudRequestTimeout time.Duration
	StaffDepartments    []string
}

// Load reads the configuration from the environment. Values in a .env file in
// the working directory (or ENV_FILE) fill in variables that are not already
// set; a missing file is not an error.
func Load() *Config {
	_ = godotenv.Load(getEnv("ENV_FILE", ".env"))

	return &Config{
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		DBPath:           getEnv("DB_PATH", "/data/shopsync.db"),
		ReceiptImagePath: getEnv("RECEIPT_IMAGE_PATH", "/data/receipts"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		LogFile:          getEnv("LOG_FILE", ""),

		SyncInterval:        getDuration("SYNC_INTERVAL", 5*time.Minute),
		SyncRetryAttempts:   getInt("SYNC_RETRY_ATTEMPTS", 3),
		SyncRetryBaseDelay:  getDuration("SYNC_RETRY_BASE_DELAY", time.Second),
		BindingPollInterval: getDuration("BINDING_POLL_INTERVAL", 5*time.Second),

		CloudConnectTimeout: getDuration("CLOUD_CONNECT_TIMEOUT", 10*time.Second),
		CloudRequestTimeout: getDuration("CLOUD_REQUEST_TIMEOUT", 30*time.Second),
		StaffDepartments:    getList("STAFF_DEPARTMENTS", []string{"Workshop", "Maintenance"}),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

// getList splits a comma-separated value. An explicitly empty value yields an
// empty list.
func getList(key string, defaultVal []string) []string {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

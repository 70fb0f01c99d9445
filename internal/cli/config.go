package cli

import (
	"os"
	"time"
)

// Config holds CLI configuration
type Config struct {
	Addr    string
	Output  string
	Timeout time.Duration
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		Addr:    getEnvOrDefault("WHISTBROKER_ADDR", "localhost:44247"),
		Output:  "text",
		Timeout: 10 * time.Second,
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

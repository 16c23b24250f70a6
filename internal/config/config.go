// Package config loads walletsyncd's runtime configuration from the
// environment using a layered .env convention: a default .env file,
// then a network-specific override on top of it.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects which synchronization strategy the demo command drives.
type Mode string

const (
	ModeAPI Mode = "api"
	ModeP2P Mode = "p2p"
)

// Config holds walletsyncd's runtime configuration.
type Config struct {
	Network string // "mainnet" or "testnet3"
	Mode    Mode

	// API-mode indexer settings.
	IndexerBaseURL string
	IndexerAPIKey  string
	HTTPTimeout    time.Duration

	// Peer-mode settings.
	PeerEndpoints []string
	PeerUserAgent string
	DialTimeout   time.Duration

	TickInterval time.Duration

	ListenAddr       string
	EnablePrometheus bool
	PrometheusPort   int
}

// Load reads Config from the environment, applying the layered .env
// files before falling back to hardcoded defaults.
func Load() Config {
	loadEnvironmentConfig()

	return Config{
		Network:          getEnv("NETWORK", "testnet3"),
		Mode:             Mode(getEnv("SYNC_MODE", string(ModeAPI))),
		IndexerBaseURL:   getEnv("INDEXER_BASE_URL", "http://127.0.0.1:8332"),
		IndexerAPIKey:    getEnv("INDEXER_API_KEY", ""),
		HTTPTimeout:      time.Duration(getEnvInt("INDEXER_TIMEOUT_SEC", 30)) * time.Second,
		PeerEndpoints:    getEnvSlice("PEER_ENDPOINTS", []string{"127.0.0.1:18333"}),
		PeerUserAgent:    getEnv("PEER_USER_AGENT", "/walletsyncd:0.1.0/"),
		DialTimeout:      time.Duration(getEnvInt("PEER_DIAL_TIMEOUT_SEC", 10)) * time.Second,
		TickInterval:     time.Duration(getEnvInt("TICK_INTERVAL_SEC", 5)) * time.Second,
		ListenAddr:       getEnv("LISTEN_ADDR", ":8080"),
		EnablePrometheus: getEnvBool("ENABLE_PROMETHEUS", true),
		PrometheusPort:   getEnvInt("PROMETHEUS_PORT", 9090),
	}
}

func loadEnvironmentConfig() {
	if err := godotenv.Load(); err == nil {
		log.Printf("config: loaded default .env file")
	} else {
		log.Printf("config: no .env file found, using system environment variables")
	}

	network := getEnv("NETWORK", "")
	if network != "" {
		networkEnvFile := fmt.Sprintf(".env.%s", network)
		if err := godotenv.Overload(networkEnvFile); err == nil {
			log.Printf("config: loaded network override file: %s", networkEnvFile)
		}
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || v == "true"
	}
	return def
}

func getEnvSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"gamedash/internal/logger"
	"gamedash/internal/version"

	"github.com/jessevdk/go-flags"
)

// Config represents the complete application flags configuration.
type Config struct {
	Server  Server        `group:"Server Options" env-namespace:"GAMEDASH"`
	Panel   Panel         `group:"Panel Options" namespace:"panel" env-namespace:"GAMEDASH_PANEL"`
	Storage Storage       `group:"Storage Options" namespace:"db" env-namespace:"GAMEDASH_DB"`
	Auth    Auth          `group:"Auth Options" namespace:"auth" env-namespace:"GAMEDASH_AUTH"`
	Poll    Poll          `group:"Poll Options" namespace:"poll" env-namespace:"GAMEDASH_POLL"`
	Logger  logger.Config `group:"Logger Options" namespace:"log" env-namespace:"GAMEDASH_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	Address       string        `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	TLSCert       string        `long:"tls-cert" env:"TLS_CERT" description:"Path to TLS certificate (enables HTTPS together with tls-key)"`
	TLSKey        string        `long:"tls-key" env:"TLS_KEY" description:"Path to TLS private key"`
	RatePerMinute int           `long:"rate-per-minute" env:"RATE_PER_MINUTE" description:"Per-IP request budget per minute" default:"100"`
	RateBurst     int           `long:"rate-burst" env:"RATE_BURST" description:"Per-IP burst size" default:"10"`
	ReadTimeout   time.Duration `long:"read-timeout" env:"READ_TIMEOUT" description:"HTTP read timeout" default:"10s"`
	WriteTimeout  time.Duration `long:"write-timeout" env:"WRITE_TIMEOUT" description:"HTTP write timeout" default:"10s"`
}

// Panel holds the external orchestrator endpoint configuration.
type Panel struct {
	URL     string        `short:"p" long:"url" env:"URL" description:"Base URL of the orchestrator panel API"`
	Timeout time.Duration `long:"timeout" env:"TIMEOUT" description:"Request timeout for orchestrator calls" default:"10s"`
}

// Storage holds database configuration. An empty path keeps all state in memory.
type Storage struct {
	Path string `short:"d" long:"path" env:"PATH" description:"Path to SQLite database (empty for in-memory state)"`
}

// Auth holds session and user-store configuration.
type Auth struct {
	JWTSecret string        `short:"s" long:"jwt-secret" env:"JWT_SECRET" description:"Secret used to sign session tokens"`
	TokenTTL  time.Duration `long:"token-ttl" env:"TOKEN_TTL" description:"Session token lifetime" default:"24h"`
	UsersFile string        `long:"users-file" env:"USERS_FILE" description:"Path to the users JSON file" default:"users.json"`
}

// Poll holds background reconciliation loop configuration.
type Poll struct {
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Background reconcile/telemetry interval (0 disables)" default:"30s"`
	Workers  int           `long:"workers" env:"WORKERS" description:"Concurrent telemetry fetches per pass" default:"5"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help
// flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		fmt.Println("gamedash", version.String())
		os.Exit(0)
	}

	if cfg.Panel.URL == "" {
		fmt.Fprintln(os.Stderr,
			"Required flag `-p, --panel-url' or environment variable `GAMEDASH_PANEL_URL` was not specified!")
		os.Exit(1)
	}
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr,
			"Required flag `-s, --auth-jwt-secret' or environment variable `GAMEDASH_AUTH_JWT_SECRET` was not specified!")
		os.Exit(1)
	}

	return &cfg
}

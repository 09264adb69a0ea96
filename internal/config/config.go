package config

import (
	"flag"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StoreConfig selects and configures the document store backend.
type StoreConfig struct {
	Backend string // "s3", "local" or "memory"
	Bucket  string
	Region  string
	RootDir string // local backend only
}

// TLSConfig holds TLS configuration options
type TLSConfig struct {
	Enabled      bool
	CertFile     string
	KeyFile      string
	GenerateCert bool
}

// CORSConfig holds CORS configuration options
type CORSConfig struct {
	Enabled          bool
	AllowOrigins     string
	AllowMethods     string
	AllowHeaders     string
	AllowCredentials bool
	MaxAge           int
}

// Config holds the application configuration
type Config struct {
	Port       int
	LogLevel   string
	DryRun     bool // force dry-run on every request
	MaxRetries int  // persist retries for transient store failures
	Store      StoreConfig
	TLS        TLSConfig
	CORS       CORSConfig
}

// ParseFlags parses command line flags and merges them with the config file
// and the environment.
func ParseFlags() (*Config, error) {
	// Define flags
	configFlag := flag.String("config", "config.yml", "Path to configuration file")
	generateConfigFlag := flag.Bool("generate-config", false, "Generate a default configuration file")
	configFilePathFlag := flag.String("config-path", "config.yml", "Path where config file should be generated")

	// Simple flags for overriding config file
	portFlag := flag.Int("p", 0, "Port to listen on (overrides config)")
	bucketFlag := flag.String("bucket", "", "Bucket holding stats documents (overrides config)")
	backendFlag := flag.String("backend", "", "Store backend: s3, local or memory (overrides config)")
	dryRunFlag := flag.Bool("dry-run", false, "Compute results without writing to the store")

	// Parse flags
	flag.Parse()

	// Handle config file generation
	if *generateConfigFlag {
		log.Info().Str("path", *configFilePathFlag).Msg("generating default configuration file")
		if err := SaveDefaultConfig(*configFilePathFlag); err != nil {
			return nil, err
		}
		log.Info().Msg("configuration file generated successfully")
	}

	// Load configuration from file
	config, err := LoadConfig(*configFlag)
	if err != nil {
		log.Warn().Err(err).Msg("could not load config file, using defaults")

		// If config file doesn't exist, use default config
		config, _ = LoadConfig("")
	}

	// Override with command line flags if provided
	if *portFlag != 0 {
		config.Port = *portFlag
	}
	if *bucketFlag != "" {
		config.Store.Bucket = *bucketFlag
	}
	if *backendFlag != "" {
		config.Store.Backend = *backendFlag
	}
	if *dryRunFlag {
		config.DryRun = true
	}

	config.ApplyEnv()

	return config, nil
}

// ApplyEnv merges the environment contract shared with the Lambda
// deployment: STATS_BUCKET_NAME, LOG_LEVEL and DRY_RUN.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("STATS_BUCKET_NAME"); v != "" {
		c.Store.Bucket = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if DryRunEnv() {
		c.DryRun = true
	}
}

// DryRunEnv reports whether the DRY_RUN environment variable is truthy.
func DryRunEnv() bool {
	switch os.Getenv("DRY_RUN") {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	}
	return false
}

// Level parses the configured log level. Unknown values mean info.
func (c *Config) Level() zerolog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

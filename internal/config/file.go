package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig represents the structure of the configuration file
type FileConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Store struct {
		Backend string `yaml:"backend"`
		Bucket  string `yaml:"bucket"`
		Region  string `yaml:"region"`
		RootDir string `yaml:"root_dir"`
	} `yaml:"store"`

	Update struct {
		MaxRetries int  `yaml:"max_retries"`
		DryRun     bool `yaml:"dry_run"`
	} `yaml:"update"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	TLS struct {
		Enabled      bool   `yaml:"enabled"`
		CertFile     string `yaml:"cert_file"`
		KeyFile      string `yaml:"key_file"`
		GenerateCert bool   `yaml:"generate_cert"`
	} `yaml:"tls"`

	CORS struct {
		Enabled          bool   `yaml:"enabled"`
		AllowOrigins     string `yaml:"allow_origins"`
		AllowMethods     string `yaml:"allow_methods"`
		AllowHeaders     string `yaml:"allow_headers"`
		AllowCredentials bool   `yaml:"allow_credentials"`
		MaxAge           int    `yaml:"max_age"`
	} `yaml:"cors"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filePath string) (*Config, error) {
	// Create default config
	config := &Config{
		Port:       3000,
		LogLevel:   "INFO",
		MaxRetries: 3,
		Store: StoreConfig{
			Backend: "s3",
			Bucket:  "zoolanding-quick-stats",
			RootDir: "data",
		},
		TLS: TLSConfig{
			Enabled:      false,
			CertFile:     "cert/cert.pem",
			KeyFile:      "cert/key.pem",
			GenerateCert: false,
		},
		CORS: CORSConfig{
			Enabled:          false,
			AllowOrigins:     "*",
			AllowMethods:     "GET, POST, OPTIONS",
			AllowHeaders:     "Content-Type, Subscribe, Version",
			AllowCredentials: false,
			MaxAge:           86400,
		},
	}

	// If no config file specified, return default config
	if filePath == "" {
		return config, nil
	}

	// Read config file
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	var fileConfig FileConfig
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Update config with values from file
	if fileConfig.Server.Port != 0 {
		config.Port = fileConfig.Server.Port
	}

	// Store settings
	if fileConfig.Store.Backend != "" {
		config.Store.Backend = fileConfig.Store.Backend
	}
	if fileConfig.Store.Bucket != "" {
		config.Store.Bucket = fileConfig.Store.Bucket
	}
	if fileConfig.Store.Region != "" {
		config.Store.Region = fileConfig.Store.Region
	}
	if fileConfig.Store.RootDir != "" {
		config.Store.RootDir = fileConfig.Store.RootDir
	}

	// Update settings
	if fileConfig.Update.MaxRetries != 0 {
		config.MaxRetries = fileConfig.Update.MaxRetries
	}
	config.DryRun = fileConfig.Update.DryRun

	// Log settings
	if fileConfig.Log.Level != "" {
		config.LogLevel = fileConfig.Log.Level
	}

	// TLS settings
	config.TLS.Enabled = fileConfig.TLS.Enabled
	if fileConfig.TLS.CertFile != "" {
		config.TLS.CertFile = fileConfig.TLS.CertFile
	}
	if fileConfig.TLS.KeyFile != "" {
		config.TLS.KeyFile = fileConfig.TLS.KeyFile
	}
	config.TLS.GenerateCert = fileConfig.TLS.GenerateCert

	// CORS settings
	config.CORS.Enabled = fileConfig.CORS.Enabled
	if fileConfig.CORS.AllowOrigins != "" {
		config.CORS.AllowOrigins = fileConfig.CORS.AllowOrigins
	}
	if fileConfig.CORS.AllowMethods != "" {
		config.CORS.AllowMethods = fileConfig.CORS.AllowMethods
	}
	if fileConfig.CORS.AllowHeaders != "" {
		config.CORS.AllowHeaders = fileConfig.CORS.AllowHeaders
	}
	config.CORS.AllowCredentials = fileConfig.CORS.AllowCredentials
	if fileConfig.CORS.MaxAge != 0 {
		config.CORS.MaxAge = fileConfig.CORS.MaxAge
	}

	return config, nil
}

// SaveDefaultConfig saves a default configuration file
func SaveDefaultConfig(filePath string) error {
	// Create default config structure
	var fileConfig FileConfig

	// Server settings
	fileConfig.Server.Port = 3000

	// Store settings
	fileConfig.Store.Backend = "s3"
	fileConfig.Store.Bucket = "zoolanding-quick-stats"
	fileConfig.Store.Region = ""
	fileConfig.Store.RootDir = "data"

	// Update settings
	fileConfig.Update.MaxRetries = 3
	fileConfig.Update.DryRun = false

	// Log settings
	fileConfig.Log.Level = "INFO"

	// TLS settings
	fileConfig.TLS.Enabled = false
	fileConfig.TLS.CertFile = "cert/cert.pem"
	fileConfig.TLS.KeyFile = "cert/key.pem"
	fileConfig.TLS.GenerateCert = false

	// CORS settings
	fileConfig.CORS.Enabled = false
	fileConfig.CORS.AllowOrigins = "*"
	fileConfig.CORS.AllowMethods = "GET, POST, OPTIONS"
	fileConfig.CORS.AllowHeaders = "Content-Type, Subscribe, Version"
	fileConfig.CORS.AllowCredentials = false
	fileConfig.CORS.MaxAge = 86400

	// Marshal to YAML
	data, err := yaml.Marshal(fileConfig)
	if err != nil {
		return fmt.Errorf("error creating default config: %w", err)
	}

	// Add helpful comments
	yamlWithComments := "# QuickStats Server Configuration\n" +
		"# This file contains all settings for the stats update server\n\n" +
		string(data)

	// Write to file
	if err := os.WriteFile(filePath, []byte(yamlWithComments), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

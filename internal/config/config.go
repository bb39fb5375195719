// Package config handles configuration loading for the WUS gateway.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax). This allows sensitive values
// like database credentials and HSM PINs to be injected at runtime.
//
// # Configuration Sections
//
//   - server: HTTPS listener settings (port, TLS, client CA bundle)
//   - storage: Exchange journal connection (MongoDB URI, database name)
//   - keys: Key material mode (file or pkcs11)
//   - security: Timestamp freshness window and clock skew
//   - correlation: Request/response correlation TTL and sweep interval
//   - endpoints: Remote endpoints with their Digikoppeling profile
//   - observability: Metrics endpoint
//
// # Example Configuration
//
//	server:
//	  port: 8443
//	  tls:
//	    certFile: /etc/ssl/gateway.crt
//	    keyFile: /etc/ssl/gateway.key
//	    clientCAFile: /etc/ssl/pkio-roots.pem
//
//	storage:
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: wus
//
//	keys:
//	  mode: file
//	  file:
//	    certFile: /etc/keys/signing.crt
//	    keyFile: /etc/keys/signing.key
//	    trustAnchorFile: /etc/keys/anchors.pem
//
//	endpoints:
//	  - name: belastingdienst
//	    url: https://wus.belastingdienst.example.nl/wus
//	    profile: "Digikoppeling 2W-be-S"
//
// See [Load] for loading configuration from a file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Keys        KeysConfig        `yaml:"keys"`
	Security    SecurityConfig    `yaml:"security"`
	Correlation CorrelationConfig `yaml:"correlation"`
	Endpoints   []EndpointConfig  `yaml:"endpoints"`
	Metrics     MetricsConfig     `yaml:"observability"`
}

// ServerConfig holds HTTPS listener settings
type ServerConfig struct {
	Port int `yaml:"port"`
	TLS  struct {
		CertFile     string `yaml:"certFile"`
		KeyFile      string `yaml:"keyFile"`
		ClientCAFile string `yaml:"clientCAFile"`
	} `yaml:"tls"`
}

// StorageConfig holds exchange journal settings
type StorageConfig struct {
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// KeysConfig holds key material settings
type KeysConfig struct {
	// Mode determines where signing and decryption keys live
	// - "pkcs11": keys stored in a PKCS#11 token (HSM/smart card)
	// - "file": keys loaded from PEM files (development only)
	Mode string `yaml:"mode"`

	PKCS11 PKCS11Config  `yaml:"pkcs11"`
	File   FileKeyConfig `yaml:"file"`
}

// PKCS11Config holds PKCS#11 HSM settings
type PKCS11Config struct {
	// Path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string `yaml:"modulePath"`
	// Slot label to use
	SlotLabel string `yaml:"slotLabel"`
	// PIN for authentication (can be env var reference like ${HSM_PIN})
	PIN string `yaml:"pin"`
	// Label of the gateway key pair on the token
	KeyLabel string `yaml:"keyLabel"`
	// Certificate chain for the token key, PEM
	CertFile string `yaml:"certFile"`
	// Trust anchors for verifying peers, PEM bundle
	TrustAnchorFile string `yaml:"trustAnchorFile"`
}

// FileKeyConfig holds file-based key settings (development only)
type FileKeyConfig struct {
	CertFile        string `yaml:"certFile"`
	KeyFile         string `yaml:"keyFile"`
	TrustAnchorFile string `yaml:"trustAnchorFile"`
}

// SecurityConfig holds timestamp validation settings
type SecurityConfig struct {
	// How long a wsu:Timestamp stays fresh after Created
	TimestampTTL time.Duration `yaml:"timestampTTL"`
	// Tolerated clock drift between sender and receiver
	ClockSkew time.Duration `yaml:"clockSkew"`
}

// CorrelationConfig holds request/response correlation settings
type CorrelationConfig struct {
	// Default wait for a correlated response before expiry
	DefaultTTL time.Duration `yaml:"defaultTTL"`
	// How often expired pending exchanges are swept
	SweepInterval time.Duration `yaml:"sweepInterval"`
}

// EndpointConfig binds a remote endpoint to its Digikoppeling profile
type EndpointConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Profile string `yaml:"profile"`
}

// MetricsConfig holds observability settings
type MetricsConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// EndpointByName returns the configured endpoint with the given name.
func (c *Config) EndpointByName(name string) (EndpointConfig, bool) {
	for _, ep := range c.Endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return EndpointConfig{}, false
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8443
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "wus"
	}
	if c.Storage.MongoDB.Collection == "" {
		c.Storage.MongoDB.Collection = "exchanges"
	}
	if c.Keys.Mode == "" {
		c.Keys.Mode = "file" // Default to file for development
	}
	if c.Security.TimestampTTL == 0 {
		c.Security.TimestampTTL = 5 * time.Minute
	}
	if c.Security.ClockSkew == 0 {
		c.Security.ClockSkew = 30 * time.Second
	}
	if c.Correlation.DefaultTTL == 0 {
		c.Correlation.DefaultTTL = 5 * time.Minute
	}
	if c.Correlation.SweepInterval == 0 {
		c.Correlation.SweepInterval = 30 * time.Second
	}
	if c.Metrics.Metrics.Path == "" {
		c.Metrics.Metrics.Path = "/metrics"
	}
}

func (c *Config) validate() error {
	if c.Storage.MongoDB.URI == "" {
		return fmt.Errorf("storage.mongodb.uri is required")
	}

	switch c.Keys.Mode {
	case "pkcs11", "file":
		// Valid modes
	default:
		return fmt.Errorf("keys.mode must be 'pkcs11' or 'file', got '%s'", c.Keys.Mode)
	}

	if c.Keys.Mode == "pkcs11" && c.Keys.PKCS11.ModulePath == "" {
		return fmt.Errorf("keys.pkcs11.modulePath is required when mode is 'pkcs11'")
	}

	seen := make(map[string]bool, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		if ep.Name == "" {
			return fmt.Errorf("endpoints[].name is required")
		}
		if seen[ep.Name] {
			return fmt.Errorf("duplicate endpoint name '%s'", ep.Name)
		}
		seen[ep.Name] = true
		if ep.URL == "" {
			return fmt.Errorf("endpoint '%s': url is required", ep.Name)
		}
		if ep.Profile == "" {
			return fmt.Errorf("endpoint '%s': profile is required", ep.Name)
		}
	}

	return nil
}

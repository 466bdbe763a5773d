// Package config provides configuration loading and validation for the
// handoff worker.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "CRM_HANDOFF"

const (
	// StorageTypeMemory keeps all sync state in process memory.
	StorageTypeMemory = "memory"

	// StorageTypeDatabase persists sync state in PostgreSQL.
	StorageTypeDatabase = "database"
)

// DefaultScope is the OAuth scope requested during token acquisition.
const DefaultScope = "openid profile api email"

// DefaultRequestTimeout bounds every CRM API call.
const DefaultRequestTimeout = 30 * time.Second

// Option defines the interface for configuration loader options
type Option func(*loaderConfig) error

type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Integration holds the CRM connection and credential settings
	Integration IntegrationConfig `yaml:"integration"`

	// Export holds orchestration defaults applied to every candidate export
	Export ExportConfig `yaml:"export"`

	// Server configures the admin HTTP surface
	Server ServerConfig `yaml:"server,omitempty"`

	// Database configures the optional PostgreSQL state backend.
	// When absent, state is kept in memory.
	Database *DatabaseConfig `yaml:"database,omitempty"`
}

// IntegrationConfig defines the connection to one CRM tenant
type IntegrationConfig struct {
	// Name identifies this integration in sync state rows and logs
	Name string `yaml:"name"`

	// APIBaseURL is the CRM API root, e.g. "https://tenant.example.com"
	APIBaseURL string `yaml:"apiBaseUrl"`

	// ClientID is the OAuth client identifier
	ClientID string `yaml:"clientId"`

	// ClientSecretFile is the path to a file containing the OAuth client
	// secret. The file should contain only the secret with optional
	// trailing whitespace.
	ClientSecretFile string `yaml:"clientSecretFile,omitempty"`

	// Username and Password drive the resource-owner-password grant.
	// When omitted, the worker falls back to a stored refresh token.
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// Scope overrides the OAuth scope; defaults to DefaultScope
	Scope string `yaml:"scope,omitempty"`

	// RequestTimeout bounds each API call (e.g. "30s"); defaults to 30s
	RequestTimeout string `yaml:"requestTimeout,omitempty"`
}

// ExportConfig defines orchestration defaults for candidate exports
type ExportConfig struct {
	// JobID is the remote assignment candidates are linked to
	JobID string `yaml:"jobId,omitempty"`

	// OwnerID is the CRM user that owns exported candidates
	OwnerID string `yaml:"ownerId"`

	// DefaultCompanyID substitutes for employers that fail resolution
	DefaultCompanyID string `yaml:"defaultCompanyId"`

	// DefaultInstitutionID substitutes for institutions that fail resolution
	DefaultInstitutionID string `yaml:"defaultInstitutionId"`

	// CandidateStatusID is the status stamped on created candidates
	CandidateStatusID string `yaml:"candidateStatusId"`

	// LinkStatusID is the record status used when linking to a job; it is
	// validated against the CRM's AssignmentCandidateStatus settings
	LinkStatusID string `yaml:"linkStatusId"`

	// MaxWorkers caps parallelism of per-item loops (history, files)
	MaxWorkers int `yaml:"maxWorkers,omitempty"`

	// DocumentsDir is the root of the local candidate document tree
	DocumentsDir string `yaml:"documentsDir,omitempty"`
}

// ServerConfig defines the admin HTTP listener
type ServerConfig struct {
	Address string `yaml:"address,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password.
	// The file should contain only the password with optional trailing
	// whitespace.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from CRM_HANDOFF_DATABASE_PASSWORD environment variable
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable",
		EnvPrefix,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper
// password handling. The password is URL-escaped to handle special characters.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		url.QueryEscape(password),
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)

	return connString, nil
}

// GetClientSecret returns the OAuth client secret using the following priority:
// 1. Read from ClientSecretFile if specified
// 2. Read from CRM_HANDOFF_CLIENT_SECRET environment variable
func (i *IntegrationConfig) GetClientSecret() (string, error) {
	if i.ClientSecretFile != "" {
		cleanPath := filepath.Clean(i.ClientSecretFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read client secret from file %s: %w", i.ClientSecretFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envSecret := os.Getenv(EnvPrefix + "_CLIENT_SECRET"); envSecret != "" {
		return envSecret, nil
	}

	return "", fmt.Errorf(
		"no client secret configured: set clientSecretFile or %s_CLIENT_SECRET environment variable",
		EnvPrefix,
	)
}

// GetScope returns the configured OAuth scope, or DefaultScope.
func (i *IntegrationConfig) GetScope() string {
	if i.Scope == "" {
		return DefaultScope
	}
	return i.Scope
}

// GetRequestTimeout returns the per-call timeout, or DefaultRequestTimeout.
// Validation guarantees the configured value parses.
func (i *IntegrationConfig) GetRequestTimeout() time.Duration {
	if i.RequestTimeout == "" {
		return DefaultRequestTimeout
	}
	d, err := time.ParseDuration(i.RequestTimeout)
	if err != nil {
		return DefaultRequestTimeout
	}
	return d
}

// GetStorageType returns the configured state backend.
func (c *Config) GetStorageType() string {
	if c.Database != nil {
		return StorageTypeDatabase
	}
	return StorageTypeMemory
}

// GetAddress returns the admin listener address, defaulting to ":8080".
func (c *Config) GetAddress() string {
	if c.Server.Address == "" {
		return ":8080"
	}
	return c.Server.Address
}

// GetDocumentsDir returns the candidate document root, defaulting to
// "./data/documents".
func (e *ExportConfig) GetDocumentsDir() string {
	if e.DocumentsDir == "" {
		return "./data/documents"
	}
	return e.DocumentsDir
}

// GetMaxWorkers returns the per-item parallelism cap, defaulting to 4.
func (e *ExportConfig) GetMaxWorkers() int {
	if e.MaxWorkers <= 0 {
		return 4
	}
	return e.MaxWorkers
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Integration.validate(); err != nil {
		return err
	}

	if err := c.Export.validate(); err != nil {
		return err
	}

	if c.Database != nil {
		if err := c.Database.validate(); err != nil {
			return err
		}
	}

	return nil
}

func (i *IntegrationConfig) validate() error {
	if i.Name == "" {
		return fmt.Errorf("integration.name is required")
	}

	if i.APIBaseURL == "" {
		return fmt.Errorf("integration.apiBaseUrl is required")
	}
	parsed, err := url.Parse(i.APIBaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("integration.apiBaseUrl must be an absolute URL, got %q", i.APIBaseURL)
	}

	if i.ClientID == "" {
		return fmt.Errorf("integration.clientId is required")
	}

	// Username without password (or vice versa) is a misconfiguration;
	// both absent means refresh-token-only operation.
	if (i.Username == "") != (i.Password == "") {
		return fmt.Errorf("integration.username and integration.password must be set together")
	}

	if i.RequestTimeout != "" {
		if _, err := time.ParseDuration(i.RequestTimeout); err != nil {
			return fmt.Errorf("integration.requestTimeout must be a valid duration (e.g. '30s'): %w", err)
		}
	}

	return nil
}

func (e *ExportConfig) validate() error {
	if e.OwnerID == "" {
		return fmt.Errorf("export.ownerId is required")
	}
	if e.DefaultCompanyID == "" {
		return fmt.Errorf("export.defaultCompanyId is required")
	}
	if e.DefaultInstitutionID == "" {
		return fmt.Errorf("export.defaultInstitutionId is required")
	}
	if e.CandidateStatusID == "" {
		return fmt.Errorf("export.candidateStatusId is required")
	}
	if e.JobID != "" && e.LinkStatusID == "" {
		return fmt.Errorf("export.linkStatusId is required when export.jobId is set")
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if d.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if d.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	return nil
}

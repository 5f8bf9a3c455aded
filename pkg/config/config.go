package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Introspection modes for reading runtime parameter schemas.
const (
	IntrospectionPython  = "python"
	IntrospectionLiteral = "literal"
)

// DefaultPath is the configuration file read when present.
const DefaultPath = "sanity.yaml"

// Config holds all configuration for ekaya-sanity.
// Values come from the YAML file when it exists, with environment variables
// overriding it. Secrets (database password and URL) only come from the environment.
type Config struct {
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Data     DataConfig     `yaml:"data"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
}

// DataConfig configures the relational sanity engine.
type DataConfig struct {
	DataDir           string `yaml:"data_dir" env:"SANITY_DATA_DIR" env-default:"data"`
	EnumsFile         string `yaml:"enums_file" env:"SANITY_ENUMS_FILE" env-default:"enums.yaml"`
	RelationshipsFile string `yaml:"relationships_file" env:"SANITY_RELATIONSHIPS_FILE" env-default:"relationships.yaml"`
	// Workers bounds how many relationship descriptors or files are checked at once.
	Workers int `yaml:"workers" env:"SANITY_WORKERS" env-default:"4"`
}

// APIConfig configures the API/YAML reconciliation engine.
type APIConfig struct {
	InterfaceDirs []string `yaml:"interface_dirs" env:"SANITY_INTERFACE_DIRS" env-separator:"," env-default:"interface_1,interface_2,interface_3,interface_4,interface_5"`
	IgnoredFiles  []string `yaml:"ignored_files" env:"SANITY_IGNORED_FILES" env-separator:"," env-default:"__init__.py,policy.md"`
	YAMLFilename  string   `yaml:"yaml_filename" env:"SANITY_YAML_FILENAME" env-default:"get_set_APIs.yaml"`

	// Introspection is "python" (run the interpreter) or "literal" (evaluate get_info statically).
	Introspection    string        `yaml:"introspection" env:"SANITY_INTROSPECTION" env-default:"python"`
	PythonBinary     string        `yaml:"python_binary" env:"SANITY_PYTHON" env-default:"python3"`
	Timeout          time.Duration `yaml:"timeout" env:"SANITY_INTROSPECTION_TIMEOUT" env-default:"10s"`
	CacheSize        int           `yaml:"cache_size" env:"SANITY_CACHE_SIZE" env-default:"1024"`
	MockedAttributes []string      `yaml:"mocked_attributes" env:"SANITY_MOCKED_ATTRIBUTES" env-separator:"," env-default:"tau_bench.envs.tool.Tool"`
}

// DatabaseConfig holds PostgreSQL configuration. Persistence is disabled when
// neither DATABASE_URL nor a host is configured.
type DatabaseConfig struct {
	URL            string `yaml:"-" env:"DATABASE_URL"` // Secret - not in YAML
	Host           string `yaml:"host" env:"PGHOST"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_sanity"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// Load reads path when it exists, otherwise the environment alone, and validates the result.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if path != "" && fileExists(path) {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings no run could use.
func (c *Config) Validate() error {
	var errs []error
	switch c.API.Introspection {
	case IntrospectionPython, IntrospectionLiteral:
	default:
		errs = append(errs, fmt.Errorf("api.introspection must be %q or %q, got %q",
			IntrospectionPython, IntrospectionLiteral, c.API.Introspection))
	}
	if len(c.API.InterfaceDirs) == 0 {
		errs = append(errs, errors.New("api.interface_dirs must not be empty"))
	}
	if c.API.YAMLFilename == "" {
		errs = append(errs, errors.New("api.yaml_filename must not be empty"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.CacheSize < 0 {
		errs = append(errs, errors.New("api.cache_size must not be negative"))
	}
	if c.Data.Workers < 1 {
		errs = append(errs, errors.New("data.workers must be positive"))
	}
	return errors.Join(errs...)
}

// Enabled reports whether report persistence is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString() != ""
}

// ConnectionString returns DATABASE_URL when set, otherwise a URL built from
// the individual settings, or "" when no host is configured.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	if c.Host == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(resolveHost(c.Host), strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String()
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// inContainer reports whether the process runs inside a Docker container.
var inContainer = sync.OnceValue(func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// resolveHost maps a loopback database host to host.docker.internal inside a
// container so that a database running on the host machine stays reachable.
func resolveHost(host string) string {
	if (host == "localhost" || host == "127.0.0.1") && inContainer() {
		return "host.docker.internal"
	}
	return host
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"hermannm.dev/wrap"
)

// Graph locates the SPARQL endpoint and its credentials.
type Graph struct {
	Address  string `json:"address" yaml:"address" env:"NB_GRAPH_ADDRESS"`
	Port     int    `json:"port" yaml:"port" env:"NB_GRAPH_PORT"`
	Database string `json:"database" yaml:"database" env:"NB_GRAPH_DB"`
	Username string `json:"username" yaml:"username" env:"NB_GRAPH_USERNAME"`
	Password string `json:"password" yaml:"password" env:"NB_GRAPH_PASSWORD"`
	Timeout  int    `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"NB_GRAPH_TIMEOUT"` // seconds, 0 waits indefinitely
}

type Config struct {
	Engine         string   `json:"engine" yaml:"engine" env:"NB_GRAPH_ENGINE"`                                   // name of backend
	Graph          Graph    `json:"graph" yaml:"graph"`                                                           // backend location
	MinCellSize    int      `json:"min-cell-size" yaml:"min-cell-size" env:"NB_MIN_CELL_SIZE"`                    // smallest dataset returned
	ReturnAgg      bool     `json:"return-agg" yaml:"return-agg" env:"NB_RETURN_AGG"`                             // never return subject-level records
	AllowedOrigins string   `json:"allowed-origins" yaml:"allowed-origins" env:"NB_API_ALLOWED_ORIGINS"`          // space separated CORS origins
	BasePath       string   `json:"base-path,omitempty" yaml:"base-path,omitempty" env:"NB_NAPI_BASE_PATH"`       // path prefix when behind a proxy
	EnableAuth     bool     `json:"enable-auth,omitempty" yaml:"enable-auth,omitempty" env:"NB_ENABLE_AUTH"`      // require bearer ID tokens
	ClientID       string   `json:"client-id,omitempty" yaml:"client-id,omitempty" env:"NB_QUERY_CLIENT_ID"`      // expected token audience
	AuthIssuer     string   `json:"auth-issuer,omitempty" yaml:"auth-issuer,omitempty" env:"NB_AUTH_ISSUER"`      // expected token issuer
	AuthKeyFile    string   `json:"auth-key-file,omitempty" yaml:"auth-key-file,omitempty" env:"NB_AUTH_KEY_FILE"` // RS256 public key (PEM)
	AuthSecret     string   `json:"auth-secret,omitempty" yaml:"auth-secret,omitempty" env:"NB_AUTH_SECRET"`      // HS256 shared secret
	AuthBlocklist  string   `json:"auth-blocklist,omitempty" yaml:"auth-blocklist,omitempty" env:"NB_AUTH_BLOCKLIST_FILE"` // revoked tokens, one per line
	LoggerFile     string   `json:"log-file,omitempty" yaml:"log-file,omitempty" env:"NB_LOG_FILE"`               // location for access log file
	KafkaServers   []string `json:"kafka-servers,omitempty" yaml:"kafka-servers,omitempty" env:"NB_KAFKA_SERVERS"` // kafka servers for logging -- must build with kafka flag
	Hostname       string   `json:"hostname,omitempty" yaml:"hostname,omitempty" env:"NB_HOSTNAME"`               // name of server
	DevLogs        bool     `json:"dev-logs,omitempty" yaml:"dev-logs,omitempty" env:"NB_DEV_LOGS"`               // human readable process logs
	CertPEM        string   `json:"ssl-cert,omitempty" yaml:"ssl-cert,omitempty" env:"NB_SSL_CERT"`               // https certificate
	KeyPEM         string   `json:"ssl-key,omitempty" yaml:"ssl-key,omitempty" env:"NB_SSL_KEY"`                  // https private key
	AutoTLS        bool     `json:"auto-tls,omitempty" yaml:"auto-tls,omitempty" env:"NB_AUTO_TLS"`               // ACME certificates for Hostname
	Metrics        bool     `json:"metrics,omitempty" yaml:"metrics,omitempty" env:"NB_METRICS"`                  // serve /metrics
}

// Default is the configuration used when neither a file nor the environment
// sets a value.
func Default() Config {
	return Config{
		Engine: "sparql-http",
		Graph: Graph{
			Address:  "127.0.0.1",
			Port:     7200,
			Database: "repositories/my_db",
		},
		MinCellSize: 0,
		ReturnAgg:   true,
		Hostname:    "localhost",
	}
}

// LoadConfig reads the optional configuration file (JSON, or YAML for .yaml
// and .yml files) over the defaults, then applies NB_* environment
// variables.  A .env file in the working directory is loaded first when
// present.
func LoadConfig(configFile string) (Config, error) {
	config := Default()

	if configFile != "" {
		byteData, err := os.ReadFile(configFile)
		if err != nil {
			return Config{}, fmt.Errorf("%s cannot be read", configFile)
		}
		if err := decode(configFile, byteData, &config); err != nil {
			return Config{}, wrap.Errorf(err, "failed to parse %s", configFile)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, wrap.Error(err, "failed to load .env file")
	}
	if err := env.ParseWithOptions(&config, env.Options{}); err != nil {
		return Config{}, wrap.Error(err, "failed to read config from env")
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func decode(configFile string, data []byte, config *Config) error {
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, config)
	default:
		return json.Unmarshal(data, config)
	}
}

// Validate reports every missing or inconsistent setting.
func (config Config) Validate() error {
	var errs []error
	if config.Graph.Username == "" {
		errs = append(errs, errors.New("NB_GRAPH_USERNAME missing"))
	}
	if config.Graph.Password == "" {
		errs = append(errs, errors.New("NB_GRAPH_PASSWORD missing"))
	}
	if config.MinCellSize < 0 {
		errs = append(errs, errors.New("NB_MIN_CELL_SIZE must not be negative"))
	}
	if config.Graph.Timeout < 0 {
		errs = append(errs, errors.New("NB_GRAPH_TIMEOUT must not be negative"))
	}
	if config.EnableAuth {
		if config.ClientID == "" {
			errs = append(errs, errors.New("NB_QUERY_CLIENT_ID is required when NB_ENABLE_AUTH is set"))
		}
		if config.AuthKeyFile == "" && config.AuthSecret == "" {
			errs = append(errs, errors.New("NB_AUTH_KEY_FILE or NB_AUTH_SECRET is required when NB_ENABLE_AUTH is set"))
		}
	}
	if (config.CertPEM == "") != (config.KeyPEM == "") {
		errs = append(errs, errors.New("NB_SSL_CERT and NB_SSL_KEY must be set together"))
	}

	if len(errs) > 0 {
		return wrap.Errors("invalid configuration", errs...)
	}
	return nil
}

// Origins splits the allowed CORS origins.  An empty list means no
// cross-origin requests are allowed.
func (config Config) Origins() []string {
	return strings.Fields(config.AllowedOrigins)
}

// EngineConfig is the configuration map handed to the storage engine.
func (config Config) EngineConfig() map[string]interface{} {
	return map[string]interface{}{
		"server":   fmt.Sprintf("%s:%d", config.Graph.Address, config.Graph.Port),
		"database": config.Graph.Database,
		"user":     config.Graph.Username,
		"password": config.Graph.Password,
		"timeout":  config.Graph.Timeout,
	}
}

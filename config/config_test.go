package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigEnvOnly(t *testing.T) {
	t.Setenv("NB_GRAPH_USERNAME", "DBUSER")
	t.Setenv("NB_GRAPH_PASSWORD", "DBPASSWORD")
	t.Setenv("NB_GRAPH_ADDRESS", "graph")
	t.Setenv("NB_MIN_CELL_SIZE", "3")
	t.Setenv("NB_RETURN_AGG", "false")
	t.Setenv("NB_API_ALLOWED_ORIGINS", "https://query.neurobagel.org  http://localhost:3000")

	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sparql-http", config.Engine)
	assert.Equal(t, "graph", config.Graph.Address)
	assert.Equal(t, 7200, config.Graph.Port)
	assert.Equal(t, 3, config.MinCellSize)
	assert.False(t, config.ReturnAgg)
	assert.Equal(t, []string{"https://query.neurobagel.org", "http://localhost:3000"}, config.Origins())
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeFile(t, "napi.json", `{
		"graph": {"address": "db.internal", "port": 5820, "database": "query", "username": "admin", "password": "file"},
		"min-cell-size": 5,
		"log-file": "/var/log/napi.log"
	}`)
	t.Setenv("NB_GRAPH_PASSWORD", "env")

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", config.Graph.Address)
	assert.Equal(t, 5820, config.Graph.Port)
	assert.Equal(t, "env", config.Graph.Password)
	assert.Equal(t, 5, config.MinCellSize)
	assert.True(t, config.ReturnAgg, "unset values keep their defaults")
	assert.Equal(t, "/var/log/napi.log", config.LoggerFile)

	engine := config.EngineConfig()
	assert.Equal(t, "db.internal:5820", engine["server"])
	assert.Equal(t, "query", engine["database"])
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeFile(t, "napi.yaml", `
graph:
  address: graphdb
  username: admin
  password: secret
  timeout: 30
return-agg: false
kafka-servers: [kafka1:9092, kafka2:9092]
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "graphdb", config.Graph.Address)
	assert.Equal(t, 30, config.Graph.Timeout)
	assert.False(t, config.ReturnAgg)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, config.KafkaServers)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Graph.Username = "user"
	valid.Graph.Password = "pass"
	require.NoError(t, valid.Validate())

	tests := map[string]func(*Config){
		"missing credentials": func(c *Config) { c.Graph.Username = "" },
		"negative cell size":  func(c *Config) { c.MinCellSize = -1 },
		"auth without client": func(c *Config) { c.EnableAuth = true; c.AuthSecret = "s" },
		"auth without key":    func(c *Config) { c.EnableAuth = true; c.ClientID = "napi" },
		"cert without key":    func(c *Config) { c.CertPEM = "cert.pem" },
	}
	for name, mutate := range tests {
		config := valid
		mutate(&config)
		assert.Error(t, config.Validate(), name)
	}
}

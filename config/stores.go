package config

// loads all storage plugins
import (
	"github.com/neurobagel/napiHTTP/storage"
	_ "github.com/neurobagel/napiHTTP/storage/sparqlhttp"
)

// CreateStore creates a datastore from the engine specified by the configuration
func CreateStore(config Config) (storage.Store, error) {
	return storage.ParseConfig(config.Engine, config.EngineConfig())
}

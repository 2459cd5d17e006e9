package storage

var (
	availEngines map[string]Engine
)

// RegisterEngine associates a given storage backend with a name
func RegisterEngine(e Engine) {
	if availEngines == nil {
		availEngines = map[string]Engine{e.GetName(): e}
	} else {
		availEngines[e.GetName()] = e
	}
}

// Engine is a backend that can answer cohort queries
type Engine interface {
	GetName() string
	NewStore(interface{}) (Store, error)
}

// Engines lists the names of the registered engines.
func Engines() []string {
	names := make([]string, 0, len(availEngines))
	for name := range availEngines {
		names = append(names, name)
	}
	return names
}

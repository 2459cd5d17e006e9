/*
   Provides top-level interface for accessing the backend graph store.
*/

package storage

import (
	"errors"
	"fmt"
)

// Errors returned by store requests.  Callers classify failures with
// errors.Is.
var (
	// ErrUpstreamUnavailable means the store could not be reached or timed out.
	ErrUpstreamUnavailable = errors.New("graph store unavailable")
	// ErrUpstreamAuthFailure means the store rejected the configured credentials.
	ErrUpstreamAuthFailure = errors.New("graph store rejected credentials")
	// ErrUpstreamQuery means the store answered with an error or an
	// undecodable body.
	ErrUpstreamQuery = errors.New("graph store query failed")
)

// StatusError carries the HTTP status the store answered with.
type StatusError struct {
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Err, e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// ***** Main interfaces to the top-level database *****

// SimpleStore describes a store instance.
type SimpleStore interface {
	GetVersion() (string, error)
	GetDatabase() (string, string, error)
	GetDatasets() (map[string]interface{}, error)
	GetType() string
}

// Sparql executes read-only SPARQL queries.
type Sparql interface {
	SparqlRequest(query string) (SparqlResult, error)
}

// Store provides the interface to access the graph database
type Store interface {
	SimpleStore
	Sparql
}

// ParseConfig finds the appropriate storage engine from the configuration and initializes it
func ParseConfig(engineName string, data interface{}) (Store, error) {
	if availEngines == nil {
		return nil, fmt.Errorf("no engines loaded")
	}

	engine, found := availEngines[engineName]
	if !found {
		return nil, fmt.Errorf("engine %s not found", engineName)
	}
	return engine.NewStore(data)
}

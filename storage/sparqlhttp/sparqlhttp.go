package sparqlhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"

	"github.com/neurobagel/napiHTTP/sparql"
	"github.com/neurobagel/napiHTTP/storage"
)

func init() {
	version, _ := semver.Make(VERSION)
	e := Engine{NAME, version}
	storage.RegisterEngine(e)
}

const (
	// VERSION of the graph data model that is supported
	VERSION = "1.0.0"
	NAME    = "sparql-http"

	sparqlQueryType   = "application/sparql-query"
	sparqlResultsType = "application/sparql-results+json"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "napi",
	Subsystem: "graph",
	Name:      "request_duration_seconds",
	Help:      "Duration of SPARQL requests to the graph store.",
	Buckets:   prometheus.DefBuckets,
}, []string{"outcome"})

type Engine struct {
	name    string
	version semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

// NewStore creates a store that posts SPARQL queries to a GraphDB or
// Stardog style HTTP endpoint.  The configuration requires the server
// (host:port), the database path and the basic auth credentials.  An
// optional "timeout" in seconds bounds each request; by default requests
// wait for the store indefinitely.
func (e Engine) NewStore(data interface{}) (storage.Store, error) {
	datamap, ok := data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("incorrect configuration for %s", NAME)
	}
	user, ok := datamap["user"].(string)
	if !ok {
		return nil, fmt.Errorf("user not specified for %s", NAME)
	}
	pass, ok := datamap["password"].(string)
	if !ok {
		return nil, fmt.Errorf("password not specified for %s", NAME)
	}
	server, ok := datamap["server"].(string)
	if !ok || server == "" {
		return nil, fmt.Errorf("server not specified for %s", NAME)
	}
	database, _ := datamap["database"].(string)

	var timeout time.Duration
	switch t := datamap["timeout"].(type) {
	case int:
		timeout = time.Duration(t) * time.Second
	case float64:
		timeout = time.Duration(t * float64(time.Second))
	}

	url := server
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	if database != "" {
		url = strings.TrimRight(url, "/") + "/" + strings.TrimLeft(database, "/")
	}

	return &Store{
		server:  server,
		version: e.version,
		url:     url,
		user:    user,
		pass:    pass,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// Store is a SPARQL endpoint reachable over HTTP with basic auth
type Store struct {
	server  string
	version semver.Version
	url     string
	user    string
	pass    string
	client  *http.Client
}

// sparqlResponse is the SPARQL 1.1 query results JSON format
type sparqlResponse struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]storage.Binding `json:"bindings"`
	} `json:"results"`
}

// SparqlRequest sends one query to the store.  There are no retries.
func (store *Store) SparqlRequest(query string) (storage.SparqlResult, error) {
	start := time.Now()
	res, err := store.makeRequest(query)
	requestDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		return storage.SparqlResult{}, err
	}
	res.Debug = query
	return res, nil
}

func (store *Store) makeRequest(query string) (storage.SparqlResult, error) {
	var result storage.SparqlResult

	req, err := http.NewRequest(http.MethodPost, store.url, strings.NewReader(query))
	if err != nil {
		return result, wrap.Error(err, "failed to create graph store request")
	}
	req.Header.Set("Content-Type", sparqlQueryType)
	req.Header.Set("Accept", sparqlResultsType)
	req.SetBasicAuth(store.user, store.pass)

	res, err := store.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("%w: %w", storage.ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden:
		return result, &storage.StatusError{Status: res.StatusCode, Err: storage.ErrUpstreamAuthFailure}
	case res.StatusCode == http.StatusServiceUnavailable || res.StatusCode == http.StatusGatewayTimeout:
		return result, fmt.Errorf("%w (status %d)", storage.ErrUpstreamUnavailable, res.StatusCode)
	case res.StatusCode < 200 || res.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return result, fmt.Errorf("%w (status %d): %s", storage.ErrUpstreamQuery, res.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded sparqlResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return result, fmt.Errorf("%w: error decoding json: %w", storage.ErrUpstreamQuery, err)
	}

	result.Vars = decoded.Head.Vars
	result.Bindings = decoded.Results.Bindings
	if result.Bindings == nil {
		result.Bindings = []map[string]storage.Binding{}
	}
	log.Debugf("graph store returned %d rows", len(result.Bindings))
	return result, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, storage.ErrUpstreamUnavailable):
		return "unavailable"
	case errors.Is(err, storage.ErrUpstreamAuthFailure):
		return "unauthorized"
	default:
		return "error"
	}
}

// GetDatabase returns database information
func (store *Store) GetDatabase() (loc string, desc string, err error) {
	return store.url, NAME, nil
}

// GetVersion returns the version of the graph data model
func (store *Store) GetVersion() (string, error) {
	return store.version.String(), nil
}

func (store *Store) GetType() string {
	return "sparql"
}

// GetDatasets returns a storage.DatasetInfo for each dataset in the graph,
// keyed by name
func (store *Store) GetDatasets() (map[string]interface{}, error) {
	metadata, err := store.SparqlRequest(sparql.DatasetsQuery(0))
	if err != nil {
		return nil, err
	}

	res := make(map[string]interface{}, metadata.Len())
	for row := range metadata.Bindings {
		name, _ := metadata.Value(row, sparql.VarDatasetName)
		uuid, _ := metadata.Value(row, sparql.VarDatasetUUID)
		portal, _ := metadata.Value(row, sparql.VarDatasetPortalURI)

		info := storage.DatasetInfo{UUID: uuid, PortalURI: portal}
		if count, ok := metadata.Value(row, sparql.VarNumSubject); ok {
			if info.TotalSubjects, err = strconv.Atoi(count); err != nil {
				return nil, fmt.Errorf("%w: malformed subject count '%s'", storage.ErrUpstreamQuery, count)
			}
		}
		res[name] = info
	}
	return res, nil
}

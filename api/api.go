package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/neurobagel/napiHTTP/sparql"
	"github.com/neurobagel/napiHTTP/storage"
	"github.com/neurobagel/napiHTTP/utils"
)

const APIVERSION = "1.1.0"

type setupAPI func(*CohortAPI) error

var (
	availAPIs map[string]setupAPI
)

// RegisterAPI loads api for specified names
func RegisterAPI(name string, f setupAPI) {
	if availAPIs == nil {
		availAPIs = map[string]setupAPI{name: f}
	} else {
		availAPIs[name] = f
	}
}

type ConnectionType int

const (
	GET ConnectionType = iota
	POST
)

// Options are the server-wide defaults applied to cohort requests.
type Options struct {
	MinCellSize int  // datasets with fewer matching subjects are dropped
	ReturnAgg   bool // when true, subject-level records are never returned
}

// CohortAPI is handed to every registered API when routes are set up.
type CohortAPI struct {
	Store              storage.Store
	Options            Options
	SupportedEndpoints map[string]bool
	e                  *echo.Group
}

func newCohortAPI(store storage.Store, opts Options, e *echo.Group) *CohortAPI {
	return &CohortAPI{store, opts, make(map[string]bool), e}
}

// ErrorInfo is the body of every error response.
type ErrorInfo struct {
	Error string `json:"error"`
}

// CheckVersion rejects requests made against an incompatible /v<version>
// prefix.
func CheckVersion(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ver := c.Param("ver"); ver != "" {
			if !utils.CheckSubsetVersion(ver, APIVERSION) {
				return c.JSON(http.StatusBadRequest, ErrorInfo{Error: "Incompatible API version"})
			}
		}
		return next(c)
	}
}

// SetRoute sets a handler function to a given prefix.  It provides routes
// to a versioned and versionless API.
func (c *CohortAPI) SetRoute(connType ConnectionType, prefix string, route echo.HandlerFunc) {
	switch connType {
	case GET:
		c.e.GET(prefix, route)
		c.e.GET("/v:ver"+prefix, CheckVersion(route))
	case POST:
		c.e.POST(prefix, route)
		c.e.POST("/v:ver"+prefix, CheckVersion(route))
	}
}

// SetupRoutes intializes all the loaded API.
func SetupRoutes(e *echo.Echo, eg *echo.Group, store storage.Store, opts Options) error {
	apiObj := newCohortAPI(store, opts, eg)

	for _, f := range availAPIs {
		if err := f(apiObj); err != nil {
			return err
		}
	}

	eg.GET("/version", apiObj.getAPIVersion)
	eg.GET("/available", func(c echo.Context) error {
		return c.JSON(http.StatusOK, e.Routes())
	})
	eg.GET("/health", apiObj.getHealth)

	return nil
}

type apiVersion struct {
	Version string
}

func (api *CohortAPI) getAPIVersion(c echo.Context) error {
	vers := apiVersion{APIVERSION}
	return c.JSON(http.StatusOK, vers)
}

type healthStatus struct {
	Status string `json:"status"`
}

func (api *CohortAPI) getHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthStatus{"ok"})
}

// ErrorStatus classifies an error from the query path into an HTTP status.
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, sparql.ErrInvalidFilterCombination):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrUpstreamAuthFailure):
		var statusErr *storage.StatusError
		if errors.As(err, &statusErr) && statusErr.Status >= 400 && statusErr.Status < 500 {
			return statusErr.Status
		}
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// ErrorResponse writes err as an ErrorInfo body with the status from
// ErrorStatus.  Store credential failures get a fixed message so the
// upstream response is never echoed to the client.
func ErrorResponse(c echo.Context, err error) error {
	msg := err.Error()
	if errors.Is(err, storage.ErrUpstreamAuthFailure) {
		msg = "the graph store rejected the configured credentials; check NB_GRAPH_USERNAME and NB_GRAPH_PASSWORD"
	}
	return c.JSON(ErrorStatus(err), ErrorInfo{Error: msg})
}

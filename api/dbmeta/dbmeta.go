package dbmeta

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"hermannm.dev/devlog/log"

	"github.com/neurobagel/napiHTTP/api"
	"github.com/neurobagel/napiHTTP/storage"
)

func init() {
	api.RegisterAPI(PREFIX, setupAPI)
}

const PREFIX = "/dbmeta"

type storeAPI struct {
	Store       StorageAPI
	MinCellSize int
}

// setupAPI loads all the endpoints for dbmeta
func setupAPI(mainapi *api.CohortAPI) error {
	if simpleEngine, ok := mainapi.Store.(StorageAPI); ok {
		q := &storeAPI{simpleEngine, mainapi.Options.MinCellSize}

		// version endpoint
		endpoint := "version"
		mainapi.SetRoute(api.GET, PREFIX+"/"+endpoint, q.getVersion)
		mainapi.SupportedEndpoints[endpoint] = true

		// database endpoint
		endpoint = "database"
		mainapi.SetRoute(api.GET, PREFIX+"/"+endpoint, q.getDatabase)
		mainapi.SupportedEndpoints[endpoint] = true

		// datasets endpoint
		endpoint = "datasets"
		mainapi.SetRoute(api.GET, PREFIX+"/"+endpoint, q.getDatasets)
		mainapi.SupportedEndpoints[PREFIX+"/"+endpoint] = true
	} else {
		// meta interface is required by default
		return fmt.Errorf("metadata interface is not available")
	}

	return nil
}

type dbVersion struct {
	Version string
}

// getVersion returns the version of the store adapter
func (sa storeAPI) getVersion(c echo.Context) error {
	// swagger:operation GET /dbmeta/version dbmeta getVersion
	//
	// Gets version of the graph store adapter
	//
	// ---
	// responses:
	//   200:
	//     description: "successful operation"
	//     schema:
	//       type: "object"
	//       properties:
	//         Version:
	//           type: "string"
	// security:
	// - Bearer: []

	if data, err := sa.Store.GetVersion(); err != nil {
		return api.ErrorResponse(c, err)
	} else {
		data := &dbVersion{data}
		return c.JSON(http.StatusOK, data)
	}
}

type dbDatabase struct {
	Location    string
	Description string
}

// getDatabase returns information on the graph store
func (sa storeAPI) getDatabase(c echo.Context) error {
	// swagger:operation GET /dbmeta/database dbmeta getDatabase
	//
	// Graph store information
	//
	// Returns the query endpoint and a description of the backend.
	//
	// ---
	// responses:
	//   200:
	//     description: "successful operation"
	//     schema:
	//       type: "object"
	//       properties:
	//         Location:
	//           type: "string"
	//           description: "SPARQL endpoint"
	//         Description:
	//           type: "string"
	//           description: "Information about the backend"
	// security:
	// - Bearer: []

	if loc, desc, err := sa.Store.GetDatabase(); err != nil {
		return api.ErrorResponse(c, err)
	} else {
		data := &dbDatabase{loc, desc}
		return c.JSON(http.StatusOK, data)
	}
}

// getDatasets returns the datasets in the graph
func (sa storeAPI) getDatasets(c echo.Context) error {
	// swagger:operation GET /dbmeta/datasets dbmeta getDatasets
	//
	// Gets datasets in the graph
	//
	// Datasets with fewer subjects than the minimum cell size are hidden.
	//
	// ---
	// responses:
	//   200:
	//     description: "successful operation"
	//     schema:
	//       type: "object"
	//       properties:
	//         uuid:
	//           type: "string"
	//           description: "dataset IRI"
	//         "portal-uri":
	//           type: "string"
	//           description: "dataset landing page"
	//         "total-subjects":
	//           type: "integer"
	//           description: "number of subjects in the dataset"
	// security:
	// - Bearer: []

	data, err := sa.Store.GetDatasets()
	if err != nil {
		log.ErrorCause(err, "dataset listing failed")
		return api.ErrorResponse(c, err)
	}

	visible := make(map[string]interface{}, len(data))
	for name, entry := range data {
		if info, ok := entry.(storage.DatasetInfo); ok && sa.MinCellSize > 1 && info.TotalSubjects < sa.MinCellSize {
			continue
		}
		visible[name] = entry
	}
	return c.JSON(http.StatusOK, visible)
}

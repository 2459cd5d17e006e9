package query

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/labstack/echo/v4"
	"hermannm.dev/devlog/log"

	"github.com/neurobagel/napiHTTP/api"
	"github.com/neurobagel/napiHTTP/cohort"
	"github.com/neurobagel/napiHTTP/sparql"
	"github.com/neurobagel/napiHTTP/storage"
)

func init() {
	api.RegisterAPI("query", setupAPI)
}

const formatArrow = "arrow"

var writeIPC = cohort.WriteIPC

type queryAPI struct {
	Store   storage.Sparql
	Options api.Options
}

// setupAPI loads the cohort query endpoints
func setupAPI(mainapi *api.CohortAPI) error {
	q := &queryAPI{mainapi.Store, mainapi.Options}

	endpoint := "query"
	mainapi.SetRoute(api.GET, "/"+endpoint, q.getQuery)
	mainapi.SupportedEndpoints[endpoint] = true

	endpoint = "subjects"
	mainapi.SetRoute(api.POST, "/"+endpoint, q.postSubjects)
	mainapi.SupportedEndpoints[endpoint] = true

	endpoint = "datasets"
	mainapi.SetRoute(api.GET, "/"+endpoint, q.getDatasets)
	mainapi.SupportedEndpoints[endpoint] = true

	return nil
}

// getQuery runs a cohort query from query string filters
func (qa queryAPI) getQuery(c echo.Context) error {
	// swagger:operation GET /query query getQuery
	//
	// Find datasets and subjects matching a set of filters
	//
	// Every filter is optional; omitted filters do not restrict the cohort.
	// Datasets with fewer matching subjects than the configured minimum
	// cell size are omitted from the response.
	//
	// ---
	// parameters:
	// - {in: query, name: min_age, type: number}
	// - {in: query, name: max_age, type: number}
	// - {in: query, name: sex, type: string, example: "snomed:248152002"}
	// - {in: query, name: diagnosis, type: string, example: "snomed:49049000"}
	// - {in: query, name: is_control, type: boolean}
	// - {in: query, name: min_num_imaging_sessions, type: integer}
	// - {in: query, name: min_num_phenotypic_sessions, type: integer}
	// - {in: query, name: assessment, type: string}
	// - {in: query, name: image_modal, type: string, example: "nidm:T1Weighted"}
	// - {in: query, name: pipeline_name, type: string, example: "np:fmriprep"}
	// - {in: query, name: pipeline_version, type: string, example: "23.1.3"}
	// - {in: query, name: return_agg, type: boolean}
	// - {in: query, name: format, type: string, enum: [json, arrow]}
	// responses:
	//   200:
	//     description: "matching datasets"
	//   401:
	//     description: "graph store rejected the configured credentials (store status passed through)"
	//   422:
	//     description: "invalid filter combination"
	//   502:
	//     description: "graph store failure"
	//   503:
	//     description: "graph store unavailable"
	// security:
	// - Bearer: []

	params, err := FilterParamsFromQuery(c)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return qa.runCohort(c, params, false)
}

// postSubjects runs a cohort query from a JSON body, optionally restricted
// to a list of datasets
func (qa queryAPI) postSubjects(c echo.Context) error {
	// swagger:operation POST /subjects query postSubjects
	//
	// Find subjects matching a set of filters within chosen datasets
	//
	// The body carries the same filters as GET /query plus an optional
	// dataset_uuids list.
	//
	// ---
	// parameters:
	// - in: "body"
	//   name: "body"
	//   schema:
	//     type: "object"
	//     properties:
	//       dataset_uuids:
	//         type: "array"
	//         items:
	//           type: "string"
	//         example: ["http://neurobagel.org/vocab/qpn"]
	// responses:
	//   200:
	//     description: "matching datasets"
	// security:
	// - Bearer: []

	var params sparql.FilterParams
	if err := c.Bind(&params); err != nil {
		return c.JSON(http.StatusBadRequest, api.ErrorInfo{Error: "request object not formatted correctly"})
	}
	return qa.runCohort(c, params, false)
}

// getDatasets returns dataset-level summaries only
func (qa queryAPI) getDatasets(c echo.Context) error {
	// swagger:operation GET /datasets query getDatasets
	//
	// Find datasets matching a set of filters
	//
	// Accepts the same filters as GET /query but never returns subject
	// records.
	//
	// ---
	// responses:
	//   200:
	//     description: "matching datasets"
	// security:
	// - Bearer: []

	params, err := FilterParamsFromQuery(c)
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	return qa.runCohort(c, params, true)
}

func (qa queryAPI) runCohort(c echo.Context, params sparql.FilterParams, forceAgg bool) error {
	fs, err := sparql.NewFilterSet(params)
	if err != nil {
		return api.ErrorResponse(c, err)
	}

	query := sparql.Build(fs)

	// set query for debugging
	c.Set("debug", query)

	res, err := qa.Store.SparqlRequest(query)
	if err != nil {
		log.ErrorCause(err, "cohort query failed")
		return api.ErrorResponse(c, err)
	}

	rows, err := cohort.RowsFromResult(res)
	if err != nil {
		log.ErrorCause(err, "cohort query returned an unexpected result")
		return api.ErrorResponse(c, err)
	}

	datasets := cohort.ApplyDisclosureControl(cohort.Aggregate(rows), qa.Options.MinCellSize)
	aggregateMode := forceAgg || qa.Options.ReturnAgg || fs.ReturnAgg

	if c.QueryParam("format") == formatArrow {
		return writeArrow(c, datasets, aggregateMode)
	}
	return c.JSON(http.StatusOK, cohort.Format(datasets, aggregateMode))
}

func writeArrow(c echo.Context, datasets []*cohort.DatasetRecord, aggregateMode bool) error {
	var record arrow.Record
	if aggregateMode {
		record = cohort.DatasetTable(cohort.Format(datasets, true), nil)
	} else {
		record = cohort.SessionTable(datasets, nil)
	}
	defer record.Release()

	// encode fully before committing the response so failures still get a status
	var buf bytes.Buffer
	if err := writeIPC(&buf, record); err != nil {
		log.ErrorCause(err, "failed to encode arrow response")
		return c.JSON(http.StatusInternalServerError, api.ErrorInfo{Error: "failed to encode arrow response"})
	}
	return c.Blob(http.StatusOK, cohort.ArrowStreamType, buf.Bytes())
}

// FilterParamsFromQuery reads cohort filters from the query string.  Values
// that do not parse as their declared type are reported as invalid filters.
func FilterParamsFromQuery(c echo.Context) (sparql.FilterParams, error) {
	params := sparql.FilterParams{
		Sex:             c.QueryParam("sex"),
		Diagnosis:       c.QueryParam("diagnosis"),
		Assessment:      c.QueryParam("assessment"),
		ImageModal:      c.QueryParam("image_modal"),
		PipelineName:    c.QueryParam("pipeline_name"),
		PipelineVersion: c.QueryParam("pipeline_version"),
	}

	var errs []error
	params.MinAge = parseOptional(c, "min_age", parseFloat, &errs)
	params.MaxAge = parseOptional(c, "max_age", parseFloat, &errs)
	params.IsControl = parseOptional(c, "is_control", strconv.ParseBool, &errs)
	params.MinNumImagingSessions = parseOptional(c, "min_num_imaging_sessions", strconv.Atoi, &errs)
	params.MinNumPhenotypicSessions = parseOptional(c, "min_num_phenotypic_sessions", strconv.Atoi, &errs)
	params.ReturnAgg = parseOptional(c, "return_agg", strconv.ParseBool, &errs)
	if uuids := c.QueryParams()["dataset_uuids"]; len(uuids) > 0 {
		params.DatasetUUIDs = uuids
	}

	if len(errs) > 0 {
		return params, errors.Join(errs...)
	}
	return params, nil
}

func parseFloat(raw string) (float64, error) {
	return strconv.ParseFloat(raw, 64)
}

func parseOptional[T any](c echo.Context, name string, parse func(string) (T, error), errs *[]error) *T {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil
	}
	v, err := parse(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%w: '%s' has an invalid value '%s'", sparql.ErrInvalidFilterCombination, name, raw))
		return nil
	}
	return &v
}

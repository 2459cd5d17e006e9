package attributes

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"hermannm.dev/devlog/log"
	"hermannm.dev/wrap"

	"github.com/neurobagel/napiHTTP/api"
	"github.com/neurobagel/napiHTTP/sparql"
	"github.com/neurobagel/napiHTTP/storage"
	"github.com/neurobagel/napiHTTP/utils"
	"github.com/neurobagel/napiHTTP/vocab"
)

func init() {
	api.RegisterAPI(PREFIX, setupAPI)
}

const PREFIX = "/attributes"

type vocabAPI struct {
	Store storage.Sparql
}

// setupAPI loads the vocabulary endpoints
func setupAPI(mainapi *api.CohortAPI) error {
	q := &vocabAPI{mainapi.Store}

	mainapi.SetRoute(api.GET, PREFIX, q.getAttributes)
	mainapi.SetRoute(api.GET, PREFIX+"/:category", q.getTerms)
	mainapi.SetRoute(api.GET, PREFIX+"/:category/vocab", q.getVocab)
	mainapi.SupportedEndpoints["attributes"] = true

	mainapi.SetRoute(api.GET, "/pipelines", q.getPipelines)
	mainapi.SetRoute(api.GET, "/pipelines/:name/versions", q.getPipelineVersions)
	mainapi.SupportedEndpoints["pipelines"] = true

	return nil
}

// getAttributes lists the controlled-term attributes known to the graph
func (va vocabAPI) getAttributes(c echo.Context) error {
	// swagger:operation GET /attributes attributes getAttributes
	//
	// Lists controlled-term attributes
	//
	// ---
	// responses:
	//   200:
	//     description: "successful operation"
	//     schema:
	//       type: "array"
	//       items:
	//         type: "string"
	//       example: ["nb:Assessment", "nb:Diagnosis"]
	// security:
	// - Bearer: []

	query := sparql.AttributesQuery()
	c.Set("debug", query)

	res, err := va.Store.SparqlRequest(query)
	if err != nil {
		log.ErrorCause(err, "attribute lookup failed")
		return api.ErrorResponse(c, err)
	}

	attributes := make([]string, 0, res.Len())
	for row := range res.Bindings {
		if attribute, ok := res.Value(row, sparql.VarAttribute); ok {
			attributes = append(attributes, vocab.CompactIRI(attribute))
		}
	}
	return c.JSON(http.StatusOK, attributes)
}

// getTerms lists the terms of one category that occur in the graph
func (va vocabAPI) getTerms(c echo.Context) error {
	// swagger:operation GET /attributes/{category} attributes getTerms
	//
	// Lists the terms of an attribute used by the datasets in the graph
	//
	// The category is given as a CURIE (nb:Diagnosis) or as its short
	// name (diagnosis).
	//
	// ---
	// parameters:
	// - in: "path"
	//   name: "category"
	//   type: "string"
	//   required: true
	//   example: "nb:Assessment"
	// responses:
	//   200:
	//     description: "terms keyed by category"
	//   404:
	//     description: "unknown category"
	// security:
	// - Bearer: []

	category, err := vocab.ParseCategory(c.Param("category"))
	if err != nil {
		return c.JSON(http.StatusNotFound, api.ErrorInfo{Error: err.Error()})
	}

	query := sparql.TermsQuery(category)
	c.Set("debug", query)

	res, err := va.Store.SparqlRequest(query)
	if err != nil {
		log.ErrorCause(err, "term lookup failed", slog.String("category", category.String()))
		return api.ErrorResponse(c, err)
	}

	labels := make(map[string]string)
	for _, term := range vocab.StaticTerms(category) {
		labels[term.ID] = term.Label
	}

	terms := make([]vocab.LabeledTerm, 0, res.Len())
	for row := range res.Bindings {
		iri, ok := res.Value(row, sparql.VarTerm)
		if !ok {
			continue
		}
		id := vocab.CompactIRI(iri)
		terms = append(terms, vocab.LabeledTerm{ID: id, Label: labels[id]})
	}
	return c.JSON(http.StatusOK, map[string][]vocab.LabeledTerm{category.String(): terms})
}

// getVocab returns the fixed vocabulary of a closed category
func (va vocabAPI) getVocab(c echo.Context) error {
	// swagger:operation GET /attributes/{category}/vocab attributes getVocab
	//
	// Lists every term a closed attribute can take
	//
	// Only sex and image modality have a fixed vocabulary; open
	// categories answer 404.
	//
	// ---
	// responses:
	//   200:
	//     description: "successful operation"
	// security:
	// - Bearer: []

	category, err := vocab.ParseCategory(c.Param("category"))
	if err != nil {
		return c.JSON(http.StatusNotFound, api.ErrorInfo{Error: err.Error()})
	}
	terms := vocab.StaticTerms(category)
	if terms == nil {
		return c.JSON(http.StatusNotFound, api.ErrorInfo{Error: category.String() + " has no fixed vocabulary"})
	}
	return c.JSON(http.StatusOK, terms)
}

// getPipelines maps every pipeline in the graph to its recorded versions
func (va vocabAPI) getPipelines(c echo.Context) error {
	// swagger:operation GET /pipelines attributes getPipelines
	//
	// Lists processing pipelines and their versions
	//
	// ---
	// responses:
	//   200:
	//     description: "versions keyed by pipeline, newest first"
	//     schema:
	//       type: "object"
	//       example: {"np:fmriprep": ["23.1.3", "20.2.7"]}
	// security:
	// - Bearer: []

	pipelines, err := va.pipelineVersions(c, sparql.PipelinesQuery())
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	for name, versions := range pipelines {
		pipelines[name] = utils.SortVersions(versions)
	}
	return c.JSON(http.StatusOK, pipelines)
}

// getPipelineVersions lists the versions of one pipeline
func (va vocabAPI) getPipelineVersions(c echo.Context) error {
	// swagger:operation GET /pipelines/{name}/versions attributes getPipelineVersions
	//
	// Lists the recorded versions of a pipeline, newest first
	//
	// ---
	// parameters:
	// - in: "path"
	//   name: "name"
	//   type: "string"
	//   required: true
	//   example: "np:fmriprep"
	// responses:
	//   200:
	//     description: "successful operation"
	//   422:
	//     description: "pipeline name is not a pipeline term"
	// security:
	// - Bearer: []

	name, err := vocab.ValidateTerm(vocab.CategoryPipeline, c.Param("name"))
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, api.ErrorInfo{Error: err.Error()})
	}

	pipelines, err := va.pipelineVersions(c, sparql.PipelineVersionsQuery(name))
	if err != nil {
		return api.ErrorResponse(c, err)
	}
	versions := pipelines[name.String()]
	if versions == nil {
		versions = []string{}
	}
	return c.JSON(http.StatusOK, utils.SortVersions(versions))
}

func (va vocabAPI) pipelineVersions(c echo.Context, query string) (map[string][]string, error) {
	c.Set("debug", query)

	res, err := va.Store.SparqlRequest(query)
	if err != nil {
		log.ErrorCause(err, "pipeline lookup failed")
		return nil, err
	}

	pipelines := make(map[string][]string)
	for row := range res.Bindings {
		iri, ok := res.Value(row, sparql.VarPipelineName)
		if !ok {
			return nil, wrap.Error(storage.ErrUpstreamQuery, "pipeline row without a name")
		}
		name := vocab.CompactIRI(iri)
		if _, seen := pipelines[name]; !seen {
			pipelines[name] = []string{}
		}
		if version, ok := res.Value(row, sparql.VarPipelineVersion); ok && version != "" {
			pipelines[name] = append(pipelines[name], version)
		}
	}
	return pipelines, nil
}

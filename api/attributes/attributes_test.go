package attributes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurobagel/napiHTTP/api"
	"github.com/neurobagel/napiHTTP/sparql"
	"github.com/neurobagel/napiHTTP/storage"
	"github.com/neurobagel/napiHTTP/vocab"
)

type mockSparql struct {
	result  storage.SparqlResult
	err     error
	queries []string
}

func (m *mockSparql) SparqlRequest(query string) (storage.SparqlResult, error) {
	m.queries = append(m.queries, query)
	return m.result, m.err
}

func bindings(variable string, values ...string) storage.SparqlResult {
	res := storage.SparqlResult{Vars: []string{variable}}
	for _, v := range values {
		res.Bindings = append(res.Bindings, map[string]storage.Binding{variable: {Type: "uri", Value: v}})
	}
	return res
}

func serve(t *testing.T, store *mockSparql, path string, names []string, values []string, handler func(vocabAPI, echo.Context) error) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), rec)
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	require.NoError(t, handler(vocabAPI{store}, c))
	return rec
}

func TestGetAttributes(t *testing.T) {
	store := &mockSparql{result: bindings(sparql.VarAttribute,
		"http://neurobagel.org/vocab/Assessment",
		"http://neurobagel.org/vocab/Diagnosis",
	)}
	rec := serve(t, store, "/attributes", nil, nil, vocabAPI.getAttributes)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["nb:Assessment", "nb:Diagnosis"]`, rec.Body.String())
}

func TestGetTerms(t *testing.T) {
	store := &mockSparql{result: bindings(sparql.VarTerm,
		"http://purl.bioontology.org/ontology/SNOMEDCT/248152002",
		"http://purl.bioontology.org/ontology/SNOMEDCT/248153007",
	)}
	rec := serve(t, store, "/attributes/sex", []string{"category"}, []string{"sex"}, vocabAPI.getTerms)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.queries, 1)
	assert.Contains(t, store.queries[0], "nb:hasSex")

	var resp map[string][]vocab.LabeledTerm
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []vocab.LabeledTerm{
		{ID: "snomed:248152002", Label: "female"},
		{ID: "snomed:248153007", Label: "male"},
	}, resp["nb:Sex"])
}

func TestGetTermsUnknownCategory(t *testing.T) {
	store := &mockSparql{}
	rec := serve(t, store, "/attributes/nb:Height", []string{"category"}, []string{"nb:Height"}, vocabAPI.getTerms)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, store.queries)
}

func TestGetTermsUpstreamFailure(t *testing.T) {
	store := &mockSparql{err: storage.ErrUpstreamUnavailable}
	rec := serve(t, store, "/attributes/diagnosis", []string{"category"}, []string{"diagnosis"}, vocabAPI.getTerms)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetVocab(t *testing.T) {
	rec := serve(t, &mockSparql{}, "/attributes/nb:Image/vocab", []string{"category"}, []string{"nb:Image"}, vocabAPI.getVocab)
	require.Equal(t, http.StatusOK, rec.Code)

	var terms []vocab.LabeledTerm
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &terms))
	assert.Contains(t, terms, vocab.LabeledTerm{ID: "nidm:T1Weighted", Label: vocab.ModalityT1Weighted.Label()})

	rec = serve(t, &mockSparql{}, "/attributes/diagnosis/vocab", []string{"category"}, []string{"diagnosis"}, vocabAPI.getVocab)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func pipelineResult(pairs ...string) storage.SparqlResult {
	res := storage.SparqlResult{Vars: []string{sparql.VarPipelineName, sparql.VarPipelineVersion}}
	for i := 0; i+1 < len(pairs); i += 2 {
		row := map[string]storage.Binding{
			sparql.VarPipelineName: {Type: "uri", Value: pairs[i]},
		}
		if pairs[i+1] != "" {
			row[sparql.VarPipelineVersion] = storage.Binding{Type: "literal", Value: pairs[i+1]}
		}
		res.Bindings = append(res.Bindings, row)
	}
	return res
}

const np = "https://github.com/nipoppy/pipeline-catalog/tree/main/processing/"

func TestGetPipelines(t *testing.T) {
	store := &mockSparql{result: pipelineResult(
		np+"fmriprep", "20.2.7",
		np+"fmriprep", "23.1.3",
		np+"freesurfer", "7.3.2",
		np+"mriqc", "",
	)}
	rec := serve(t, store, "/pipelines", nil, nil, vocabAPI.getPipelines)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"np:fmriprep": ["23.1.3", "20.2.7"],
		"np:freesurfer": ["7.3.2"],
		"np:mriqc": []
	}`, rec.Body.String())
}

func TestGetPipelineVersions(t *testing.T) {
	store := &mockSparql{result: pipelineResult(np+"fmriprep", "20.2.7", np+"fmriprep", "23.1.3")}
	rec := serve(t, store, "/pipelines/np:fmriprep/versions", []string{"name"}, []string{"np:fmriprep"}, vocabAPI.getPipelineVersions)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["23.1.3", "20.2.7"]`, rec.Body.String())
	assert.Contains(t, store.queries[0], "FILTER(?pipeline_name = np:fmriprep)")

	store = &mockSparql{}
	rec = serve(t, store, "/pipelines/np:unknown/versions", []string{"name"}, []string{"np:unknown"}, vocabAPI.getPipelineVersions)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGetPipelineVersionsRejectsForeignTerm(t *testing.T) {
	store := &mockSparql{}
	rec := serve(t, store, "/pipelines/snomed:123/versions", []string{"name"}, []string{"snomed:123"}, vocabAPI.getPipelineVersions)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, store.queries)
}

// graphStore adds the metadata methods so the mock can back SetupRoutes
type graphStore struct {
	mockSparql
}

func (g *graphStore) GetVersion() (string, error) { return "1.0.0", nil }
func (g *graphStore) GetDatabase() (string, string, error) { return "mock", "mock", nil }
func (g *graphStore) GetDatasets() (map[string]interface{}, error) { return nil, nil }
func (g *graphStore) GetType() string { return "mock" }

func TestRoutesRegistered(t *testing.T) {
	e := echo.New()
	require.NoError(t, api.SetupRoutes(e, e.Group(""), &graphStore{}, api.Options{}))

	for target, status := range map[string]int{
		"/attributes/sex/vocab":           http.StatusOK,
		"/v1/attributes/nb:Image/vocab":   http.StatusOK,
		"/attributes/diagnosis":           http.StatusOK,
		"/pipelines":                      http.StatusOK,
		"/pipelines/np:fmriprep/versions": http.StatusOK,
		"/attributes/unknown/vocab":       http.StatusNotFound,
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, status, rec.Code, target)
	}
}

package sparql

import (
	"strconv"

	"github.com/valyala/fasttemplate"

	"github.com/neurobagel/napiHTTP/vocab"
)

// Variables projected by the vocabulary queries.
const (
	VarTerm       = "term"
	VarAttribute  = "attribute"
	VarNumSubject = "num_subjects"
)

var termsTemplate = fasttemplate.New(`${prefixes}
SELECT DISTINCT ?term
WHERE {
    ?entity ${predicate} ?term.
    FILTER(isIRI(?term))
}
ORDER BY ?term
`, startTag, endTag)

// TermsQuery lists every term of a category that is used in the graph.
func TermsQuery(category vocab.Category) string {
	return termsTemplate.ExecuteString(map[string]interface{}{
		"prefixes":  vocab.SparqlPrefixes(),
		"predicate": category.Predicate(),
	})
}

var attributesTemplate = fasttemplate.New(`${prefixes}PREFIX rdfs: <http://www.w3.org/2000/01/rdf-schema#>
SELECT DISTINCT ?attribute
WHERE {
    ?attribute rdfs:subClassOf nb:ControlledTerm.
}
ORDER BY ?attribute
`, startTag, endTag)

// AttributesQuery lists the controlled-term attribute classes of the graph.
func AttributesQuery() string {
	return attributesTemplate.ExecuteString(map[string]interface{}{
		"prefixes": vocab.SparqlPrefixes(),
	})
}

var pipelinesTemplate = fasttemplate.New(`${prefixes}
SELECT DISTINCT ?pipeline_name ?pipeline_version
WHERE {
    ?pipeline nb:hasPipelineName ?pipeline_name.
    ${name_filter}OPTIONAL {?pipeline nb:hasPipelineVersion ?pipeline_version.}
}
`, startTag, endTag)

// PipelinesQuery lists every (pipeline name, version) pair in the graph.
func PipelinesQuery() string {
	return pipelinesTemplate.ExecuteString(map[string]interface{}{
		"prefixes":    vocab.SparqlPrefixes(),
		"name_filter": "",
	})
}

// PipelineVersionsQuery lists the recorded versions of one pipeline.
func PipelineVersionsQuery(name vocab.Term) string {
	return pipelinesTemplate.ExecuteString(map[string]interface{}{
		"prefixes":    vocab.SparqlPrefixes(),
		"name_filter": "FILTER(?pipeline_name = " + name.String() + ")\n    ",
	})
}

var datasetsTemplate = fasttemplate.New(`${prefixes}
SELECT ?dataset_uuid ?dataset_name ?dataset_portal_uri (COUNT(DISTINCT ?subject) AS ?num_subjects)
WHERE {
    ?dataset_uuid a nb:Dataset;
        nb:hasLabel ?dataset_name.
    OPTIONAL {?dataset_uuid nb:hasPortalURI ?dataset_portal_uri.}
    OPTIONAL {?dataset_uuid nb:hasSamples ?subject.}
}
GROUP BY ?dataset_uuid ?dataset_name ?dataset_portal_uri
ORDER BY ?dataset_name
LIMIT ${limit}
`, startTag, endTag)

// DatasetsQuery summarizes the datasets in the graph with their total
// subject counts.
func DatasetsQuery(limit int) string {
	if limit <= 0 {
		limit = 10000
	}
	return datasetsTemplate.ExecuteString(map[string]interface{}{
		"prefixes": vocab.SparqlPrefixes(),
		"limit":    strconv.Itoa(limit),
	})
}

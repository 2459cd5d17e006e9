/*
   Builds the SPARQL text sent to the graph store.  Templates use ${tag}
   placeholders because braces are part of the query language.
*/

package sparql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"github.com/neurobagel/napiHTTP/vocab"
)

const (
	startTag = "${"
	endTag   = "}"
)

// Result variables of the cohort query, in SELECT order.
const (
	VarDatasetUUID      = "dataset_uuid"
	VarDatasetName      = "dataset_name"
	VarDatasetPortalURI = "dataset_portal_uri"
	VarSubjectID        = "sub_id"
	VarSessionID        = "session_id"
	VarSessionType      = "session_type"
	VarSessionFilePath  = "session_file_path"
	VarAge              = "age"
	VarSex              = "sex"
	VarDiagnosis        = "diagnosis"
	VarSubjectGroup     = "subject_group"
	VarAssessment       = "assessment"
	VarImageModal       = "image_modal"
	VarPipelineName     = "pipeline_name"
	VarPipelineVersion  = "pipeline_version"
	VarNumPhenotypic    = "num_matching_phenotypic_sessions"
	VarNumImaging       = "num_matching_imaging_sessions"
)

// CohortVars lists the variables projected by Build.
var CohortVars = []string{
	VarDatasetUUID, VarDatasetName, VarDatasetPortalURI, VarSubjectID,
	VarSessionID, VarSessionType, VarSessionFilePath,
	VarAge, VarSex, VarDiagnosis, VarSubjectGroup, VarAssessment,
	VarImageModal, VarPipelineName, VarPipelineVersion,
	VarNumPhenotypic, VarNumImaging,
}

var cohortTemplate = fasttemplate.New(`${prefixes}
SELECT DISTINCT ${select}
WHERE {
${dataset_values}    ?dataset_uuid a nb:Dataset;
        nb:hasLabel ?dataset_name;
        nb:hasSamples ?subject.
    OPTIONAL {?dataset_uuid nb:hasPortalURI ?dataset_portal_uri.}
    ?subject a nb:Subject;
        nb:hasLabel ?sub_id.

    OPTIONAL {
        SELECT ?subject (COUNT(DISTINCT ?session) AS ?num_matching_phenotypic_sessions)
        WHERE {
${phenotypic}
        } GROUP BY ?subject
    }
    OPTIONAL {
        SELECT ?subject (COUNT(DISTINCT ?session) AS ?num_matching_imaging_sessions)
        WHERE {
${imaging}
        } GROUP BY ?subject
    }
${count_filters}
    OPTIONAL {
        {
${phenotypic}
            BIND(nb:PhenotypicSession AS ?session_type)
        } UNION {
${imaging}
            BIND(nb:ImagingSession AS ?session_type)
        }
        ?session nb:hasLabel ?session_id.
    }
}
`, startTag, endTag)

// Build renders the cohort query for a FilterSet.
//
// The phenotypic and imaging session patterns are rendered once and used
// both for the rows returned and for the per-subject counting sub-queries,
// so the counts always reflect the same predicates as the rows.
func Build(fs FilterSet) string {
	selectVars := make([]string, len(CohortVars))
	for i, v := range CohortVars {
		selectVars[i] = "?" + v
	}

	return cohortTemplate.ExecuteString(map[string]interface{}{
		"prefixes":       vocab.SparqlPrefixes(),
		"select":         strings.Join(selectVars, " "),
		"dataset_values": datasetValues(fs.DatasetUUIDs),
		"phenotypic":     PhenotypicPattern(fs),
		"imaging":        ImagingPattern(fs),
		"count_filters":  countFilters(fs),
	})
}

const patternIndent = "            "

// PhenotypicPattern matches the phenotypic sessions of ?subject that pass
// the phenotypic filters.  Unfiltered attributes are optional.
func PhenotypicPattern(fs FilterSet) string {
	lines := []string{
		"?subject nb:hasSession ?session.",
		"?session a nb:PhenotypicSession.",
	}

	if fs.hasMinAge() || fs.hasMaxAge() {
		lines = append(lines, "?session nb:hasAge ?age.")
		if fs.hasMinAge() {
			lines = append(lines, fmt.Sprintf("FILTER(?age >= %s)", formatNumber(fs.MinAge)))
		}
		if fs.hasMaxAge() {
			lines = append(lines, fmt.Sprintf("FILTER(?age <= %s)", formatNumber(fs.MaxAge)))
		}
	} else {
		lines = append(lines, "OPTIONAL {?session nb:hasAge ?age.}")
	}

	lines = append(lines, termClause("?session", "nb:hasSex", "?sex", fs.Sex)...)
	lines = append(lines, termClause("?session", "nb:hasDiagnosis", "?diagnosis", fs.Diagnosis)...)

	var control vocab.Term
	if fs.IsControl {
		control = vocab.ControlTerm
	}
	lines = append(lines, termClause("?session", "nb:isSubjectGroup", "?subject_group", control)...)
	lines = append(lines, termClause("?session", "nb:hasAssessment", "?assessment", fs.Assessment)...)

	return indent(lines)
}

// ImagingPattern matches the imaging sessions of ?subject that pass the
// imaging filters.
func ImagingPattern(fs FilterSet) string {
	lines := []string{
		"?subject nb:hasSession ?session.",
		"?session a nb:ImagingSession.",
		"OPTIONAL {?session nb:hasFilePath ?session_file_path.}",
	}

	if fs.ImageModal.IsZero() {
		lines = append(lines, "OPTIONAL {?session nb:hasAcquisition/nb:hasContrastType ?image_modal.}")
	} else {
		lines = append(lines,
			"?session nb:hasAcquisition/nb:hasContrastType ?image_modal.",
			fmt.Sprintf("FILTER(?image_modal = %s)", fs.ImageModal),
		)
	}

	// version is only meaningful with a name
	switch {
	case fs.PipelineName.IsZero():
		lines = append(lines,
			"OPTIONAL {",
			"    ?session nb:hasCompletedPipeline ?pipeline.",
			"    ?pipeline nb:hasPipelineName ?pipeline_name.",
			"    OPTIONAL {?pipeline nb:hasPipelineVersion ?pipeline_version.}",
			"}",
		)
	case fs.PipelineVersion == "":
		lines = append(lines,
			"?session nb:hasCompletedPipeline ?pipeline.",
			"?pipeline nb:hasPipelineName ?pipeline_name.",
			fmt.Sprintf("FILTER(?pipeline_name = %s)", fs.PipelineName),
			"OPTIONAL {?pipeline nb:hasPipelineVersion ?pipeline_version.}",
		)
	default:
		lines = append(lines,
			"?session nb:hasCompletedPipeline ?pipeline.",
			"?pipeline nb:hasPipelineName ?pipeline_name;",
			"    nb:hasPipelineVersion ?pipeline_version.",
			fmt.Sprintf("FILTER(?pipeline_name = %s)", fs.PipelineName),
			fmt.Sprintf("FILTER(?pipeline_version = %s)", strconv.Quote(fs.PipelineVersion)),
		)
	}

	return indent(lines)
}

// termClause is a required exact match when term is set, otherwise an
// optional match.
func termClause(subject, predicate, object string, term vocab.Term) []string {
	if term.IsZero() {
		return []string{fmt.Sprintf("OPTIONAL {%s %s %s.}", subject, predicate, object)}
	}
	return []string{
		fmt.Sprintf("%s %s %s.", subject, predicate, object),
		fmt.Sprintf("FILTER(%s = %s)", object, term),
	}
}

func countFilters(fs FilterSet) string {
	var lines []string
	if n := fs.phenotypicThreshold(); n > 0 {
		lines = append(lines, fmt.Sprintf("    FILTER(?%s >= %d)", VarNumPhenotypic, n))
	}
	if n := fs.imagingThreshold(); n > 0 {
		lines = append(lines, fmt.Sprintf("    FILTER(?%s >= %d)", VarNumImaging, n))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func datasetValues(uuids []string) string {
	if len(uuids) == 0 {
		return ""
	}
	iris := make([]string, len(uuids))
	for i, uuid := range uuids {
		iris[i] = "<" + uuid + ">"
	}
	return "    VALUES ?dataset_uuid { " + strings.Join(iris, " ") + " }\n"
}

func indent(lines []string) string {
	for i, line := range lines {
		lines[i] = patternIndent + line
	}
	return strings.Join(lines, "\n")
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package cohort

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/neurobagel/napiHTTP/sparql"
	"github.com/neurobagel/napiHTTP/storage"
	"github.com/neurobagel/napiHTTP/vocab"
)

// ErrMalformedResult is returned when a result row cannot be decoded.
var ErrMalformedResult = errors.New("malformed cohort query result")

// RawRow is one row of the cohort query.  Rows recur once per session
// attribute combination and once per session of a subject.
type RawRow struct {
	DatasetUUID      string
	DatasetName      string
	DatasetPortalURI string
	SubjectID        string
	SessionID        string
	SessionType      vocab.SessionType
	SessionFilePath  string
	Age              *float64
	Sex              string
	Diagnosis        string
	SubjectGroup     string
	Assessment       string
	ImageModal       string
	PipelineName     string
	PipelineVersion  string

	NumMatchingPhenotypicSessions int
	NumMatchingImagingSessions    int
}

// RowsFromResult decodes the bindings of a cohort query.  Term IRIs are
// compacted to prefix:id form and missing counts are read as zero.
func RowsFromResult(res storage.SparqlResult) ([]RawRow, error) {
	rows := make([]RawRow, 0, res.Len())
	for i := range res.Bindings {
		row, err := decodeRow(res, i)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %w", ErrMalformedResult, i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeRow(res storage.SparqlResult, i int) (RawRow, error) {
	str := func(variable string) string {
		v, _ := res.Value(i, variable)
		return v
	}
	term := func(variable string) string {
		return vocab.CompactIRI(str(variable))
	}

	row := RawRow{
		DatasetUUID:      str(sparql.VarDatasetUUID),
		DatasetName:      str(sparql.VarDatasetName),
		DatasetPortalURI: str(sparql.VarDatasetPortalURI),
		SubjectID:        str(sparql.VarSubjectID),
		SessionID:        str(sparql.VarSessionID),
		SessionFilePath:  str(sparql.VarSessionFilePath),
		Sex:              term(sparql.VarSex),
		Diagnosis:        term(sparql.VarDiagnosis),
		SubjectGroup:     term(sparql.VarSubjectGroup),
		Assessment:       term(sparql.VarAssessment),
		ImageModal:       term(sparql.VarImageModal),
		PipelineName:     term(sparql.VarPipelineName),
		PipelineVersion:  str(sparql.VarPipelineVersion),
	}
	if row.DatasetUUID == "" || row.SubjectID == "" {
		return row, errors.New("missing dataset or subject identity")
	}

	if st := str(sparql.VarSessionType); st != "" {
		sessionType, err := vocab.ParseSessionType(st)
		if err != nil {
			return row, err
		}
		row.SessionType = sessionType
	}

	if age := str(sparql.VarAge); age != "" {
		v, err := strconv.ParseFloat(age, 64)
		if err != nil {
			return row, fmt.Errorf("age '%s' is not numeric", age)
		}
		row.Age = &v
	}

	var err error
	if row.NumMatchingPhenotypicSessions, err = count(str(sparql.VarNumPhenotypic)); err != nil {
		return row, err
	}
	if row.NumMatchingImagingSessions, err = count(str(sparql.VarNumImaging)); err != nil {
		return row, err
	}
	return row, nil
}

func count(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("session count '%s' is not a non-negative integer", raw)
	}
	return n, nil
}

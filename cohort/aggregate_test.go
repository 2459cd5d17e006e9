package cohort

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurobagel/napiHTTP/sparql"
	"github.com/neurobagel/napiHTTP/storage"
	"github.com/neurobagel/napiHTTP/vocab"
)

const (
	ds1 = "http://neurobagel.org/vocab/ds1"
	ds2 = "http://neurobagel.org/vocab/ds2"
)

func age(v float64) *float64 {
	return &v
}

// femaleScenarioRows is one subject with a phenotypic session and an
// imaging session acquired with two contrasts.
func femaleScenarioRows() []RawRow {
	base := RawRow{
		DatasetUUID:                   ds1,
		DatasetName:                   "QPN",
		SubjectID:                     "sub-01",
		NumMatchingPhenotypicSessions: 1,
		NumMatchingImagingSessions:    1,
	}

	pheno := base
	pheno.SessionID = "ses-01"
	pheno.SessionType = vocab.SessionPhenotypic
	pheno.Age = age(34)
	pheno.Sex = "snomed:248152002"

	t1 := base
	t1.SessionID = "ses-01"
	t1.SessionType = vocab.SessionImaging
	t1.SessionFilePath = "/data/QPN/sub-01/ses-01"
	t1.ImageModal = "nidm:T1Weighted"

	t2 := t1
	t2.ImageModal = "nidm:T2Weighted"

	return []RawRow{t1, pheno, t2}
}

func TestAggregateFemaleScenario(t *testing.T) {
	datasets := Aggregate(femaleScenarioRows())

	require.Len(t, datasets, 1)
	require.Len(t, datasets[0].Subjects, 1)
	sub := datasets[0].Subjects[0]
	assert.Equal(t, "sub-01", sub.ID)
	assert.Equal(t, 1, sub.NumMatchingPhenotypicSessions)
	assert.Equal(t, 1, sub.NumMatchingImagingSessions)

	require.Len(t, sub.Sessions, 2)
	imaging, pheno := sub.Sessions[0], sub.Sessions[1]
	assert.Equal(t, vocab.SessionImaging, imaging.Type)
	assert.Equal(t, []string{"nidm:T1Weighted", "nidm:T2Weighted"}, imaging.ImageModals)
	assert.Equal(t, "/data/QPN/sub-01/ses-01", imaging.FilePath)
	assert.Nil(t, imaging.Age)

	assert.Equal(t, vocab.SessionPhenotypic, pheno.Type)
	assert.Equal(t, "snomed:248152002", pheno.Sex)
	assert.Equal(t, 34.0, *pheno.Age)
	assert.Empty(t, pheno.ImageModals)
}

func TestAggregatePreservesFirstSeenOrder(t *testing.T) {
	rows := []RawRow{
		{DatasetUUID: ds2, DatasetName: "B", SubjectID: "sub-09", SessionID: "ses-02", SessionType: vocab.SessionImaging},
		{DatasetUUID: ds1, DatasetName: "A", SubjectID: "sub-01", SessionID: "ses-01", SessionType: vocab.SessionImaging},
		{DatasetUUID: ds2, DatasetName: "B", SubjectID: "sub-03", SessionID: "ses-01", SessionType: vocab.SessionImaging},
		{DatasetUUID: ds2, DatasetName: "B", SubjectID: "sub-09", SessionID: "ses-01", SessionType: vocab.SessionImaging},
	}

	datasets := Aggregate(rows)
	require.Len(t, datasets, 2)
	assert.Equal(t, ds2, datasets[0].UUID)
	assert.Equal(t, ds1, datasets[1].UUID)

	require.Len(t, datasets[0].Subjects, 2)
	assert.Equal(t, "sub-09", datasets[0].Subjects[0].ID)
	assert.Equal(t, "sub-03", datasets[0].Subjects[1].ID)

	sessions := datasets[0].Subjects[0].Sessions
	require.Len(t, sessions, 2)
	assert.Equal(t, "ses-02", sessions[0].ID)
	assert.Equal(t, "ses-01", sessions[1].ID)
}

func TestAggregateIdempotent(t *testing.T) {
	rows := append(femaleScenarioRows(),
		RawRow{DatasetUUID: ds2, DatasetName: "B", SubjectID: "sub-02", NumMatchingImagingSessions: 3},
	)
	assert.Equal(t, Aggregate(rows), Aggregate(rows))
	assert.Equal(t, Format(Aggregate(rows), false), Format(Aggregate(rows), false))
}

func TestAggregateSubjectWithoutSessions(t *testing.T) {
	datasets := Aggregate([]RawRow{
		{DatasetUUID: ds1, DatasetName: "A", SubjectID: "sub-01"},
	})
	require.Len(t, datasets, 1)
	require.Len(t, datasets[0].Subjects, 1)
	assert.NotNil(t, datasets[0].Subjects[0].Sessions)
	assert.Empty(t, datasets[0].Subjects[0].Sessions)
}

func TestAggregateCountsFromFirstRow(t *testing.T) {
	datasets := Aggregate([]RawRow{
		{DatasetUUID: ds1, SubjectID: "sub-01", SessionID: "ses-01", SessionType: vocab.SessionImaging, NumMatchingImagingSessions: 4},
		{DatasetUUID: ds1, SubjectID: "sub-01", SessionID: "ses-02", SessionType: vocab.SessionImaging, NumMatchingImagingSessions: 9},
	})
	assert.Equal(t, 4, datasets[0].Subjects[0].NumMatchingImagingSessions)
}

func TestAggregateSameLabelDifferentTypes(t *testing.T) {
	datasets := Aggregate([]RawRow{
		{DatasetUUID: ds1, SubjectID: "sub-01", SessionID: "ses-01", SessionType: vocab.SessionPhenotypic},
		{DatasetUUID: ds1, SubjectID: "sub-01", SessionID: "ses-01", SessionType: vocab.SessionImaging},
	})
	assert.Len(t, datasets[0].Subjects[0].Sessions, 2)
}

func TestAggregateUnionsPipelinesAndDiagnoses(t *testing.T) {
	base := RawRow{DatasetUUID: ds1, SubjectID: "sub-01", SessionID: "ses-01", SessionType: vocab.SessionImaging}
	rows := []RawRow{}
	for _, p := range []Pipeline{{"np:fmriprep", "23.1.3"}, {"np:fmriprep", "20.2.7"}, {"np:fmriprep", "23.1.3"}, {"np:freesurfer", ""}} {
		row := base
		row.PipelineName, row.PipelineVersion = p.Name, p.Version
		rows = append(rows, row)
	}
	pheno := RawRow{DatasetUUID: ds1, SubjectID: "sub-01", SessionID: "ses-01", SessionType: vocab.SessionPhenotypic}
	for _, dx := range []string{"snomed:49049000", "snomed:406506008", "snomed:49049000"} {
		row := pheno
		row.Diagnosis = dx
		rows = append(rows, row)
	}

	sessions := Aggregate(rows)[0].Subjects[0].Sessions
	require.Len(t, sessions, 2)
	assert.Equal(t, []Pipeline{{"np:fmriprep", "23.1.3"}, {"np:fmriprep", "20.2.7"}, {"np:freesurfer", ""}}, sessions[0].Pipelines)
	assert.Equal(t, []string{"snomed:49049000", "snomed:406506008"}, sessions[1].Diagnoses)
}

func TestRowsFromResult(t *testing.T) {
	uri := func(v string) storage.Binding { return storage.Binding{Type: "uri", Value: v} }
	lit := func(v string) storage.Binding { return storage.Binding{Type: "literal", Value: v} }

	res := storage.SparqlResult{
		Vars: sparql.CohortVars,
		Bindings: []map[string]storage.Binding{
			{
				sparql.VarDatasetUUID:   uri(ds1),
				sparql.VarDatasetName:   lit("QPN"),
				sparql.VarSubjectID:     lit("sub-01"),
				sparql.VarSessionID:     lit("ses-01"),
				sparql.VarSessionType:   uri("http://neurobagel.org/vocab/PhenotypicSession"),
				sparql.VarAge:           lit("61.5"),
				sparql.VarSex:           uri("http://purl.bioontology.org/ontology/SNOMEDCT/248153007"),
				sparql.VarSubjectGroup:  uri("http://purl.obolibrary.org/obo/NCIT_C94342"),
				sparql.VarNumPhenotypic: lit("2"),
			},
			{
				sparql.VarDatasetUUID: uri(ds1),
				sparql.VarSubjectID:   lit("sub-02"),
			},
		},
	}

	rows, err := RowsFromResult(res)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, vocab.SessionPhenotypic, rows[0].SessionType)
	assert.Equal(t, 61.5, *rows[0].Age)
	assert.Equal(t, "snomed:248153007", rows[0].Sex)
	assert.Equal(t, "ncit:C94342", rows[0].SubjectGroup)
	assert.Equal(t, 2, rows[0].NumMatchingPhenotypicSessions)
	assert.Equal(t, 0, rows[0].NumMatchingImagingSessions)

	assert.Nil(t, rows[1].Age)
	assert.Equal(t, 0, rows[1].NumMatchingPhenotypicSessions)
}

func TestRowsFromResultMalformed(t *testing.T) {
	for name, binding := range map[string]map[string]storage.Binding{
		"bad count":    {sparql.VarDatasetUUID: {Value: ds1}, sparql.VarSubjectID: {Value: "s"}, sparql.VarNumImaging: {Value: "many"}},
		"bad age":      {sparql.VarDatasetUUID: {Value: ds1}, sparql.VarSubjectID: {Value: "s"}, sparql.VarAge: {Value: "old"}},
		"no subject":   {sparql.VarDatasetUUID: {Value: ds1}},
		"session type": {sparql.VarDatasetUUID: {Value: ds1}, sparql.VarSubjectID: {Value: "s"}, sparql.VarSessionType: {Value: "nb:Visit"}},
	} {
		_, err := RowsFromResult(storage.SparqlResult{Bindings: []map[string]storage.Binding{binding}})
		assert.ErrorIs(t, err, ErrMalformedResult, name)
	}
}

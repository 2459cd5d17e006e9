package cohort

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurobagel/napiHTTP/vocab"
)

func subjects(datasetUUID string, n int) []RawRow {
	rows := make([]RawRow, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, RawRow{
			DatasetUUID:                datasetUUID,
			DatasetName:                datasetUUID,
			SubjectID:                  fmt.Sprintf("sub-%02d", i),
			SessionID:                  "ses-01",
			SessionType:                vocab.SessionImaging,
			NumMatchingImagingSessions: 1,
		})
	}
	return rows
}

func TestDisclosureControlThreshold(t *testing.T) {
	datasets := Aggregate(subjects(ds1, 2))

	assert.Empty(t, Format(ApplyDisclosureControl(datasets, 3), true))
	assert.Len(t, Format(ApplyDisclosureControl(datasets, 2), true), 1)
}

func TestDisclosureControlTwoDatasets(t *testing.T) {
	rows := append(subjects(ds1, 1), subjects(ds2, 5)...)
	resp := Format(ApplyDisclosureControl(Aggregate(rows), 2), true)

	require.Len(t, resp, 1)
	assert.Equal(t, ds2, resp[0].DatasetUUID)
	assert.Equal(t, 5, resp[0].NumMatchingSubjects)
}

func TestDisclosureControlDisabled(t *testing.T) {
	datasets := Aggregate(subjects(ds1, 1))
	assert.Len(t, ApplyDisclosureControl(datasets, 0), 1)
	assert.Len(t, ApplyDisclosureControl(datasets, 1), 1)
}

func TestDisclosureControlDoesNotModifyInput(t *testing.T) {
	datasets := Aggregate(append(subjects(ds1, 1), subjects(ds2, 3)...))
	_ = ApplyDisclosureControl(datasets, 2)
	assert.Len(t, datasets, 2)
	assert.Equal(t, ds1, datasets[0].UUID)
}

func TestFormatAggregate(t *testing.T) {
	rows := append(femaleScenarioRows(), RawRow{
		DatasetUUID: ds1, DatasetName: "QPN", DatasetPortalURI: "https://portal.example.org/qpn",
		SubjectID: "sub-02", SessionID: "ses-01", SessionType: vocab.SessionImaging,
		ImageModal: "nidm:FlowWeighted", PipelineName: "np:fmriprep", PipelineVersion: "23.1.3",
		NumMatchingPhenotypicSessions: 2, NumMatchingImagingSessions: 1,
	})

	resp := Format(Aggregate(rows), true)
	require.Len(t, resp, 1)
	ds := resp[0]
	assert.True(t, ds.RecordsProtected)
	assert.True(t, ds.SubjectData.Protected)
	assert.Equal(t, 2, ds.NumMatchingSubjects)
	assert.Equal(t, 3, ds.NumMatchingPhenotypicSessions)
	assert.Equal(t, 2, ds.NumMatchingImagingSessions)
	assert.Equal(t, []string{"nidm:T1Weighted", "nidm:T2Weighted", "nidm:FlowWeighted"}, ds.ImageModals)
	assert.Equal(t, map[string][]string{"np:fmriprep": {"23.1.3"}}, ds.AvailablePipelines)
	require.NotNil(t, ds.DatasetPortalURI)
	assert.Equal(t, "https://portal.example.org/qpn", *ds.DatasetPortalURI)

	data, err := json.Marshal(ds)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ProtectedSubjectData, decoded["subject_data"])
	assert.NotContains(t, string(data), "sub-01")
}

func TestFormatDetailed(t *testing.T) {
	resp := Format(Aggregate(femaleScenarioRows()), false)
	require.Len(t, resp, 1)
	assert.False(t, resp[0].RecordsProtected)
	assert.Nil(t, resp[0].DatasetPortalURI)

	subs := resp[0].SubjectData.Subjects
	require.Len(t, subs, 1)
	require.Len(t, subs[0].Sessions, 2)
	assert.Equal(t, "nb:ImagingSession", subs[0].Sessions[0].SessionType)
	assert.Nil(t, subs[0].Sessions[0].Sex)
	assert.Equal(t, "nb:PhenotypicSession", subs[0].Sessions[1].SessionType)
	assert.Equal(t, "snomed:248152002", *subs[0].Sessions[1].Sex)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	var decoded []DatasetResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, resp, decoded)
}

func TestFormatEmpty(t *testing.T) {
	resp := Format(nil, true)
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFormatWithoutPipelines(t *testing.T) {
	resp := Format(Aggregate(subjects(ds1, 1)), true)
	require.Len(t, resp, 1)
	data, err := json.Marshal(resp[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"available_pipelines":{}`)
	assert.Contains(t, string(data), `"image_modals":[]`)
}

func TestSessionTable(t *testing.T) {
	rows := append(femaleScenarioRows(), RawRow{DatasetUUID: ds2, DatasetName: "B", SubjectID: "sub-07"})
	record := SessionTable(Aggregate(rows), memory.DefaultAllocator)
	defer record.Release()

	assert.Equal(t, int64(3), record.NumRows())
	assert.Equal(t, SessionSchema, record.Schema())

	sessionIDs := record.Column(5).(*array.String)
	assert.Equal(t, "ses-01", sessionIDs.Value(0))
	assert.True(t, sessionIDs.IsNull(2))

	ages := record.Column(7).(*array.Float64)
	assert.True(t, ages.IsNull(0))
	assert.Equal(t, 34.0, ages.Value(1))
}

func TestDatasetTableIPC(t *testing.T) {
	resp := Format(Aggregate(append(subjects(ds1, 2), subjects(ds2, 3)...)), true)
	record := DatasetTable(resp, nil)
	defer record.Release()

	var buf bytes.Buffer
	require.NoError(t, WriteIPC(&buf, record))

	reader, err := ipc.NewReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer reader.Release()

	require.True(t, reader.Next())
	got := reader.Record()
	assert.Equal(t, int64(2), got.NumRows())
	assert.Equal(t, "num_matching_subjects", got.Schema().Field(4).Name)
	assert.Equal(t, int64(3), got.Column(4).(*array.Int64).Value(1))
	assert.True(t, got.Column(3).(*array.Boolean).Value(0))
	assert.False(t, reader.Next())
}

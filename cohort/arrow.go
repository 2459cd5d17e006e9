package cohort

import (
	"io"
	"maps"
	"slices"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"hermannm.dev/wrap"
)

// ArrowStreamType is the content type of Arrow IPC stream responses.
const ArrowStreamType = "application/vnd.apache.arrow.stream"

var stringList = arrow.ListOf(arrow.BinaryTypes.String)

// DatasetSchema has one row per dataset of an aggregate response.
var DatasetSchema = arrow.NewSchema([]arrow.Field{
	{Name: "dataset_uuid", Type: arrow.BinaryTypes.String},
	{Name: "dataset_name", Type: arrow.BinaryTypes.String},
	{Name: "dataset_portal_uri", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "records_protected", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "num_matching_subjects", Type: arrow.PrimitiveTypes.Int64},
	{Name: "num_matching_phenotypic_sessions", Type: arrow.PrimitiveTypes.Int64},
	{Name: "num_matching_imaging_sessions", Type: arrow.PrimitiveTypes.Int64},
	{Name: "image_modals", Type: stringList},
	{Name: "available_pipelines", Type: stringList},
}, nil)

// SessionSchema has one row per session of a detailed response.  Subjects
// without a matching session get a single row with null session columns.
var SessionSchema = arrow.NewSchema([]arrow.Field{
	{Name: "dataset_uuid", Type: arrow.BinaryTypes.String},
	{Name: "dataset_name", Type: arrow.BinaryTypes.String},
	{Name: "sub_id", Type: arrow.BinaryTypes.String},
	{Name: "num_matching_phenotypic_sessions", Type: arrow.PrimitiveTypes.Int64},
	{Name: "num_matching_imaging_sessions", Type: arrow.PrimitiveTypes.Int64},
	{Name: "session_id", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "session_type", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "age", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "sex", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "diagnosis", Type: stringList, Nullable: true},
	{Name: "subject_group", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "assessment", Type: stringList, Nullable: true},
	{Name: "image_modal", Type: stringList, Nullable: true},
	{Name: "session_file_path", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "completed_pipelines", Type: stringList, Nullable: true},
}, nil)

// DatasetTable converts formatted dataset entries to an Arrow record.  The
// caller must release the record.
func DatasetTable(responses []DatasetResponse, allocator memory.Allocator) arrow.Record {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(allocator, DatasetSchema)
	defer b.Release()

	for _, ds := range responses {
		b.Field(0).(*array.StringBuilder).Append(ds.DatasetUUID)
		b.Field(1).(*array.StringBuilder).Append(ds.DatasetName)
		appendOptional(b.Field(2).(*array.StringBuilder), ds.DatasetPortalURI)
		b.Field(3).(*array.BooleanBuilder).Append(ds.RecordsProtected)
		b.Field(4).(*array.Int64Builder).Append(int64(ds.NumMatchingSubjects))
		b.Field(5).(*array.Int64Builder).Append(int64(ds.NumMatchingPhenotypicSessions))
		b.Field(6).(*array.Int64Builder).Append(int64(ds.NumMatchingImagingSessions))
		appendList(b.Field(7).(*array.ListBuilder), ds.ImageModals)
		appendList(b.Field(8).(*array.ListBuilder), pipelineLabels(ds.AvailablePipelines))
	}
	return b.NewRecord()
}

// SessionTable flattens dataset records to one Arrow row per session.  The
// caller must release the record.
func SessionTable(datasets []*DatasetRecord, allocator memory.Allocator) arrow.Record {
	if allocator == nil {
		allocator = memory.DefaultAllocator
	}
	b := array.NewRecordBuilder(allocator, SessionSchema)
	defer b.Release()

	for _, ds := range datasets {
		for _, sub := range ds.Subjects {
			sessions := sub.Sessions
			if len(sessions) == 0 {
				sessions = []*SessionRecord{nil}
			}
			for _, session := range sessions {
				b.Field(0).(*array.StringBuilder).Append(ds.UUID)
				b.Field(1).(*array.StringBuilder).Append(ds.Name)
				b.Field(2).(*array.StringBuilder).Append(sub.ID)
				b.Field(3).(*array.Int64Builder).Append(int64(sub.NumMatchingPhenotypicSessions))
				b.Field(4).(*array.Int64Builder).Append(int64(sub.NumMatchingImagingSessions))
				appendSession(b, session)
			}
		}
	}
	return b.NewRecord()
}

func appendSession(b *array.RecordBuilder, session *SessionRecord) {
	if session == nil {
		for i := 5; i < len(SessionSchema.Fields()); i++ {
			b.Field(i).AppendNull()
		}
		return
	}

	b.Field(5).(*array.StringBuilder).Append(session.ID)
	b.Field(6).(*array.StringBuilder).Append(session.Type.String())
	if session.Age != nil {
		b.Field(7).(*array.Float64Builder).Append(*session.Age)
	} else {
		b.Field(7).AppendNull()
	}
	appendOptional(b.Field(8).(*array.StringBuilder), optional(session.Sex))
	appendList(b.Field(9).(*array.ListBuilder), session.Diagnoses)
	appendOptional(b.Field(10).(*array.StringBuilder), optional(session.SubjectGroup))
	appendList(b.Field(11).(*array.ListBuilder), session.Assessments)
	appendList(b.Field(12).(*array.ListBuilder), session.ImageModals)
	appendOptional(b.Field(13).(*array.StringBuilder), optional(session.FilePath))
	appendList(b.Field(14).(*array.ListBuilder), pipelineLabels(pipelineMap(session.Pipelines)))
}

func appendOptional(sb *array.StringBuilder, v *string) {
	if v == nil {
		sb.AppendNull()
		return
	}
	sb.Append(*v)
}

func appendList(lb *array.ListBuilder, values []string) {
	lb.Append(true)
	vb := lb.ValueBuilder().(*array.StringBuilder)
	for _, v := range values {
		vb.Append(v)
	}
}

// pipelineLabels renders pipelines as name@version, or the bare name when
// no version was recorded.
func pipelineLabels(pipelines map[string][]string) []string {
	labels := make([]string, 0, len(pipelines))
	for _, name := range slices.Sorted(maps.Keys(pipelines)) {
		versions := pipelines[name]
		if len(versions) == 0 {
			labels = append(labels, name)
			continue
		}
		for _, version := range versions {
			labels = append(labels, name+"@"+version)
		}
	}
	return labels
}

// WriteIPC writes a record as an Arrow IPC stream.
func WriteIPC(w io.Writer, record arrow.Record) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(record.Schema()))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return wrap.Error(err, "error writing Arrow record")
	}
	if err := writer.Close(); err != nil {
		return wrap.Error(err, "error closing Arrow stream")
	}
	return nil
}

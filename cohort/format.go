package cohort

import (
	"bytes"
	"encoding/json"
)

// ProtectedSubjectData replaces subject-level records in aggregate responses.
const ProtectedSubjectData = "protected"

// SessionResponse is a session in a detailed response.
type SessionResponse struct {
	SessionID          string              `json:"session_id"`
	SessionType        string              `json:"session_type"`
	Age                *float64            `json:"age"`
	Sex                *string             `json:"sex"`
	Diagnosis          []string            `json:"diagnosis"`
	SubjectGroup       *string             `json:"subject_group"`
	Assessment         []string            `json:"assessment"`
	ImageModal         []string            `json:"image_modal"`
	SessionFilePath    *string             `json:"session_file_path"`
	CompletedPipelines map[string][]string `json:"completed_pipelines"`
}

// SubjectResponse is a subject in a detailed response.
type SubjectResponse struct {
	SubjectID                     string            `json:"sub_id"`
	NumMatchingPhenotypicSessions int               `json:"num_matching_phenotypic_sessions"`
	NumMatchingImagingSessions    int               `json:"num_matching_imaging_sessions"`
	Sessions                      []SessionResponse `json:"sessions"`
}

// SubjectData is either the subject tree of a dataset or, in aggregate
// mode, the "protected" marker.
type SubjectData struct {
	Protected bool
	Subjects  []SubjectResponse
}

func (sd SubjectData) MarshalJSON() ([]byte, error) {
	if sd.Protected {
		return json.Marshal(ProtectedSubjectData)
	}
	if sd.Subjects == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(sd.Subjects)
}

func (sd *SubjectData) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var marker string
		if err := json.Unmarshal(data, &marker); err != nil {
			return err
		}
		sd.Protected = marker == ProtectedSubjectData
		sd.Subjects = nil
		return nil
	}
	sd.Protected = false
	return json.Unmarshal(data, &sd.Subjects)
}

// DatasetResponse is the per-dataset entry of a cohort response.
type DatasetResponse struct {
	DatasetUUID                   string              `json:"dataset_uuid"`
	DatasetName                   string              `json:"dataset_name"`
	DatasetPortalURI              *string             `json:"dataset_portal_uri"`
	RecordsProtected              bool                `json:"records_protected"`
	NumMatchingSubjects           int                 `json:"num_matching_subjects"`
	NumMatchingPhenotypicSessions int                 `json:"num_matching_phenotypic_sessions"`
	NumMatchingImagingSessions    int                 `json:"num_matching_imaging_sessions"`
	ImageModals                   []string            `json:"image_modals"`
	AvailablePipelines            map[string][]string `json:"available_pipelines"`
	SubjectData                   SubjectData         `json:"subject_data"`
}

// Format projects dataset records into response entries.  Aggregate mode
// keeps only dataset-level summaries; detailed mode carries the full
// subject and session tree.
func Format(datasets []*DatasetRecord, aggregateMode bool) []DatasetResponse {
	out := make([]DatasetResponse, 0, len(datasets))
	for _, ds := range datasets {
		resp := DatasetResponse{
			DatasetUUID:         ds.UUID,
			DatasetName:         ds.Name,
			DatasetPortalURI:    optional(ds.PortalURI),
			RecordsProtected:    aggregateMode,
			NumMatchingSubjects: ds.NumMatchingSubjects(),
			ImageModals:         make([]string, 0),
		}

		var pipelines []Pipeline
		for _, sub := range ds.Subjects {
			resp.NumMatchingPhenotypicSessions += sub.NumMatchingPhenotypicSessions
			resp.NumMatchingImagingSessions += sub.NumMatchingImagingSessions
			for _, session := range sub.Sessions {
				for _, modality := range session.ImageModals {
					resp.ImageModals = appendUnique(resp.ImageModals, modality)
				}
				for _, p := range session.Pipelines {
					pipelines = appendUnique(pipelines, p)
				}
			}
		}
		resp.AvailablePipelines = pipelineMap(pipelines)

		if aggregateMode {
			resp.SubjectData = SubjectData{Protected: true}
		} else {
			resp.SubjectData = SubjectData{Subjects: formatSubjects(ds.Subjects)}
		}
		out = append(out, resp)
	}
	return out
}

func formatSubjects(subjects []*SubjectRecord) []SubjectResponse {
	out := make([]SubjectResponse, 0, len(subjects))
	for _, sub := range subjects {
		sr := SubjectResponse{
			SubjectID:                     sub.ID,
			NumMatchingPhenotypicSessions: sub.NumMatchingPhenotypicSessions,
			NumMatchingImagingSessions:    sub.NumMatchingImagingSessions,
			Sessions:                      make([]SessionResponse, 0, len(sub.Sessions)),
		}
		for _, session := range sub.Sessions {
			sr.Sessions = append(sr.Sessions, SessionResponse{
				SessionID:          session.ID,
				SessionType:        session.Type.String(),
				Age:                session.Age,
				Sex:                optional(session.Sex),
				Diagnosis:          session.Diagnoses,
				SubjectGroup:       optional(session.SubjectGroup),
				Assessment:         session.Assessments,
				ImageModal:         session.ImageModals,
				SessionFilePath:    optional(session.FilePath),
				CompletedPipelines: pipelineMap(session.Pipelines),
			})
		}
		out = append(out, sr)
	}
	return out
}

// pipelineMap groups versions by pipeline name, keeping first-seen order.
func pipelineMap(pipelines []Pipeline) map[string][]string {
	out := make(map[string][]string, len(pipelines))
	for _, p := range pipelines {
		versions, ok := out[p.Name]
		if !ok {
			versions = make([]string, 0, 1)
		}
		out[p.Name] = appendUnique(versions, p.Version)
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

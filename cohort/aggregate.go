/*
   Collapses the flat rows of a cohort query into a dataset -> subject ->
   session tree, applies small-cell suppression and projects the tree into
   response bodies.
*/

package cohort

import (
	"slices"

	"github.com/neurobagel/napiHTTP/vocab"
)

// Pipeline is a completed (pipeline, version) pair.
type Pipeline struct {
	Name    string
	Version string
}

// SessionRecord is a deduplicated session of a subject.  Single-valued
// attributes are empty when the graph had no value for the session.
type SessionRecord struct {
	ID           string
	Type         vocab.SessionType
	FilePath     string
	Age          *float64
	Sex          string
	SubjectGroup string
	Diagnoses    []string
	Assessments  []string
	ImageModals  []string
	Pipelines    []Pipeline
}

// SubjectRecord holds the matching sessions of a subject.  The counts cover
// every session of the subject matching the filters, independent of which
// sessions are listed.
type SubjectRecord struct {
	ID                            string
	Sessions                      []*SessionRecord
	NumMatchingPhenotypicSessions int
	NumMatchingImagingSessions    int
}

// DatasetRecord holds the matching subjects of a dataset.
type DatasetRecord struct {
	UUID      string
	Name      string
	PortalURI string
	Subjects  []*SubjectRecord
}

// NumMatchingSubjects is the count compared against the minimum cell size.
func (d *DatasetRecord) NumMatchingSubjects() int {
	return len(d.Subjects)
}

type sessionKey struct {
	sessionType vocab.SessionType
	id          string
}

type datasetBuilder struct {
	record   *DatasetRecord
	subjects map[string]*subjectBuilder
}

type subjectBuilder struct {
	record   *SubjectRecord
	sessions map[sessionKey]*SessionRecord
}

// Aggregate groups rows by dataset, subject and session, each in the order
// first seen.  Multi-valued session attributes are unioned; single-valued
// ones keep the first value seen.  A subject whose rows carry no session is
// kept with an empty session list.
func Aggregate(rows []RawRow) []*DatasetRecord {
	datasets := make([]*DatasetRecord, 0)
	byUUID := make(map[string]*datasetBuilder)

	for _, row := range rows {
		ds, ok := byUUID[row.DatasetUUID]
		if !ok {
			ds = &datasetBuilder{
				record: &DatasetRecord{
					UUID:      row.DatasetUUID,
					Name:      row.DatasetName,
					PortalURI: row.DatasetPortalURI,
					Subjects:  make([]*SubjectRecord, 0),
				},
				subjects: make(map[string]*subjectBuilder),
			}
			byUUID[row.DatasetUUID] = ds
			datasets = append(datasets, ds.record)
		} else if ds.record.PortalURI == "" {
			ds.record.PortalURI = row.DatasetPortalURI
		}

		sub, ok := ds.subjects[row.SubjectID]
		if !ok {
			// counts are per subject, so the first row is authoritative
			sub = &subjectBuilder{
				record: &SubjectRecord{
					ID:                            row.SubjectID,
					Sessions:                      make([]*SessionRecord, 0),
					NumMatchingPhenotypicSessions: row.NumMatchingPhenotypicSessions,
					NumMatchingImagingSessions:    row.NumMatchingImagingSessions,
				},
				sessions: make(map[sessionKey]*SessionRecord),
			}
			ds.subjects[row.SubjectID] = sub
			ds.record.Subjects = append(ds.record.Subjects, sub.record)
		}

		if row.SessionID == "" {
			continue
		}
		key := sessionKey{row.SessionType, row.SessionID}
		session, ok := sub.sessions[key]
		if !ok {
			session = &SessionRecord{
				ID:          row.SessionID,
				Type:        row.SessionType,
				Diagnoses:   make([]string, 0),
				Assessments: make([]string, 0),
				ImageModals: make([]string, 0),
				Pipelines:   make([]Pipeline, 0),
			}
			sub.sessions[key] = session
			sub.record.Sessions = append(sub.record.Sessions, session)
		}
		session.merge(row)
	}

	return datasets
}

func (s *SessionRecord) merge(row RawRow) {
	if s.FilePath == "" {
		s.FilePath = row.SessionFilePath
	}
	if s.Age == nil && row.Age != nil {
		age := *row.Age
		s.Age = &age
	}
	if s.Sex == "" {
		s.Sex = row.Sex
	}
	if s.SubjectGroup == "" {
		s.SubjectGroup = row.SubjectGroup
	}
	s.Diagnoses = appendUnique(s.Diagnoses, row.Diagnosis)
	s.Assessments = appendUnique(s.Assessments, row.Assessment)
	s.ImageModals = appendUnique(s.ImageModals, row.ImageModal)
	if row.PipelineName != "" {
		s.Pipelines = appendUnique(s.Pipelines, Pipeline{row.PipelineName, row.PipelineVersion})
	}
}

func appendUnique[T comparable](set []T, v T) []T {
	var zero T
	if v == zero || slices.Contains(set, v) {
		return set
	}
	return append(set, v)
}

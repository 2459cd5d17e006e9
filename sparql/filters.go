package sparql

import (
	"math"

	"github.com/neurobagel/napiHTTP/vocab"
)

// FilterSet is a validated set of cohort filters.  Absent terms are zero
// values and absent age bounds are infinite.
type FilterSet struct {
	MinAge                   float64
	MaxAge                   float64
	Sex                      vocab.Term
	Diagnosis                vocab.Term
	IsControl                bool
	Assessment               vocab.Term
	ImageModal               vocab.Term
	PipelineName             vocab.Term
	PipelineVersion          string
	MinNumPhenotypicSessions int
	MinNumImagingSessions    int
	ReturnAgg                bool
	DatasetUUIDs             []string
}

// EmptyFilterSet matches every dataset, subject and session.
func EmptyFilterSet() FilterSet {
	return FilterSet{MinAge: math.Inf(-1), MaxAge: math.Inf(1), ReturnAgg: true}
}

func (fs FilterSet) hasMinAge() bool {
	return !math.IsInf(fs.MinAge, -1)
}

func (fs FilterSet) hasMaxAge() bool {
	return !math.IsInf(fs.MaxAge, 1)
}

// HasPhenotypicFilters is true when any filter narrows phenotypic sessions.
func (fs FilterSet) HasPhenotypicFilters() bool {
	return fs.hasMinAge() || fs.hasMaxAge() || !fs.Sex.IsZero() || !fs.Diagnosis.IsZero() ||
		fs.IsControl || !fs.Assessment.IsZero()
}

// HasImagingFilters is true when any filter narrows imaging sessions.
func (fs FilterSet) HasImagingFilters() bool {
	return !fs.ImageModal.IsZero() || !fs.PipelineName.IsZero()
}

// phenotypicThreshold is the minimum number of matching phenotypic sessions
// a subject needs to be included, 0 meaning no constraint.
func (fs FilterSet) phenotypicThreshold() int {
	return threshold(fs.HasPhenotypicFilters(), fs.MinNumPhenotypicSessions)
}

func (fs FilterSet) imagingThreshold() int {
	return threshold(fs.HasImagingFilters(), fs.MinNumImagingSessions)
}

func threshold(filtered bool, minimum int) int {
	if filtered {
		return max(1, minimum)
	}
	return max(0, minimum)
}

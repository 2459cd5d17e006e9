package vocab

import (
	"fmt"
	"slices"
	"strings"

	"hermannm.dev/enumnames"
)

// Category is an attribute that can be filtered on with a controlled term.
type Category uint8

const (
	CategorySex           Category = 1
	CategoryDiagnosis     Category = 2
	CategoryAssessment    Category = 3
	CategoryImageModality Category = 4
	CategoryPipeline      Category = 5
)

var categoryNames = enumnames.NewMap(map[Category]string{
	CategorySex:           "nb:Sex",
	CategoryDiagnosis:     "nb:Diagnosis",
	CategoryAssessment:    "nb:Assessment",
	CategoryImageModality: "nb:Image",
	CategoryPipeline:      "nb:Pipeline",
})

var allCategories = []Category{
	CategorySex,
	CategoryDiagnosis,
	CategoryAssessment,
	CategoryImageModality,
	CategoryPipeline,
}

type categoryInfo struct {
	slug      string
	predicate string
	prefixes  []string
}

var categoryInfos = map[Category]categoryInfo{
	CategorySex:           {"sex", "nb:hasSex", []string{"snomed"}},
	CategoryDiagnosis:     {"diagnosis", "nb:hasDiagnosis", []string{"snomed"}},
	CategoryAssessment:    {"assessment", "nb:hasAssessment", []string{"cogatlas", "snomed"}},
	CategoryImageModality: {"image_modal", "nb:hasContrastType", []string{"nidm"}},
	CategoryPipeline:      {"pipeline_name", "nb:hasPipelineName", []string{"np"}},
}

func (category Category) IsValid() bool {
	return categoryNames.ContainsEnumValue(category)
}

func (category Category) String() string {
	return categoryNames.GetNameOrFallback(category, "[INVALID CATEGORY]")
}

func (category Category) MarshalJSON() ([]byte, error) {
	return categoryNames.MarshalToNameJSON(category)
}

func (category *Category) UnmarshalJSON(bytes []byte) error {
	return categoryNames.UnmarshalFromNameJSON(bytes, category)
}

// Slug is the short name used in query parameters and routes.
func (category Category) Slug() string {
	return categoryInfos[category].slug
}

// Predicate is the graph predicate linking a session or pipeline to a term
// of this category.
func (category Category) Predicate() string {
	return categoryInfos[category].predicate
}

// Prefixes lists the namespaces a term of this category may come from.
func (category Category) Prefixes() []string {
	return categoryInfos[category].prefixes
}

// Categories returns every category in declaration order.
func Categories() []Category {
	return slices.Clone(allCategories)
}

// ParseCategory accepts the CURIE name (nb:Diagnosis) or the slug
// (diagnosis), case-insensitively.
func ParseCategory(raw string) (Category, error) {
	raw = strings.TrimSpace(raw)
	for _, category := range allCategories {
		if strings.EqualFold(raw, category.String()) || strings.EqualFold(raw, category.Slug()) {
			return category, nil
		}
	}
	return 0, fmt.Errorf("unknown attribute category '%s'", raw)
}

// ValidateTerm parses raw as a term of the given category.  Sex and image
// modality are closed sets; the other categories accept any well-formed term
// from their namespaces.
func ValidateTerm(category Category, raw string) (Term, error) {
	switch category {
	case CategorySex:
		sex, err := ParseSex(raw)
		if err != nil {
			return Term{}, err
		}
		return sex.Term(), nil
	case CategoryImageModality:
		modality, err := ParseImageModality(raw)
		if err != nil {
			return Term{}, err
		}
		return modality.Term(), nil
	}

	term, err := ParseTerm(raw)
	if err != nil {
		return Term{}, err
	}
	if !slices.Contains(category.Prefixes(), term.Prefix) {
		return Term{}, fmt.Errorf(
			"%w: '%s' is not a %s term (expected namespace %s)",
			ErrInvalidTerm, raw, category.Slug(), strings.Join(category.Prefixes(), " or "),
		)
	}
	return term, nil
}

// LabeledTerm is a vocabulary entry returned by the vocab endpoints.
type LabeledTerm struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// StaticTerms lists the terms of closed categories.  Open categories return
// nil and must be looked up in the graph.
func StaticTerms(category Category) []LabeledTerm {
	switch category {
	case CategorySex:
		terms := make([]LabeledTerm, 0, len(allSexes))
		for _, sex := range allSexes {
			terms = append(terms, LabeledTerm{ID: sex.String(), Label: sex.Label()})
		}
		return terms
	case CategoryImageModality:
		terms := make([]LabeledTerm, 0, len(allImageModalities))
		for _, modality := range allImageModalities {
			terms = append(terms, LabeledTerm{ID: modality.String(), Label: modality.Label()})
		}
		return terms
	}
	return nil
}

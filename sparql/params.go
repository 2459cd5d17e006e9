package sparql

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"hermannm.dev/wrap"

	"github.com/neurobagel/napiHTTP/vocab"
)

// ErrInvalidFilterCombination is returned for filter input that cannot be
// turned into a query.  No store call is made when it is returned.
var ErrInvalidFilterCombination = errors.New("invalid filter combination")

var (
	controlledTermPattern  = regexp.MustCompile(`^[a-zA-Z]+[:]\S+$`)
	pipelineVersionPattern = regexp.MustCompile(`^([A-Za-z0-9-]+)\.(\d+)\.([A-Za-z0-9-]+)$`)
	graphIRIPattern        = regexp.MustCompile("^https?://[^\\s<>\"{}|\\\\^`]+$")
)

var paramsValidate *validator.Validate

func init() {
	paramsValidate = validator.New()
	paramsValidate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = paramsValidate.RegisterValidation("controlled_term", func(fl validator.FieldLevel) bool {
		return controlledTermPattern.MatchString(fl.Field().String())
	})
	_ = paramsValidate.RegisterValidation("pipeline_version", func(fl validator.FieldLevel) bool {
		return pipelineVersionPattern.MatchString(fl.Field().String())
	})
	_ = paramsValidate.RegisterValidation("graph_iri", func(fl validator.FieldLevel) bool {
		return graphIRIPattern.MatchString(fl.Field().String())
	})
}

// FilterParams are the raw filter parameters of a cohort request, as
// received from a query string or a JSON body.
type FilterParams struct {
	MinAge                   *float64 `json:"min_age,omitempty" validate:"omitempty,gte=0"`
	MaxAge                   *float64 `json:"max_age,omitempty" validate:"omitempty,gte=0"`
	Sex                      string   `json:"sex,omitempty"`
	Diagnosis                string   `json:"diagnosis,omitempty" validate:"omitempty,controlled_term"`
	IsControl                *bool    `json:"is_control,omitempty"`
	MinNumImagingSessions    *int     `json:"min_num_imaging_sessions,omitempty" validate:"omitempty,gte=0"`
	MinNumPhenotypicSessions *int     `json:"min_num_phenotypic_sessions,omitempty" validate:"omitempty,gte=0"`
	Assessment               string   `json:"assessment,omitempty" validate:"omitempty,controlled_term"`
	ImageModal               string   `json:"image_modal,omitempty" validate:"omitempty,controlled_term"`
	PipelineName             string   `json:"pipeline_name,omitempty" validate:"omitempty,controlled_term"`
	PipelineVersion          string   `json:"pipeline_version,omitempty" validate:"omitempty,pipeline_version"`
	ReturnAgg                *bool    `json:"return_agg,omitempty"`
	DatasetUUIDs             []string `json:"dataset_uuids,omitempty" validate:"omitempty,dive,graph_iri"`
}

// Validate checks the syntactic form of each parameter.
func (p *FilterParams) Validate() error {
	err := paramsValidate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return wrap.Error(ErrInvalidFilterCombination, err.Error())
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "gte":
			msgs = append(msgs, fmt.Sprintf("'%s' must be greater than or equal to %s", fe.Field(), fe.Param()))
		case "controlled_term":
			msgs = append(msgs, fmt.Sprintf("'%s' must be a controlled term in prefix:id form", fe.Field()))
		case "pipeline_version":
			msgs = append(msgs, fmt.Sprintf("'%s' must be a version like 1.2.3", fe.Field()))
		case "graph_iri":
			msgs = append(msgs, fmt.Sprintf("'%s' entries must be http(s) IRIs", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("'%s' failed '%s' validation", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidFilterCombination, strings.Join(msgs, "; "))
}

// NewFilterSet validates raw parameters and converts them into a FilterSet.
func NewFilterSet(p FilterParams) (FilterSet, error) {
	if err := p.Validate(); err != nil {
		return FilterSet{}, err
	}

	fs := FilterSet{
		MinAge:          math.Inf(-1),
		MaxAge:          math.Inf(1),
		PipelineVersion: p.PipelineVersion,
		ReturnAgg:       true,
		DatasetUUIDs:    p.DatasetUUIDs,
	}
	for name, age := range map[string]*float64{"min_age": p.MinAge, "max_age": p.MaxAge} {
		if age != nil && (math.IsInf(*age, 0) || math.IsNaN(*age)) {
			return FilterSet{}, fmt.Errorf("%w: '%s' must be a finite number", ErrInvalidFilterCombination, name)
		}
	}
	if p.MinAge != nil {
		fs.MinAge = *p.MinAge
	}
	if p.MaxAge != nil {
		fs.MaxAge = *p.MaxAge
	}
	if fs.MaxAge < fs.MinAge {
		return FilterSet{}, wrap.Error(ErrInvalidFilterCombination, "'max_age' must be greater than or equal to 'min_age'")
	}
	if p.ReturnAgg != nil {
		fs.ReturnAgg = *p.ReturnAgg
	}
	if p.MinNumImagingSessions != nil {
		fs.MinNumImagingSessions = *p.MinNumImagingSessions
	}
	if p.MinNumPhenotypicSessions != nil {
		fs.MinNumPhenotypicSessions = *p.MinNumPhenotypicSessions
	}

	if p.IsControl != nil {
		if !*p.IsControl {
			return FilterSet{}, wrap.Error(ErrInvalidFilterCombination, "'is_control' must be either set to 'true' or omitted from the query")
		}
		fs.IsControl = true
	}
	if fs.IsControl && p.Diagnosis != "" {
		return FilterSet{}, wrap.Error(ErrInvalidFilterCombination, "subjects cannot both be healthy controls and have a diagnosis")
	}
	if p.PipelineVersion != "" && p.PipelineName == "" {
		return FilterSet{}, wrap.Error(ErrInvalidFilterCombination, "'pipeline_version' requires 'pipeline_name'")
	}

	var errs []error
	terms := []struct {
		category vocab.Category
		raw      string
		dst      *vocab.Term
	}{
		{vocab.CategorySex, p.Sex, &fs.Sex},
		{vocab.CategoryDiagnosis, p.Diagnosis, &fs.Diagnosis},
		{vocab.CategoryAssessment, p.Assessment, &fs.Assessment},
		{vocab.CategoryImageModality, p.ImageModal, &fs.ImageModal},
		{vocab.CategoryPipeline, p.PipelineName, &fs.PipelineName},
	}
	for _, t := range terms {
		if t.raw == "" {
			continue
		}
		term, err := vocab.ValidateTerm(t.category, t.raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*t.dst = term
	}
	if len(errs) > 0 {
		return FilterSet{}, fmt.Errorf("%w: %w", ErrInvalidFilterCombination, errors.Join(errs...))
	}

	return fs, nil
}

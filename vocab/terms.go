package vocab

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"hermannm.dev/wrap"
)

// ErrInvalidTerm is returned when a value is not a usable controlled term.
var ErrInvalidTerm = errors.New("invalid controlled term")

// local ids are inlined into queries, so only a conservative alphabet is allowed
var localIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+(\.[A-Za-z0-9_\-]+)*$`)

// Term is a controlled term in prefix:id form.
type Term struct {
	Prefix string
	ID     string
}

// ParseTerm accepts a CURIE (snomed:248152002) or a full IRI from a known
// namespace.
func ParseTerm(raw string) (Term, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Term{}, wrap.Error(ErrInvalidTerm, "empty term")
	}
	curie := CompactIRI(raw)

	prefix, id, found := strings.Cut(curie, ":")
	if !found || prefix == "" || id == "" {
		return Term{}, fmt.Errorf("%w: '%s' is not in prefix:id form", ErrInvalidTerm, raw)
	}
	if _, ok := LookupNamespace(prefix); !ok {
		return Term{}, fmt.Errorf("%w: unknown namespace '%s'", ErrInvalidTerm, prefix)
	}
	if !localIDPattern.MatchString(id) {
		return Term{}, fmt.Errorf("%w: '%s' contains unsupported characters", ErrInvalidTerm, raw)
	}
	return Term{Prefix: prefix, ID: id}, nil
}

// MustParseTerm is ParseTerm for package-level constants.
func MustParseTerm(raw string) Term {
	term, err := ParseTerm(raw)
	if err != nil {
		panic(err)
	}
	return term
}

func (t Term) String() string {
	return t.Prefix + ":" + t.ID
}

// IRI expands the term with its namespace.
func (t Term) IRI() string {
	ns, _ := LookupNamespace(t.Prefix)
	return ns.IRI + t.ID
}

func (t Term) IsZero() bool {
	return t.Prefix == "" && t.ID == ""
}

// ControlTerm marks a healthy-control subject group.
var ControlTerm = MustParseTerm("ncit:C94342")

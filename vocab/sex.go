package vocab

import (
	"fmt"
	"strings"

	"hermannm.dev/enumnames"
)

type Sex uint8

const (
	SexMale   Sex = 1
	SexFemale Sex = 2
	SexOther  Sex = 3
)

var sexNames = enumnames.NewMap(map[Sex]string{
	SexMale:   "snomed:248153007",
	SexFemale: "snomed:248152002",
	SexOther:  "snomed:32570681000036106",
})

var sexLabels = map[Sex]string{
	SexMale:   "male",
	SexFemale: "female",
	SexOther:  "other",
}

var allSexes = []Sex{SexMale, SexFemale, SexOther}

func (sex Sex) IsValid() bool {
	return sexNames.ContainsEnumValue(sex)
}

func (sex Sex) String() string {
	return sexNames.GetNameOrFallback(sex, "[INVALID SEX]")
}

func (sex Sex) MarshalJSON() ([]byte, error) {
	return sexNames.MarshalToNameJSON(sex)
}

func (sex *Sex) UnmarshalJSON(bytes []byte) error {
	return sexNames.UnmarshalFromNameJSON(bytes, sex)
}

func (sex Sex) Label() string {
	return sexLabels[sex]
}

func (sex Sex) Term() Term {
	return MustParseTerm(sex.String())
}

// ParseSex accepts a SNOMED CURIE, its full IRI or a plain label ("female").
func ParseSex(raw string) (Sex, error) {
	raw = strings.TrimSpace(raw)
	curie := CompactIRI(raw)
	for _, sex := range allSexes {
		if curie == sex.String() || strings.EqualFold(raw, sex.Label()) {
			return sex, nil
		}
	}
	return 0, fmt.Errorf("%w: unrecognized sex '%s'", ErrInvalidTerm, raw)
}

package vocab

import (
	"fmt"

	"hermannm.dev/enumnames"
)

// SessionType is one of the two kinds of session the graph records.
type SessionType uint8

const (
	SessionPhenotypic SessionType = 1
	SessionImaging    SessionType = 2
)

var sessionTypeNames = enumnames.NewMap(map[SessionType]string{
	SessionPhenotypic: "nb:PhenotypicSession",
	SessionImaging:    "nb:ImagingSession",
})

func (sessionType SessionType) IsValid() bool {
	return sessionTypeNames.ContainsEnumValue(sessionType)
}

func (sessionType SessionType) String() string {
	return sessionTypeNames.GetNameOrFallback(sessionType, "[INVALID SESSION TYPE]")
}

func (sessionType SessionType) MarshalJSON() ([]byte, error) {
	return sessionTypeNames.MarshalToNameJSON(sessionType)
}

func (sessionType *SessionType) UnmarshalJSON(bytes []byte) error {
	return sessionTypeNames.UnmarshalFromNameJSON(bytes, sessionType)
}

// ParseSessionType accepts the CURIE or full IRI of a session class.
func ParseSessionType(raw string) (SessionType, error) {
	curie := CompactIRI(raw)
	for _, sessionType := range []SessionType{SessionPhenotypic, SessionImaging} {
		if curie == sessionType.String() {
			return sessionType, nil
		}
	}
	return 0, fmt.Errorf("unrecognized session type '%s'", raw)
}

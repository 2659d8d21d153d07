package domain

import "strings"

// Known cities.
const (
	CityIzmir    = "İzmir"
	CityAnkara   = "Ankara"
	CityIstanbul = "İstanbul"
)

// Cities lists every tracked city in refresh order.
var Cities = []string{CityIzmir, CityAnkara, CityIstanbul}

// Type classifies the root cause of an interruption.
type Type string

const (
	TypePlanned Type = "PLANNED"
	TypeFault   Type = "FAULT"
)

// Placeholder values used when the upstream omits a field.
const (
	NeighborhoodUnspecified = "Belirtilmemiş"
	TimeWindowAnnounced     = "Belirtilen Saatler Arasında"
	ReasonPlannedWork       = "Planlı Çalışma"
)

// Record is one water-supply interruption in the unified snapshot format.
type Record struct {
	City         string `json:"city"`
	Type         Type   `json:"type,omitempty"`
	District     string `json:"district"`
	Neighborhood string `json:"neighborhood"`
	TimeWindow   string `json:"time_window"`
	Reason       string `json:"reason,omitempty"`
}

// IsKnownCity reports whether city is one of [Cities].
func IsKnownCity(city string) bool {
	for _, c := range Cities {
		if c == city {
			return true
		}
	}
	return false
}

// Valid reports whether t is PLANNED or FAULT.
func (t Type) Valid() bool {
	return t == TypePlanned || t == TypeFault
}

// ParseType maps Turkish and English cause labels to a Type. Unknown labels
// yield the empty Type so the field is omitted from the snapshot.
func ParseType(label string) Type {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "PLANLI", "PLANNED":
		return TypePlanned
	case "ARIZA", "ARİZA", "FAULT":
		return TypeFault
	default:
		return ""
	}
}

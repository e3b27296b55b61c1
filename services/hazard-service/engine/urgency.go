package engine

import "fmt"

// Fixed urgency table. The mapping is closed: a type outside it fails with
// ErrUnknownHazardType instead of sorting with an undefined priority.
var urgencyByType = map[string]int{
	"Physical Hazard":   5,
	"Biological Hazard": 4,
	"Chemical Hazard":   4,
	"Ergonomic Hazard":  3,
	"Electrical Hazard": 4,
	"Safety Hazard":     4,
	"Earthquake":        3,
	"Flood":             3,
	"Extreme Weather":   3,
	"Sinkhole":          2,
	"Others":            2,
}

// UrgencyOf returns the display priority (2-5) for a hazard type.
func UrgencyOf(hazardType string) (int, error) {
	urgency, ok := urgencyByType[hazardType]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownHazardType, hazardType)
	}
	return urgency, nil
}

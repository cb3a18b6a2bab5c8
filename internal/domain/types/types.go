// Package types contains the ordinal enums shared across the application.
package types

// RiskLevel is the ordinal classification of a composite risk score.
type RiskLevel string

// Risk levels from most to least severe.
const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
	RiskMinimal  RiskLevel = "MINIMAL"
)

// RiskLevels lists every level, most severe first.
var RiskLevels = []RiskLevel{RiskCritical, RiskHigh, RiskMedium, RiskLow, RiskMinimal} //nolint:gochecknoglobals // closed enum

// Severity returns 4 for CRITICAL down to 0 for MINIMAL, and -1 for unknown values.
func (l RiskLevel) Severity() int {
	switch l {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	case RiskMinimal:
		return 0
	default:
		return -1
	}
}

// AtLeast reports whether l is as severe as other or more.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.Severity() >= other.Severity() && l.Severity() >= 0
}

// Valid reports whether l is one of the known levels.
func (l RiskLevel) Valid() bool { return l.Severity() >= 0 }

// Priority ranks recommendations.
type Priority string

// Recommendation priorities.
const (
	PriorityUrgent Priority = "URGENT"
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

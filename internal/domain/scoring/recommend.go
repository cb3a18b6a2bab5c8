package scoring

import "github.com/sigte/riskengine/internal/domain/types"

// Recommendation categories.
const (
	CategoryAttendance   = "ATTENDANCE"
	CategoryPunctuality  = "PUNCTUALITY"
	CategorySpecialNeeds = "SPECIAL_NEEDS"
	CategoryEmergency    = "EMERGENCY"
	CategoryMonitoring   = "MONITORING"
)

// Rule thresholds.
const (
	lowAttendanceRate = 80
	frequentDelays    = 3
)

// Recommendation is a generated, unstored suggestion.
type Recommendation struct {
	Category    string         `json:"category"`
	Priority    types.Priority `json:"priority"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
}

// Recommend applies factor rules in calculator order, then the level rule.
// Degraded factors carry no metrics and trigger no factor rule.
func Recommend(factors []Factor, level types.RiskLevel) []Recommendation {
	recs := []Recommendation{}
	for _, k := range Kinds {
		f, ok := findFactor(factors, k)
		if !ok {
			continue
		}
		switch {
		case f.Frequency != nil && f.Frequency.AttendanceRate < lowAttendanceRate:
			recs = append(recs, Recommendation{
				Category:    CategoryAttendance,
				Priority:    types.PriorityHigh,
				Action:      "Start an attendance incentive programme",
				Description: "Low attendance rate detected. Contact the family and follow up daily.",
			})
		case f.Punctuality != nil && f.Punctuality.DelayIncidents > frequentDelays:
			recs = append(recs, Recommendation{
				Category:    CategoryPunctuality,
				Priority:    types.PriorityMedium,
				Action:      "Review transport schedule and logistics",
				Description: "Repeated delays detected. Check route timing and pickup logistics.",
			})
		case f.Socioeconomic != nil && f.Socioeconomic.SpecialNeeds:
			recs = append(recs, Recommendation{
				Category:    CategorySpecialNeeds,
				Priority:    types.PriorityHigh,
				Action:      "Ensure specialised support for special needs",
				Description: "Student with special needs requires specialised follow-up.",
			})
		}
	}

	switch level {
	case types.RiskCritical:
		recs = append(recs, Recommendation{
			Category:    CategoryEmergency,
			Priority:    types.PriorityUrgent,
			Action:      "Immediate intervention required",
			Description: "Critical dropout risk. Contact the family and pedagogical team immediately.",
		})
	case types.RiskHigh:
		recs = append(recs, Recommendation{
			Category:    CategoryMonitoring,
			Priority:    types.PriorityHigh,
			Action:      "Start intensive monitoring",
			Description: "Weekly follow-up and additional pedagogical support.",
		})
	}
	return recs
}

func findFactor(factors []Factor, k FactorKind) (Factor, bool) {
	for _, f := range factors {
		if f.Kind == k {
			return f, true
		}
	}
	return Factor{}, false
}

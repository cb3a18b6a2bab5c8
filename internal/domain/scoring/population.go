package scoring

import (
	"fmt"
	"sort"
	"time"

	"github.com/sigte/riskengine/internal/domain/types"
)

// DefaultTopN bounds the ranked list of a population summary.
const DefaultTopN = 50

const systemAlertPercentage = 20

// Distribution is the five-bucket histogram of risk levels.
type Distribution struct {
	Critical int `json:"CRITICAL"`
	High     int `json:"HIGH"`
	Medium   int `json:"MEDIUM"`
	Low      int `json:"LOW"`
	Minimal  int `json:"MINIMAL"`
}

// Add counts one assessment at level l. Unknown levels are ignored.
func (d *Distribution) Add(l types.RiskLevel) {
	switch l {
	case types.RiskCritical:
		d.Critical++
	case types.RiskHigh:
		d.High++
	case types.RiskMedium:
		d.Medium++
	case types.RiskLow:
		d.Low++
	case types.RiskMinimal:
		d.Minimal++
	}
}

// Total returns the number of counted assessments.
func (d Distribution) Total() int {
	return d.Critical + d.High + d.Medium + d.Low + d.Minimal
}

// HighRiskPercentage returns (CRITICAL+HIGH)/total*100, 0 for an empty histogram.
func (d Distribution) HighRiskPercentage() float64 {
	total := d.Total()
	if total == 0 {
		return 0
	}
	return float64(d.Critical+d.High) / float64(total) * 100
}

// PopulationEntry is the ranked-list view of one assessment.
type PopulationEntry struct {
	StudentID          string          `json:"student_id"`
	StudentName        string          `json:"student_name"`
	RiskScore          float64         `json:"risk_score"`
	RiskLevel          types.RiskLevel `json:"risk_level"`
	PrimaryRiskFactors []string        `json:"primary_risk_factors"`
}

// SystemRecommendation is a cohort-level suggestion.
type SystemRecommendation struct {
	Type     string         `json:"type"`
	Priority types.Priority `json:"priority"`
	Message  string         `json:"message"`
}

// PopulationSummary aggregates many assessments.
type PopulationSummary struct {
	TotalAnalyzed      int                    `json:"total_students_analyzed"`
	Skipped            int                    `json:"skipped"`
	HighRiskPercentage float64                `json:"high_risk_percentage"`
	Distribution       Distribution           `json:"risk_distribution"`
	AnalyzedAt         time.Time              `json:"analysis_date"`
	TopStudents        []PopulationEntry      `json:"student_analyses"`
	Recommendations    []SystemRecommendation `json:"recommendations"`
	// Degraded is set when the active-student listing was unavailable.
	Degraded bool `json:"degraded,omitempty"`
}

// Summarize builds the histogram, the top-N ranking and system recommendations.
// Assessments must be in discovery order; ties keep that order.
func Summarize(assessments []Assessment, topN int, now time.Time) PopulationSummary {
	if topN <= 0 {
		topN = DefaultTopN
	}
	var dist Distribution
	entries := make([]PopulationEntry, 0, len(assessments))
	for _, a := range assessments {
		dist.Add(a.RiskLevel)
		entries = append(entries, PopulationEntry{
			StudentID:          a.StudentID,
			StudentName:        a.StudentName,
			RiskScore:          a.RiskScore,
			RiskLevel:          a.RiskLevel,
			PrimaryRiskFactors: PrimaryRiskFactors(a.Factors),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RiskScore > entries[j].RiskScore
	})
	if len(entries) > topN {
		entries = entries[:topN]
	}
	return PopulationSummary{
		TotalAnalyzed:      len(assessments),
		HighRiskPercentage: round(dist.HighRiskPercentage(), 1),
		Distribution:       dist,
		AnalyzedAt:         now,
		TopStudents:        entries,
		Recommendations:    SystemRecommendations(dist),
	}
}

// SystemRecommendations derives cohort-level actions. An empty histogram yields none.
func SystemRecommendations(d Distribution) []SystemRecommendation {
	recs := []SystemRecommendation{}
	if d.Total() == 0 {
		return recs
	}
	if pct := d.HighRiskPercentage(); pct > systemAlertPercentage {
		recs = append(recs, SystemRecommendation{
			Type:     "SYSTEM_ALERT",
			Priority: types.PriorityUrgent,
			Message:  fmt.Sprintf("%.1f%% of students at high risk - urgent policy review needed", pct),
		})
	}
	if d.Critical > 0 {
		recs = append(recs, SystemRecommendation{
			Type:     "IMMEDIATE_ACTION",
			Priority: types.PriorityHigh,
			Message:  fmt.Sprintf("%d student(s) at critical risk need immediate intervention", d.Critical),
		})
	}
	recs = append(recs, SystemRecommendation{
		Type:     "MONITORING",
		Priority: types.PriorityMedium,
		Message:  "Run a preventive student engagement programme",
	})
	return recs
}

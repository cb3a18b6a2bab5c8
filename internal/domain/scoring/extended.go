package scoring

import (
	"math"
	"sort"

	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/model"
)

// The sub-analyses below are heuristic estimates derived from attendance,
// guardian and intervention data. They are illustrative only: no trained
// model sits behind them and they must not drive decisions on their own.

// EstimateNote is attached to every extended analysis.
const EstimateNote = "illustrative heuristic estimates, not a trained model"

const (
	trendDelta       = 5.0
	spreadThreshold  = 0.2
	fullConfidenceAt = 30
)

// Extended holds the optional illustrative sub-analyses.
type Extended struct {
	Note       string             `json:"note"`
	Behavioral BehavioralPattern  `json:"behavioral_patterns"`
	Academic   AcademicTrajectory `json:"academic_trajectory"`
	Social     SocialIndicators   `json:"social_indicators"`
	Predictive PredictiveEstimate `json:"predictive_model"`
}

// BehavioralPattern summarises how attendance is distributed over time.
type BehavioralPattern struct {
	PatternType      string             `json:"pattern_type"`
	Confidence       float64            `json:"confidence"`
	Trend            string             `json:"trend"`
	DayOfWeekPattern map[string]float64 `json:"day_of_week_pattern"`
}

// AcademicTrajectory is a proxy built from attendance and intervention history.
type AcademicTrajectory struct {
	GradeProgression      string `json:"grade_progression"`
	PerformanceTrend      string `json:"performance_trend"`
	AcademicInterventions int    `json:"academic_interventions"`
}

// SocialIndicators is derived from guardian records.
type SocialIndicators struct {
	FamilyEngagement  string   `json:"family_engagement"`
	SocialRiskFactors []string `json:"social_risk_factors"`
}

// PredictiveEstimate combines three weighted factors into an evasion probability.
type PredictiveEstimate struct {
	EvasionProbability       float64 `json:"evasion_probability"`
	ConfidenceLevel          float64 `json:"confidence_level"`
	InterventionTimelineDays int     `json:"recommended_intervention_timeline"`
	ModelVersion             string  `json:"model_version"`
}

// BuildExtended derives the sub-analyses. records should be the attendance
// inside the assessment window for this student.
func BuildExtended(st model.Student, factors []Factor, records []model.AttendanceRecord) *Extended {
	b := Behavioral(records)
	academic := AcademicTrajectory{
		GradeProgression: "ON_TRACK",
		PerformanceTrend: b.Trend,
	}
	if f, ok := findFactor(factors, Frequency); ok && f.RiskScore >= 50 {
		academic.GradeProgression = "AT_RISK"
	}
	if f, ok := findFactor(factors, InterventionHistory); ok && f.Interventions != nil {
		academic.AcademicInterventions = f.Interventions.Total
	}
	p := Predict(factors)
	p.ConfidenceLevel = b.Confidence
	return &Extended{
		Note:       EstimateNote,
		Behavioral: b,
		Academic:   academic,
		Social:     Social(st),
		Predictive: p,
	}
}

// Behavioral computes per-weekday rates and a first-half versus second-half trend.
func Behavioral(records []model.AttendanceRecord) BehavioralPattern {
	out := BehavioralPattern{
		PatternType:      "INSUFFICIENT_DATA",
		Trend:            "STABLE",
		DayOfWeekPattern: map[string]float64{},
	}
	if len(records) == 0 {
		return out
	}
	sorted := make([]model.AttendanceRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	lo, hi := 1.0, 0.0
	for name, t := range attendance.ByWeekday(sorted) {
		rate := round(float64(t.Present)/float64(t.TotalRecords), 2)
		out.DayOfWeekPattern[name] = rate
		lo = math.Min(lo, rate)
		hi = math.Max(hi, rate)
	}

	span := attendance.Window{From: model.Day(sorted[0].Date), To: model.Day(sorted[len(sorted)-1].Date)}
	mid := len(sorted) / 2
	if mid > 0 {
		first := attendance.Aggregate(sorted[:mid], span, "")
		second := attendance.Aggregate(sorted[mid:], span, "")
		switch delta := second.Rate - first.Rate; {
		case delta > trendDelta:
			out.Trend = "IMPROVING"
		case delta < -trendDelta:
			out.Trend = "DECLINING"
		}
	}

	overall := attendance.Aggregate(sorted, span, "")
	switch {
	case overall.Rate >= 90:
		out.PatternType = "REGULAR_ATTENDANCE"
	case hi-lo > spreadThreshold:
		out.PatternType = "WEEKDAY_CONCENTRATED_ABSENCE"
	default:
		out.PatternType = "IRREGULAR_ATTENDANCE"
	}
	out.Confidence = round(math.Min(1, float64(len(sorted))/fullConfidenceAt), 2)
	return out
}

// Social grades family engagement from guardian contact completeness.
func Social(st model.Student) SocialIndicators {
	_, indicators := SocioeconomicScore(st)
	if indicators == nil {
		indicators = []string{}
	}
	out := SocialIndicators{FamilyEngagement: "HIGH", SocialRiskFactors: indicators}
	if len(st.Guardians) == 0 {
		out.FamilyEngagement = "LOW"
		return out
	}
	for _, g := range st.Guardians {
		if !g.ContactComplete() {
			out.FamilyEngagement = "MEDIUM"
			break
		}
	}
	return out
}

// Predict sums the frequency, incident and socioeconomic weighted scores into
// a probability in [0,1] and maps it to an intervention timeline.
func Predict(factors []Factor) PredictiveEstimate {
	var sum float64
	for _, k := range []FactorKind{Frequency, Incidents, Socioeconomic} {
		if f, ok := findFactor(factors, k); ok {
			sum += f.WeightedScore
		}
	}
	p := math.Min(math.Max(sum/100, 0), 1)
	return PredictiveEstimate{
		EvasionProbability:       round(p, 3),
		InterventionTimelineDays: TimelineDays(p),
		ModelVersion:             "heuristic-v1",
	}
}

// TimelineDays maps an evasion probability to days until intervention.
func TimelineDays(p float64) int {
	switch {
	case p > 0.8:
		return 7
	case p > 0.6:
		return 14
	case p > 0.4:
		return 30
	default:
		return 60
	}
}

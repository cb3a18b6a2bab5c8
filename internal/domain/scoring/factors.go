// Package scoring turns aggregated student data into weighted risk factors,
// a bounded composite score, a risk level and recommendations.
// Every function in this package is pure.
package scoring

import (
	"math"

	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/model"
)

// FactorKind is the closed set of risk factors.
type FactorKind int

// Factors in calculator order.
const (
	Frequency FactorKind = iota
	Punctuality
	Incidents
	Socioeconomic
	InterventionHistory

	NumFactors = 5
)

// Kinds lists every factor in calculator order.
var Kinds = [NumFactors]FactorKind{Frequency, Punctuality, Incidents, Socioeconomic, InterventionHistory} //nolint:gochecknoglobals // closed enum

var kindNames = [NumFactors]string{"frequency", "punctuality", "incidents", "socioeconomic", "interventions"} //nolint:gochecknoglobals // closed enum

func (k FactorKind) String() string {
	if k < 0 || int(k) >= NumFactors {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind maps a factor name back to its kind.
func ParseKind(name string) (FactorKind, bool) {
	for i, n := range kindNames {
		if n == name {
			return FactorKind(i), true
		}
	}
	return 0, false
}

// MarshalText renders the kind as its name.
func (k FactorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Weights holds one weight per factor, indexed by FactorKind.
type Weights [NumFactors]float64

// DefaultWeights are the production weights.
func DefaultWeights() Weights {
	return Weights{
		Frequency:           0.40,
		Punctuality:         0.15,
		Incidents:           0.20,
		Socioeconomic:       0.15,
		InterventionHistory: 0.10,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

const weightTolerance = 1e-9

// Validate checks every weight is in (0,1] and the total is 1.
func (w Weights) Validate() error {
	for i, v := range w {
		if v <= 0 || v > 1 || math.IsNaN(v) {
			return invalidWeight(FactorKind(i), v)
		}
	}
	if math.Abs(w.Sum()-1) > weightTolerance {
		return invalidSum(w.Sum())
	}
	return nil
}

// NeutralScore is the single error-to-default policy: the risk score a factor
// takes when its data source cannot be read.
func NeutralScore(k FactorKind) float64 {
	switch k {
	case Frequency, Socioeconomic:
		return 50
	case Punctuality, Incidents, InterventionHistory:
		return 25
	default:
		return 0
	}
}

// FrequencyScore maps an attendance rate to risk. Thresholds are inclusive on the safe side.
func FrequencyScore(rate float64) float64 {
	switch {
	case rate >= 95:
		return 0
	case rate >= 90:
		return 10
	case rate >= 80:
		return 25
	case rate >= 70:
		return 50
	case rate >= 60:
		return 75
	default:
		return 100
	}
}

// PunctualityScore maps a count of delay incidents to risk.
func PunctualityScore(delays int) float64 {
	switch {
	case delays <= 0:
		return 0
	case delays <= 2:
		return 15
	case delays <= 5:
		return 35
	case delays <= 10:
		return 60
	default:
		return 85
	}
}

// IncidentScore maps a count of high/critical route incidents to risk.
func IncidentScore(incidents int) float64 {
	switch {
	case incidents <= 0:
		return 0
	case incidents <= 2:
		return 10
	case incidents <= 5:
		return 25
	case incidents <= 10:
		return 50
	default:
		return 75
	}
}

// Socioeconomic indicator names.
const (
	IndicatorSpecialNeeds      = "special_needs"
	IndicatorNoGuardian        = "no_guardian_info"
	IndicatorMultipleGuardians = "multiple_guardians"
	IndicatorIncompleteContact = "incomplete_contact"
	IndicatorCompanion         = "requires_companion"
)

// SocioeconomicScore adds indicator points for the student, capped at 100.
func SocioeconomicScore(st model.Student) (float64, []string) {
	var (
		score      float64
		indicators []string
	)
	if st.SpecialNeeds {
		indicators = append(indicators, IndicatorSpecialNeeds)
		score += 15
	}
	switch n := len(st.Guardians); {
	case n == 0:
		indicators = append(indicators, IndicatorNoGuardian)
		score += 25
	case n > 2:
		indicators = append(indicators, IndicatorMultipleGuardians)
		score += 10
	}
	incomplete := 0
	for _, g := range st.Guardians {
		if !g.ContactComplete() {
			incomplete++
		}
	}
	if incomplete > 0 {
		indicators = append(indicators, IndicatorIncompleteContact)
		score += float64(incomplete) * 5
	}
	if st.RequiresCompanion {
		indicators = append(indicators, IndicatorCompanion)
		score += 10
	}
	return math.Min(score, 100), indicators
}

// InterventionTally counts outcomes in an intervention history window.
type InterventionTally struct {
	Total      int `json:"total_interventions"`
	Successful int `json:"successful_interventions"`
	Failed     int `json:"failed_interventions"`
}

// TallyInterventions counts completed and failed records.
func TallyInterventions(recs []model.InterventionRecord) InterventionTally {
	t := InterventionTally{Total: len(recs)}
	for _, r := range recs {
		switch r.Status {
		case model.InterventionCompleted:
			t.Successful++
		case model.InterventionFailed:
			t.Failed++
		}
	}
	return t
}

// InterventionScore maps an intervention history to risk. Rules are evaluated in order.
func InterventionScore(t InterventionTally) float64 {
	switch {
	case t.Total == 0:
		return 0
	case t.Failed > t.Successful:
		return 80
	case t.Total > 3:
		return 60
	case t.Successful > t.Failed:
		return 20
	default:
		return 40
	}
}

// FrequencyDetail carries the raw attendance metrics.
type FrequencyDetail struct {
	AttendanceRate float64 `json:"attendance_rate"`
	TotalDays      int     `json:"total_days"`
	PresentDays    int     `json:"present_days"`
	AbsentDays     int     `json:"absent_days"`
}

// PunctualityDetail carries the delay count.
type PunctualityDetail struct {
	DelayIncidents int `json:"delay_incidents"`
}

// IncidentDetail carries the route incident count.
type IncidentDetail struct {
	RouteIncidents int    `json:"route_incidents"`
	RouteID        string `json:"route_id,omitempty"`
}

// SocioeconomicDetail carries the indicators that contributed.
type SocioeconomicDetail struct {
	Indicators        []string `json:"risk_indicators"`
	SpecialNeeds      bool     `json:"special_needs"`
	GuardianCount     int      `json:"guardian_count"`
	RequiresCompanion bool     `json:"requires_companion"`
}

// InterventionDetail carries the history tally.
type InterventionDetail struct {
	InterventionTally
	SuccessRate float64 `json:"success_rate"`
}

// Factor is one weighted dimension of risk.
// Exactly one detail pointer is set unless the factor is degraded.
type Factor struct {
	Kind          FactorKind `json:"name"`
	RiskScore     float64    `json:"risk_score"`
	Weight        float64    `json:"weight"`
	WeightedScore float64    `json:"weighted_score"`
	Degraded      bool       `json:"degraded"`

	Frequency     *FrequencyDetail     `json:"frequency,omitempty"`
	Punctuality   *PunctualityDetail   `json:"punctuality,omitempty"`
	Incidents     *IncidentDetail      `json:"incidents,omitempty"`
	Socioeconomic *SocioeconomicDetail `json:"socioeconomic,omitempty"`
	Interventions *InterventionDetail  `json:"interventions,omitempty"`
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func frequencyDetail(s attendance.Summary) *FrequencyDetail {
	return &FrequencyDetail{
		AttendanceRate: round(s.Rate, 1),
		TotalDays:      s.TotalRecords,
		PresentDays:    s.Present,
		AbsentDays:     s.Absent,
	}
}

package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/internal/domain/types"
)

// Review cadence for a fresh assessment.
const reviewAfter = 30 * 24 * time.Hour

// Option applies a configuration option to the Composer.
type Option func(*Composer)

// WithWeights replaces all weights.
func WithWeights(w Weights) Option {
	return func(c *Composer) {
		c.weights = w
	}
}

// WithWeightsFromConfig overrides weights by factor name. Unknown names fail construction.
func WithWeightsFromConfig(overrides map[string]float64) Option {
	return func(c *Composer) {
		for name, v := range overrides {
			k, ok := ParseKind(name)
			if !ok {
				c.err = fmt.Errorf("%w: unknown factor %q", ErrInvalidWeights, name)
				return
			}
			c.weights[k] = v
		}
	}
}

// Composer builds weighted factors and combines them into a bounded score.
// Weights are validated once at construction.
type Composer struct {
	weights Weights
	err     error
}

// NewComposer returns a Composer with default weights unless overridden.
func NewComposer(opts ...Option) (*Composer, error) {
	c := &Composer{weights: DefaultWeights()}
	for _, opt := range opts {
		opt(c)
	}
	if c.err != nil {
		return nil, c.err
	}
	if err := c.weights.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Weights returns a copy of the configured weights.
func (c *Composer) Weights() Weights { return c.weights }

func (c *Composer) factor(k FactorKind, score float64) Factor {
	w := c.weights[k]
	return Factor{Kind: k, RiskScore: score, Weight: w, WeightedScore: score * w}
}

// Neutral returns the degraded factor used when k's data source failed.
func (c *Composer) Neutral(k FactorKind) Factor {
	f := c.factor(k, NeutralScore(k))
	f.Degraded = true
	return f
}

// FrequencyFactor scores an attendance summary.
func (c *Composer) FrequencyFactor(s attendance.Summary) Factor {
	f := c.factor(Frequency, FrequencyScore(s.Rate))
	f.Frequency = frequencyDetail(s)
	return f
}

// PunctualityFactor scores a delay count.
func (c *Composer) PunctualityFactor(delays int) Factor {
	f := c.factor(Punctuality, PunctualityScore(delays))
	f.Punctuality = &PunctualityDetail{DelayIncidents: delays}
	return f
}

// IncidentFactor scores the high/critical incident count on a route.
func (c *Composer) IncidentFactor(routeID string, incidents int) Factor {
	f := c.factor(Incidents, IncidentScore(incidents))
	f.Incidents = &IncidentDetail{RouteIncidents: incidents, RouteID: routeID}
	return f
}

// SocioeconomicFactor scores the student's profile.
func (c *Composer) SocioeconomicFactor(st model.Student) Factor {
	score, indicators := SocioeconomicScore(st)
	f := c.factor(Socioeconomic, score)
	if indicators == nil {
		indicators = []string{}
	}
	f.Socioeconomic = &SocioeconomicDetail{
		Indicators:        indicators,
		SpecialNeeds:      st.SpecialNeeds,
		GuardianCount:     len(st.Guardians),
		RequiresCompanion: st.RequiresCompanion,
	}
	return f
}

// InterventionFactor scores the intervention history in the trailing window.
func (c *Composer) InterventionFactor(recs []model.InterventionRecord) Factor {
	t := TallyInterventions(recs)
	f := c.factor(InterventionHistory, InterventionScore(t))
	d := &InterventionDetail{InterventionTally: t}
	if t.Total > 0 {
		d.SuccessRate = round(float64(t.Successful)/float64(t.Total)*100, 1)
	}
	f.Interventions = d
	return f
}

// Compose sums weighted scores, clamps to [0,100] and rounds to 2 decimals.
// A missing factor contributes nothing.
func Compose(factors []Factor) float64 {
	var total float64
	for _, f := range factors {
		total += f.WeightedScore
	}
	return round(math.Max(0, math.Min(100, total)), 2)
}

// Classify maps a composite score to its level. Boundaries belong to the higher band.
func Classify(score float64) types.RiskLevel {
	switch {
	case score >= 80:
		return types.RiskCritical
	case score >= 60:
		return types.RiskHigh
	case score >= 40:
		return types.RiskMedium
	case score >= 20:
		return types.RiskLow
	default:
		return types.RiskMinimal
	}
}

// HistoryEntry is a read-only view of a past intervention.
type HistoryEntry struct {
	Date    time.Time `json:"date"`
	Type    string    `json:"type"`
	Status  string    `json:"status"`
	Outcome string    `json:"outcome"`
}

// Assessment is the full risk picture for one student at one instant.
type Assessment struct {
	StudentID           string           `json:"student_id"`
	StudentName         string           `json:"student_name"`
	AssessedAt          time.Time        `json:"analysis_date"`
	RiskScore           float64          `json:"risk_score"`
	RiskLevel           types.RiskLevel  `json:"risk_level"`
	Factors             []Factor         `json:"risk_factors"`
	DegradedFactors     []string         `json:"degraded_factors"`
	Recommendations     []Recommendation `json:"recommendations"`
	InterventionHistory []HistoryEntry   `json:"intervention_history"`
	NextReviewDate      time.Time        `json:"next_review_date"`
	Extended            *Extended        `json:"extended,omitempty"`
}

// Factor returns the factor of kind k, if present.
func (a Assessment) Factor(k FactorKind) (Factor, bool) {
	return findFactor(a.Factors, k)
}

// Assess composes factors for a student into an assessment.
func Assess(st model.Student, factors []Factor, now time.Time) Assessment {
	score := Compose(factors)
	level := Classify(score)
	degraded := []string{}
	for _, f := range factors {
		if f.Degraded {
			degraded = append(degraded, f.Kind.String())
		}
	}
	return Assessment{
		StudentID:           st.ID,
		StudentName:         st.Name,
		AssessedAt:          now,
		RiskScore:           score,
		RiskLevel:           level,
		Factors:             factors,
		DegradedFactors:     degraded,
		Recommendations:     Recommend(factors, level),
		InterventionHistory: []HistoryEntry{},
		NextReviewDate:      now.Add(reviewAfter),
	}
}

// PrimaryRiskFactors names the factors scoring above 50.
func PrimaryRiskFactors(factors []Factor) []string {
	out := []string{}
	for _, f := range factors {
		if f.RiskScore > 50 {
			out = append(out, f.Kind.String())
		}
	}
	return out
}

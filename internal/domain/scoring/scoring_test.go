package scoring

import (
	"errors"
	"testing"
	"time"

	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func mustComposer() *Composer {
	c, err := NewComposer()
	if err != nil {
		panic(err)
	}
	return c
}

func completeGuardians(n int) []model.Guardian {
	out := make([]model.Guardian, n)
	for i := range out {
		out[i] = model.Guardian{Name: "g", Phone: "555", Email: "g@example.org"}
	}
	return out
}

func summary(total, present int) attendance.Summary {
	var recs []model.AttendanceRecord
	for i := 0; i < total; i++ {
		recs = append(recs, model.AttendanceRecord{StudentID: "s", Date: now.AddDate(0, 0, -i), Present: i < present})
	}
	return attendance.Aggregate(recs, attendance.NewWindow(now, 30), "s")
}

func TestWeights(t *testing.T) {
	Convey("Given the default weights", t, func() {
		w := DefaultWeights()

		Convey("Then they should sum to one", func() {
			So(w.Sum(), ShouldAlmostEqual, 1.0, 1e-9)
			So(w.Validate(), ShouldBeNil)
		})

		Convey("Then the composer should expose them unchanged", func() {
			So(mustComposer().Weights(), ShouldResemble, w)
		})
	})

	Convey("Given invalid weight overrides", t, func() {
		Convey("When the sum is not one", func() {
			_, err := NewComposer(WithWeightsFromConfig(map[string]float64{"frequency": 0.5}))
			So(errors.Is(err, ErrInvalidWeights), ShouldBeTrue)
		})

		Convey("When a weight is zero", func() {
			w := DefaultWeights()
			w[Frequency] = 0
			w[Punctuality] = 0.55
			_, err := NewComposer(WithWeights(w))
			So(errors.Is(err, ErrInvalidWeights), ShouldBeTrue)
		})

		Convey("When a factor name is unknown", func() {
			_, err := NewComposer(WithWeightsFromConfig(map[string]float64{"grades": 0.1}))
			So(errors.Is(err, ErrInvalidWeights), ShouldBeTrue)
		})

		Convey("When overrides keep the sum at one", func() {
			c, err := NewComposer(WithWeightsFromConfig(map[string]float64{"frequency": 0.30, "incidents": 0.30}))
			So(err, ShouldBeNil)
			So(c.Weights()[Frequency], ShouldEqual, 0.30)
		})
	})
}

func TestStepFunctions(t *testing.T) {
	Convey("Given the frequency step function", t, func() {
		cases := map[float64]float64{100: 0, 95: 0, 94.9: 10, 90: 10, 80: 25, 70: 50, 60: 75, 59.9: 100, 0: 100}
		for rate, want := range cases {
			So(FrequencyScore(rate), ShouldEqual, want)
		}
	})

	Convey("Given the punctuality step function", t, func() {
		cases := map[int]float64{0: 0, 1: 15, 2: 15, 3: 35, 5: 35, 6: 60, 10: 60, 11: 85}
		for n, want := range cases {
			So(PunctualityScore(n), ShouldEqual, want)
		}
	})

	Convey("Given the incident step function", t, func() {
		cases := map[int]float64{0: 0, 2: 10, 3: 25, 5: 25, 10: 50, 11: 75}
		for n, want := range cases {
			So(IncidentScore(n), ShouldEqual, want)
		}
	})

	Convey("Given the socioeconomic indicators", t, func() {
		Convey("When the profile carries every indicator", func() {
			st := model.Student{
				SpecialNeeds:      true,
				RequiresCompanion: true,
				Guardians:         []model.Guardian{{Phone: "1"}, {Email: "x"}, {}},
			}
			score, ind := SocioeconomicScore(st)

			Convey("Then points should add up", func() {
				So(score, ShouldEqual, 15+10+15+10)
				So(ind, ShouldResemble, []string{IndicatorSpecialNeeds, IndicatorMultipleGuardians, IndicatorIncompleteContact, IndicatorCompanion})
			})
		})

		Convey("When no guardians are on file", func() {
			score, _ := SocioeconomicScore(model.Student{})
			So(score, ShouldEqual, 25)
		})

		Convey("When many guardians lack contacts", func() {
			gs := make([]model.Guardian, 30)
			score, _ := SocioeconomicScore(model.Student{SpecialNeeds: true, Guardians: gs})
			So(score, ShouldEqual, 100)
		})
	})

	Convey("Given intervention histories", t, func() {
		mk := func(statuses ...string) []model.InterventionRecord {
			out := make([]model.InterventionRecord, len(statuses))
			for i, s := range statuses {
				out[i] = model.InterventionRecord{Status: s}
			}
			return out
		}
		So(InterventionScore(TallyInterventions(nil)), ShouldEqual, 0)
		So(InterventionScore(TallyInterventions(mk("failed", "completed", "failed"))), ShouldEqual, 80)
		So(InterventionScore(TallyInterventions(mk("completed", "completed", "pending", "pending"))), ShouldEqual, 60)
		So(InterventionScore(TallyInterventions(mk("completed", "pending"))), ShouldEqual, 20)
		So(InterventionScore(TallyInterventions(mk("pending", "in-progress"))), ShouldEqual, 40)
	})

	Convey("Given the neutral defaults", t, func() {
		c := mustComposer()
		So(NeutralScore(Frequency), ShouldEqual, 50)
		So(NeutralScore(Punctuality), ShouldEqual, 25)
		So(NeutralScore(Incidents), ShouldEqual, 25)
		So(NeutralScore(Socioeconomic), ShouldEqual, 50)
		So(NeutralScore(InterventionHistory), ShouldEqual, 25)

		f := c.Neutral(Punctuality)
		So(f.Degraded, ShouldBeTrue)
		So(f.WeightedScore, ShouldAlmostEqual, 3.75, 1e-9)
		So(f.Punctuality, ShouldBeNil)
	})
}

func TestFrequencyFactor(t *testing.T) {
	Convey("Given a student with no attendance records", t, func() {
		f := mustComposer().FrequencyFactor(summary(0, 0))

		Convey("Then the frequency risk should be zero", func() {
			So(f.RiskScore, ShouldEqual, 0)
			So(f.Frequency.AttendanceRate, ShouldEqual, 100)
		})
	})

	Convey("Given growing absences over 30 records", t, func() {
		c := mustComposer()
		prev := -1.0

		Convey("Then the frequency risk should never decrease", func() {
			for absent := 0; absent <= 30; absent++ {
				score := c.FrequencyFactor(summary(30, 30-absent)).RiskScore
				So(score, ShouldBeGreaterThanOrEqualTo, prev)
				prev = score
			}
		})
	})
}

func zeroFactors(c *Composer, s attendance.Summary) []Factor {
	return []Factor{
		c.FrequencyFactor(s),
		c.PunctualityFactor(0),
		c.IncidentFactor("r1", 0),
		c.SocioeconomicFactor(model.Student{Guardians: completeGuardians(2)}),
		c.InterventionFactor(nil),
	}
}

func TestCompose(t *testing.T) {
	Convey("Given a student at 90% attendance with nothing else", t, func() {
		c := mustComposer()
		st := model.Student{ID: "s", Name: "Ana", Guardians: completeGuardians(2)}
		a := Assess(st, zeroFactors(c, summary(30, 27)), now)

		Convey("Then the composite should be 4 and the level MINIMAL", func() {
			So(a.RiskScore, ShouldEqual, 4.0)
			So(a.RiskLevel, ShouldEqual, types.RiskMinimal)
			So(a.Recommendations, ShouldBeEmpty)
			So(a.DegradedFactors, ShouldBeEmpty)
			So(a.NextReviewDate, ShouldEqual, now.AddDate(0, 0, 30))
		})

		Convey("Then repeated assessment should be identical", func() {
			b := Assess(st, zeroFactors(c, summary(30, 27)), now)
			So(b, ShouldResemble, a)
		})
	})

	Convey("Given a student at 55% attendance with nothing else", t, func() {
		c := mustComposer()
		a := Assess(model.Student{ID: "s"}, zeroFactors(c, summary(20, 11)), now)

		Convey("Then the composite should be 40 and the level MEDIUM", func() {
			So(a.RiskScore, ShouldEqual, 40.0)
			So(a.RiskLevel, ShouldEqual, types.RiskMedium)
			So(a.Recommendations[0].Category, ShouldEqual, CategoryAttendance)
		})
	})

	Convey("Given worst-case factor maxima", t, func() {
		c := mustComposer()
		factors := []Factor{
			c.FrequencyFactor(summary(30, 0)),
			c.PunctualityFactor(50),
			c.IncidentFactor("r", 50),
			c.SocioeconomicFactor(model.Student{SpecialNeeds: true, RequiresCompanion: true, Guardians: make([]model.Guardian, 20)}),
			c.InterventionFactor([]model.InterventionRecord{{Status: model.InterventionFailed}}),
		}

		Convey("Then the composite should stay within bounds", func() {
			s := Compose(factors)
			So(s, ShouldBeGreaterThanOrEqualTo, 0)
			So(s, ShouldBeLessThanOrEqualTo, 100)
			So(s, ShouldEqual, 90.75)
		})
	})

	Convey("Given out-of-range weighted scores", t, func() {
		So(Compose([]Factor{{WeightedScore: 140}}), ShouldEqual, 100)
		So(Compose([]Factor{{WeightedScore: -3}}), ShouldEqual, 0)
		So(Compose(nil), ShouldEqual, 0)
	})

	Convey("Given missing factors", t, func() {
		c := mustComposer()
		Convey("Then they should contribute nothing", func() {
			So(Compose([]Factor{c.FrequencyFactor(summary(20, 11))}), ShouldEqual, 40)
		})
	})
}

func TestClassify(t *testing.T) {
	Convey("Given scores across [0,100]", t, func() {
		Convey("Then every score should map to exactly one level", func() {
			for s := 0.0; s <= 100; s += 0.25 {
				So(Classify(s).Valid(), ShouldBeTrue)
			}
		})

		Convey("Then boundaries should belong to the higher band", func() {
			So(Classify(80), ShouldEqual, types.RiskCritical)
			So(Classify(79.99), ShouldEqual, types.RiskHigh)
			So(Classify(60), ShouldEqual, types.RiskHigh)
			So(Classify(40), ShouldEqual, types.RiskMedium)
			So(Classify(20), ShouldEqual, types.RiskLow)
			So(Classify(19.99), ShouldEqual, types.RiskMinimal)
		})
	})
}

func TestRecommend(t *testing.T) {
	Convey("Given factors triggering every rule at CRITICAL", t, func() {
		c := mustComposer()
		factors := []Factor{
			c.FrequencyFactor(summary(10, 5)),
			c.PunctualityFactor(4),
			c.SocioeconomicFactor(model.Student{SpecialNeeds: true, Guardians: completeGuardians(1)}),
		}
		recs := Recommend(factors, types.RiskCritical)

		Convey("Then factor rules should come first, in calculator order", func() {
			So(len(recs), ShouldEqual, 4)
			So(recs[0].Category, ShouldEqual, CategoryAttendance)
			So(recs[1].Category, ShouldEqual, CategoryPunctuality)
			So(recs[1].Priority, ShouldEqual, types.PriorityMedium)
			So(recs[2].Category, ShouldEqual, CategorySpecialNeeds)
			So(recs[3].Category, ShouldEqual, CategoryEmergency)
			So(recs[3].Priority, ShouldEqual, types.PriorityUrgent)
		})
	})

	Convey("Given a HIGH level and degraded factors", t, func() {
		c := mustComposer()
		recs := Recommend([]Factor{c.Neutral(Frequency), c.Neutral(Punctuality)}, types.RiskHigh)

		Convey("Then only the monitoring rule should fire", func() {
			So(len(recs), ShouldEqual, 1)
			So(recs[0].Category, ShouldEqual, CategoryMonitoring)
		})
	})

	Convey("Given exactly three delays", t, func() {
		recs := Recommend([]Factor{mustComposer().PunctualityFactor(3)}, types.RiskLow)
		So(recs, ShouldBeEmpty)
	})
}

func TestPrimaryRiskFactors(t *testing.T) {
	Convey("Given factors above and at 50", t, func() {
		c := mustComposer()
		names := PrimaryRiskFactors([]Factor{
			c.FrequencyFactor(summary(10, 7)), // 50
			c.PunctualityFactor(8),            // 60
			c.InterventionFactor([]model.InterventionRecord{{Status: model.InterventionFailed}}),
		})
		So(names, ShouldResemble, []string{"punctuality", "interventions"})
	})
}

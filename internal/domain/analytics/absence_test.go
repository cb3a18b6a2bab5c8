package analytics

import (
	"fmt"
	"testing"

	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// absences builds total daily records ending today, the first absent ones absent.
func absences(studentID string, total, absent int) []model.AttendanceRecord {
	out := make([]model.AttendanceRecord, 0, total)
	for i := 0; i < total; i++ {
		out = append(out, model.AttendanceRecord{
			ID:        fmt.Sprintf("%s-%d", studentID, i),
			StudentID: studentID,
			Date:      *dayOffset(-i),
			Present:   i >= absent,
		})
	}
	return out
}

func TestPatternLevel(t *testing.T) {
	Convey("Given absence rates on and around each boundary", t, func() {
		cases := []struct {
			rate float64
			want types.RiskLevel
		}{
			{50, types.RiskCritical},
			{49.9, types.RiskHigh},
			{35, types.RiskHigh},
			{34.9, types.RiskMedium},
			{25, types.RiskMedium},
			{24.9, types.RiskLow},
			{15, types.RiskLow},
			{14.9, types.RiskMinimal},
			{0, types.RiskMinimal},
		}

		Convey("Then boundaries should belong to the higher level", func() {
			for _, c := range cases {
				So(PatternLevel(c.rate), ShouldEqual, c.want)
			}
		})
	})
}

func TestAbsencePatterns(t *testing.T) {
	Convey("Given a cohort with every absence band", t, func() {
		w := attendance.NewWindow(today, 29)
		var records []model.AttendanceRecord
		records = append(records, absences("s-crit", 20, 12)...)
		records = append(records, absences("s-high", 20, 8)...)
		records = append(records, absences("s-med", 20, 5)...)
		records = append(records, absences("s-low", 20, 3)...)
		records = append(records, absences("s-ok", 20, 0)...)
		records = append(records, model.AttendanceRecord{
			ID: "old", StudentID: "s-old", Date: *dayOffset(-45), Present: false,
		})

		Convey("When analysing the whole cohort", func() {
			rep := AbsencePatterns(records, w, "")

			Convey("Then each student inside the window should be profiled in id order", func() {
				So(rep.AnalyzedStudents, ShouldEqual, 5)
				So(rep.Patterns[0].StudentID, ShouldEqual, "s-crit")
				So(rep.Patterns[0].OverallAbsenceRate, ShouldEqual, 60)
				So(rep.Patterns[0].TotalDays, ShouldEqual, 20)
				So(rep.Patterns[0].TotalAbsences, ShouldEqual, 12)
				So(rep.Patterns[0].RiskLevel, ShouldEqual, types.RiskCritical)

				levels := map[string]types.RiskLevel{}
				for _, p := range rep.Patterns {
					levels[p.StudentID] = p.RiskLevel
				}
				So(levels["s-high"], ShouldEqual, types.RiskHigh)
				So(levels["s-med"], ShouldEqual, types.RiskMedium)
				So(levels["s-low"], ShouldEqual, types.RiskLow)
				So(levels["s-ok"], ShouldEqual, types.RiskMinimal)
			})

			Convey("Then weekday absence rates should sum the student's own days", func() {
				ok := rep.Patterns[len(rep.Patterns)-1]
				So(ok.StudentID, ShouldEqual, "s-ok")
				So(len(ok.WeekdayAbsence), ShouldEqual, 7)
				for _, rate := range ok.WeekdayAbsence {
					So(rate, ShouldEqual, 0)
				}
				// today is a Wednesday and was an absence for s-crit
				So(rep.Patterns[0].WeekdayAbsence[attendance.WeekdayName(today)], ShouldBeGreaterThan, 0)
			})

			Convey("Then indicators should flag critical and moderate absence", func() {
				So(len(rep.RiskIndicators), ShouldEqual, 3)
				So(rep.RiskIndicators[0], ShouldResemble, AbsenceIndicator{
					StudentID: "s-crit", Type: IndicatorHighAbsence, Value: 60, Severity: SeverityCritical,
				})
				So(rep.RiskIndicators[1].StudentID, ShouldEqual, "s-high")
				So(rep.RiskIndicators[1].Type, ShouldEqual, IndicatorModerateAbsence)
				So(rep.RiskIndicators[1].Severity, ShouldEqual, SeverityWarning)
				So(rep.RiskIndicators[2].StudentID, ShouldEqual, "s-med")
			})

			Convey("Then recommendations should escalate before the general one", func() {
				So(len(rep.Recommendations), ShouldEqual, 3)
				So(rep.Recommendations[0].Type, ShouldEqual, RecommendImmediateAction)
				So(rep.Recommendations[0].Message, ShouldStartWith, "1 student(s)")
				So(rep.Recommendations[1].Type, ShouldEqual, RecommendMonitoring)
				So(rep.Recommendations[2].Type, ShouldEqual, RecommendGeneral)
				So(rep.From, ShouldEqual, "2026-05-12")
				So(rep.To, ShouldEqual, "2026-06-10")
			})
		})

		Convey("When restricted to one student", func() {
			rep := AbsencePatterns(records, w, "s-low")

			Convey("Then only that student should be analysed", func() {
				So(rep.AnalyzedStudents, ShouldEqual, 1)
				So(rep.Patterns[0].StudentID, ShouldEqual, "s-low")
				So(rep.RiskIndicators, ShouldBeEmpty)
				So(len(rep.Recommendations), ShouldEqual, 1)
				So(rep.Recommendations[0].Type, ShouldEqual, RecommendGeneral)
			})
		})
	})

	Convey("Given no records", t, func() {
		rep := AbsencePatterns(nil, attendance.NewWindow(today, 29), "")
		So(rep.AnalyzedStudents, ShouldEqual, 0)
		So(rep.Patterns, ShouldBeEmpty)
		So(rep.RiskIndicators, ShouldNotBeNil)
		So(rep.Recommendations, ShouldResemble, []AbsenceRecommendation{{
			Type: RecommendGeneral, Message: "Run an attendance incentive programme", Priority: "LOW",
		}})
	})
}

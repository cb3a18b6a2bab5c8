package analytics

import (
	"fmt"
	"time"

	"github.com/sigte/riskengine/internal/domain/attendance"
	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/internal/domain/types"
)

// Absence pattern window bounds, in days.
const (
	DefaultPatternDays = 30
	MinPatternDays     = 7
	MaxPatternDays     = 180
)

// Absence indicator types and severities.
const (
	IndicatorHighAbsence     = "HIGH_ABSENCE_RATE"
	IndicatorModerateAbsence = "MODERATE_ABSENCE_RATE"
	SeverityCritical         = "CRITICAL"
	SeverityWarning          = "WARNING"
)

// Cohort recommendation types.
const (
	RecommendImmediateAction = "IMMEDIATE_ACTION"
	RecommendMonitoring      = "MONITORING_REQUIRED"
	RecommendGeneral         = "GENERAL"
)

// AbsencePattern is one student's absence profile over the window.
type AbsencePattern struct {
	StudentID          string             `json:"student_id"`
	OverallAbsenceRate float64            `json:"overall_absence_rate"`
	TotalDays          int                `json:"total_days"`
	TotalAbsences      int                `json:"total_absences"`
	WeekdayAbsence     map[string]float64 `json:"weekly_patterns"`
	RiskLevel          types.RiskLevel    `json:"risk_level"`
}

// AbsenceIndicator flags a student whose absence rate crossed an alert line.
type AbsenceIndicator struct {
	StudentID string  `json:"student_id"`
	Type      string  `json:"type"`
	Value     float64 `json:"value"`
	Severity  string  `json:"severity"`
}

// AbsenceRecommendation is a cohort-level follow-up.
type AbsenceRecommendation struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

// AbsencePatternReport is the cohort absence analysis.
type AbsencePatternReport struct {
	AnalyzedStudents int                     `json:"analyzed_students"`
	Patterns         []AbsencePattern        `json:"patterns"`
	RiskIndicators   []AbsenceIndicator      `json:"risk_indicators"`
	Recommendations  []AbsenceRecommendation `json:"recommendations"`
	From             string                  `json:"from"`
	To               string                  `json:"to"`
}

// PatternLevel maps an absence rate to the five-level scale.
func PatternLevel(rate float64) types.RiskLevel {
	switch {
	case rate >= 50:
		return types.RiskCritical
	case rate >= 35:
		return types.RiskHigh
	case rate >= 25:
		return types.RiskMedium
	case rate >= 15:
		return types.RiskLow
	default:
		return types.RiskMinimal
	}
}

func absenceIndicator(studentID string, rate float64) (AbsenceIndicator, bool) {
	switch {
	case rate >= 50:
		return AbsenceIndicator{StudentID: studentID, Type: IndicatorHighAbsence, Value: Round1(rate), Severity: SeverityCritical}, true
	case rate >= absenceRiskThreshold:
		return AbsenceIndicator{StudentID: studentID, Type: IndicatorModerateAbsence, Value: Round1(rate), Severity: SeverityWarning}, true
	default:
		return AbsenceIndicator{}, false
	}
}

// AbsencePatterns analyses absences per student inside w. A non-empty
// studentID restricts the analysis to that student. Students are ordered by id.
func AbsencePatterns(records []model.AttendanceRecord, w attendance.Window, studentID string) AbsencePatternReport {
	byStudent := map[string][]model.AttendanceRecord{}
	for _, r := range records {
		if studentID != "" && r.StudentID != studentID {
			continue
		}
		if !w.Contains(r.Date) {
			continue
		}
		byStudent[r.StudentID] = append(byStudent[r.StudentID], r)
	}

	rep := AbsencePatternReport{
		Patterns:       []AbsencePattern{},
		RiskIndicators: []AbsenceIndicator{},
		From:           w.From.Format(time.DateOnly),
		To:             w.To.Format(time.DateOnly),
	}
	for _, p := range attendance.ByStudent(records, w) {
		recs, ok := byStudent[p.StudentID]
		if !ok {
			continue
		}
		rate := p.AbsenceRate()
		weekdays := map[string]float64{}
		for name, s := range attendance.ByWeekday(recs) {
			weekdays[name] = Round1(s.AbsenceRate())
		}
		rep.Patterns = append(rep.Patterns, AbsencePattern{
			StudentID:          p.StudentID,
			OverallAbsenceRate: Round1(rate),
			TotalDays:          p.TotalRecords,
			TotalAbsences:      p.Absent,
			WeekdayAbsence:     weekdays,
			RiskLevel:          PatternLevel(rate),
		})
		if ind, ok := absenceIndicator(p.StudentID, rate); ok {
			rep.RiskIndicators = append(rep.RiskIndicators, ind)
		}
	}
	rep.AnalyzedStudents = len(rep.Patterns)
	rep.Recommendations = AbsenceRecommendations(rep.Patterns)
	return rep
}

// AbsenceRecommendations derives the cohort follow-ups. The general
// recommendation is always last.
func AbsenceRecommendations(patterns []AbsencePattern) []AbsenceRecommendation {
	var critical, high int
	for _, p := range patterns {
		switch p.RiskLevel {
		case types.RiskCritical:
			critical++
		case types.RiskHigh:
			high++
		}
	}
	out := []AbsenceRecommendation{}
	if critical > 0 {
		out = append(out, AbsenceRecommendation{
			Type:     RecommendImmediateAction,
			Message:  fmt.Sprintf("%d student(s) at critical risk need immediate intervention", critical),
			Priority: "HIGH",
		})
	}
	if high > 0 {
		out = append(out, AbsenceRecommendation{
			Type:     RecommendMonitoring,
			Message:  fmt.Sprintf("%d student(s) need close monitoring", high),
			Priority: "MEDIUM",
		})
	}
	out = append(out, AbsenceRecommendation{
		Type:     RecommendGeneral,
		Message:  "Run an attendance incentive programme",
		Priority: "LOW",
	})
	return out
}

// Package attendance reduces attendance records over a trailing window.
package attendance

import (
	"sort"
	"strings"
	"time"

	"github.com/sigte/riskengine/internal/domain/model"
)

// DefaultWindowDays is the trailing window used when none is configured.
const DefaultWindowDays = 30

// Window is an inclusive range of days.
type Window struct {
	From time.Time
	To   time.Time
}

// NewWindow returns [today-days, today] truncated to days.
func NewWindow(today time.Time, days int) Window {
	if days < 0 {
		days = 0
	}
	to := model.Day(today)
	return Window{From: to.AddDate(0, 0, -days), To: to}
}

// Contains reports whether the record's day falls inside the window.
func (w Window) Contains(t time.Time) bool {
	d := model.Day(t)
	return !d.Before(w.From) && !d.After(w.To)
}

// Summary is the reduction of a set of attendance records.
type Summary struct {
	TotalRecords int     `json:"total_records"`
	Present      int     `json:"present_count"`
	Absent       int     `json:"absent_count"`
	Rate         float64 `json:"attendance_rate"`
}

// AbsenceRate returns 100 - Rate.
func (s Summary) AbsenceRate() float64 { return 100 - s.Rate }

func (s *Summary) add(present bool) {
	s.TotalRecords++
	if present {
		s.Present++
	} else {
		s.Absent++
	}
}

func (s *Summary) finish() {
	// No records is no evidence of risk.
	if s.TotalRecords == 0 {
		s.Rate = 100
		return
	}
	s.Rate = float64(s.Present) / float64(s.TotalRecords) * 100
}

// Aggregate reduces records inside w. An empty studentID aggregates the whole cohort.
// Duplicate (student, date) records are counted as supplied.
func Aggregate(records []model.AttendanceRecord, w Window, studentID string) Summary {
	var s Summary
	for _, r := range records {
		if studentID != "" && r.StudentID != studentID {
			continue
		}
		if !w.Contains(r.Date) {
			continue
		}
		s.add(r.Present)
	}
	s.finish()
	return s
}

// StudentSummary pairs a student with their summary.
type StudentSummary struct {
	StudentID string
	Summary
}

// ByStudent partitions the records inside w per student, ordered by student id.
func ByStudent(records []model.AttendanceRecord, w Window) []StudentSummary {
	idx := make(map[string]*Summary)
	for _, r := range records {
		if !w.Contains(r.Date) {
			continue
		}
		s, ok := idx[r.StudentID]
		if !ok {
			s = &Summary{}
			idx[r.StudentID] = s
		}
		s.add(r.Present)
	}
	out := make([]StudentSummary, 0, len(idx))
	for id, s := range idx {
		s.finish()
		out = append(out, StudentSummary{StudentID: id, Summary: *s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// WeekdayName returns the lowercase English weekday of t.
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// ByWeekday reduces records per lowercase weekday name. Records are not
// filtered by window; callers pass the slice they want tallied.
func ByWeekday(records []model.AttendanceRecord) map[string]Summary {
	idx := make(map[string]*Summary)
	for _, r := range records {
		name := WeekdayName(r.Date)
		s, ok := idx[name]
		if !ok {
			s = &Summary{}
			idx[name] = s
		}
		s.add(r.Present)
	}
	out := make(map[string]Summary, len(idx))
	for name, s := range idx {
		s.finish()
		out[name] = *s
	}
	return out
}

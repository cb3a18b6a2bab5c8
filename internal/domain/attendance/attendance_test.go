package attendance

import (
	"testing"
	"time"

	"github.com/sigte/riskengine/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var today = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func rec(student string, daysAgo int, present bool) model.AttendanceRecord {
	return model.AttendanceRecord{StudentID: student, Date: model.Day(today).AddDate(0, 0, -daysAgo), Present: present}
}

func TestWindow(t *testing.T) {
	Convey("Given a 30 day window", t, func() {
		w := NewWindow(today, 30)

		Convey("Then both ends should be inclusive", func() {
			So(w.Contains(model.Day(today)), ShouldBeTrue)
			So(w.Contains(model.Day(today).AddDate(0, 0, -30)), ShouldBeTrue)
			So(w.Contains(model.Day(today).AddDate(0, 0, -31)), ShouldBeFalse)
			So(w.Contains(model.Day(today).AddDate(0, 0, 1)), ShouldBeFalse)
		})

		Convey("Then a negative size should collapse to today", func() {
			w := NewWindow(today, -4)
			So(w.From, ShouldEqual, w.To)
		})
	})
}

func TestAggregate(t *testing.T) {
	Convey("Given attendance records for two students", t, func() {
		records := []model.AttendanceRecord{
			rec("a", 0, true), rec("a", 1, false), rec("a", 2, true), rec("a", 3, true),
			rec("b", 0, false), rec("b", 45, true),
		}
		w := NewWindow(today, 30)

		Convey("When aggregating one student", func() {
			s := Aggregate(records, w, "a")

			Convey("Then counts and rate should reflect only that student", func() {
				So(s.TotalRecords, ShouldEqual, 4)
				So(s.Present, ShouldEqual, 3)
				So(s.Absent, ShouldEqual, 1)
				So(s.Rate, ShouldEqual, 75.0)
				So(s.AbsenceRate(), ShouldEqual, 25.0)
			})
		})

		Convey("When aggregating the cohort", func() {
			s := Aggregate(records, w, "")

			Convey("Then records outside the window should be ignored", func() {
				So(s.TotalRecords, ShouldEqual, 5)
				So(s.Present, ShouldEqual, 3)
			})
		})

		Convey("When there are no records in the window", func() {
			s := Aggregate(records, w, "nobody")

			Convey("Then the rate should default to 100", func() {
				So(s.TotalRecords, ShouldEqual, 0)
				So(s.Rate, ShouldEqual, 100.0)
			})
		})

		Convey("When partitioning per student", func() {
			parts := ByStudent(records, w)

			Convey("Then results should be ordered by student id", func() {
				So(len(parts), ShouldEqual, 2)
				So(parts[0].StudentID, ShouldEqual, "a")
				So(parts[1].StudentID, ShouldEqual, "b")
				So(parts[1].Rate, ShouldEqual, 0.0)
			})
		})
	})
}

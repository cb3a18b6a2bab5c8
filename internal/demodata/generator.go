package demodata

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/sigte/riskengine/internal/domain/model"
	"github.com/sigte/riskengine/pkg/logger"
)

// Presence probabilities per attendance profile.
const (
	regularPresence   = 0.92
	irregularPresence = 0.65
	chronicPresence   = 0.35
)

// Route shape.
const (
	routeCapacity    = 40
	routeBaseSeats   = 18
	maxRouteDelays   = 6
	accidentsPerHot  = 2
	resolvedFraction = 0.5
)

// namespace scopes the deterministic record ids.
var namespace = uuid.MustParse("6f1c1b7e-3c55-4f57-9a2e-5d1f0c8a7b21") //nolint:gochecknoglobals // fixed id namespace

// Dataset is one generated population.
type Dataset struct {
	Schools    []model.School
	Routes     []model.Route
	Vehicles   []model.Vehicle
	Students   []model.Student
	Attendance []model.AttendanceRecord
	Incidents  []model.IncidentRecord
}

// Active counts the active students in the dataset.
func (d Dataset) Active() int {
	n := 0
	for _, st := range d.Students {
		if st.Status == model.StudentActive {
			n++
		}
	}
	return n
}

type generator struct {
	cfg   Config
	rng   *rand.Rand
	today time.Time
}

// Generate builds a dataset from cfg. Equal configs produce equal datasets.
func Generate(ctx context.Context, cfg Config) (Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return Dataset{}, err
	}
	g := &generator{
		cfg:   cfg,
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)), //nolint:gosec // synthetic data
		today: model.Day(cfg.Now),
	}

	var ds Dataset
	ds.Schools = g.schools()
	ds.Routes, ds.Vehicles = g.fleet(ds.Schools)
	ds.Students = g.students(ds.Routes)
	ds.Attendance = g.attendance(ds.Students)
	ds.Incidents = g.incidents(ds.Routes, ds.Students)

	logger.Get().Info(ctx, "generated demo population",
		logger.Int("schools", len(ds.Schools)),
		logger.Int("routes", len(ds.Routes)),
		logger.Int("students", len(ds.Students)),
		logger.Int("active", ds.Active()),
		logger.Int("attendance", len(ds.Attendance)),
		logger.Int("incidents", len(ds.Incidents)),
	)
	return ds, nil
}

func recordID(kind string, parts ...any) string {
	return uuid.NewSHA1(namespace, []byte(kind+"/"+fmt.Sprint(parts))).String()
}

func (g *generator) schools() []model.School {
	out := make([]model.School, g.cfg.Schools)
	for i := range out {
		out[i] = model.School{ID: fmt.Sprintf("sch-%02d", i+1), Name: fmt.Sprintf("School %02d", i+1)}
	}
	return out
}

// fleet gives every route its own vehicle. Every third vehicle is in the
// shop and every third is due within a few days.
func (g *generator) fleet(schools []model.School) ([]model.Route, []model.Vehicle) {
	routes := make([]model.Route, g.cfg.Routes)
	vehicles := make([]model.Vehicle, g.cfg.Routes)
	for i := range routes {
		v := model.Vehicle{
			ID:     fmt.Sprintf("veh-%02d", i+1),
			Plate:  fmt.Sprintf("SGT-%04d", 1000+i*37),
			Make:   "Volare",
			Model:  "W9",
			Driver: fmt.Sprintf("Driver %02d", i+1),
			Status: model.VehicleActive,
		}
		switch i % 3 {
		case 0:
			v.Status = model.VehicleMaintenance
		case 1:
			due := g.today.AddDate(0, 0, i%5)
			v.NextMaintenance = &due
		}
		vehicles[i] = v
		routes[i] = model.Route{
			ID:        fmt.Sprintf("rte-%02d", i+1),
			Name:      fmt.Sprintf("Route %02d", i+1),
			SchoolID:  schools[i%len(schools)].ID,
			VehicleID: v.ID,
			Status:    model.RouteActive,
			Capacity:  routeCapacity,
			Occupied:  routeBaseSeats + (i*7)%(routeCapacity-routeBaseSeats),
		}
	}
	return routes, vehicles
}

func presenceFor(i int) float64 {
	switch i % 10 {
	case 6, 7:
		return irregularPresence
	case 8:
		return chronicPresence
	default:
		return regularPresence
	}
}

func (g *generator) students(routes []model.Route) []model.Student {
	out := make([]model.Student, g.cfg.Students)
	for i := range out {
		r := routes[i%len(routes)]
		st := model.Student{
			ID:           fmt.Sprintf("stu-%04d", i+1),
			Name:         fmt.Sprintf("Student %04d", i+1),
			Registration: fmt.Sprintf("%d%05d", g.today.Year(), i+1),
			SchoolID:     r.SchoolID,
			RouteID:      r.ID,
			Status:       model.StudentActive,
			SpecialNeeds: i%7 == 0,
		}
		if i%10 == 9 {
			st.Status = model.StudentInactive
		}
		st.RequiresCompanion = st.SpecialNeeds && i%2 == 0
		st.Guardians = g.guardians(i)
		out[i] = st
	}
	return out
}

func (g *generator) guardians(i int) []model.Guardian {
	n := 2
	switch {
	case i%23 == 0:
		n = 0
	case i%5 == 0:
		n = 1
	}
	out := make([]model.Guardian, n)
	for k := range out {
		gd := model.Guardian{
			Name:         fmt.Sprintf("Guardian %04d-%d", i+1, k+1),
			Phone:        fmt.Sprintf("+55 11 9%04d-%04d", i+1, k+1),
			Email:        fmt.Sprintf("guardian%04d.%d@example.org", i+1, k+1),
			Relationship: []string{"mother", "father"}[k%2],
		}
		if i%4 == 0 {
			gd.Email = ""
		}
		out[k] = gd
	}
	return out
}

// attendance covers school days only, newest day last.
func (g *generator) attendance(students []model.Student) []model.AttendanceRecord {
	var out []model.AttendanceRecord
	for i, st := range students {
		if st.Status != model.StudentActive {
			continue
		}
		p := presenceFor(i)
		for d := g.cfg.Days - 1; d >= 0; d-- {
			day := g.today.AddDate(0, 0, -d)
			if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
				continue
			}
			out = append(out, model.AttendanceRecord{
				ID:        recordID("attendance", st.ID, day.Format(time.DateOnly)),
				StudentID: st.ID,
				Date:      day,
				Present:   g.rng.Float64() < p,
			})
		}
	}
	return out
}

// incidents spreads delays over every route, half attributed to a rider, and
// puts high-priority accidents on every fourth route.
func (g *generator) incidents(routes []model.Route, students []model.Student) []model.IncidentRecord {
	riders := map[string][]string{}
	for _, st := range students {
		if st.Status == model.StudentActive {
			riders[st.RouteID] = append(riders[st.RouteID], st.ID)
		}
	}

	var out []model.IncidentRecord
	add := func(r model.Route, kind, priority, studentID string, k int) {
		status := model.IncidentOpen
		if g.rng.Float64() < resolvedFraction {
			status = model.IncidentResolved
		}
		at := g.today.AddDate(0, 0, -g.rng.IntN(g.cfg.Days)).Add(time.Duration(6+g.rng.IntN(12)) * time.Hour)
		out = append(out, model.IncidentRecord{
			ID:         recordID("incident", r.ID, kind, k),
			RouteID:    r.ID,
			StudentID:  studentID,
			VehicleID:  r.VehicleID,
			Type:       kind,
			Priority:   priority,
			OccurredAt: at,
			Status:     status,
		})
	}

	for i, r := range routes {
		delays := g.rng.IntN(maxRouteDelays + 1)
		for k := 0; k < delays; k++ {
			studentID := ""
			if ids := riders[r.ID]; k%2 == 0 && len(ids) > 0 {
				studentID = ids[g.rng.IntN(len(ids))]
			}
			add(r, model.IncidentDelay, model.IncidentMedium, studentID, k)
		}
		if i%4 == 0 {
			for k := 0; k < accidentsPerHot; k++ {
				add(r, model.IncidentAccident, model.IncidentHigh, "", k)
			}
		}
	}
	return out
}

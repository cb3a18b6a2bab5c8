// Package demodata generates a deterministic synthetic school-transport
// population and loads it into a store.
package demodata

import (
	"fmt"
	"time"
)

// Config holds the shape of the generated population.
type Config struct {
	Schools  int       // Number of schools
	Routes   int       // Number of routes, one vehicle each
	Students int       // Number of students, about one in ten inactive
	Days     int       // Attendance history length in calendar days
	Seed     uint64    // Seed for the generator; equal seeds give equal data
	Now      time.Time // Reference instant; history ends on its day
}

// Default population shape.
const (
	DefaultSchools  = 3
	DefaultRoutes   = 6
	DefaultStudents = 120
	DefaultDays     = 30
	DefaultSeed     = 42
)

// DefaultConfig returns the default population shape anchored at now.
func DefaultConfig(now time.Time) Config {
	return Config{
		Schools:  DefaultSchools,
		Routes:   DefaultRoutes,
		Students: DefaultStudents,
		Days:     DefaultDays,
		Seed:     DefaultSeed,
		Now:      now,
	}
}

// Validate rejects shapes the generator cannot fill.
func (c Config) Validate() error {
	switch {
	case c.Schools < 1:
		return fmt.Errorf("%w: schools must be positive", ErrInvalidConfig)
	case c.Routes < 1:
		return fmt.Errorf("%w: routes must be positive", ErrInvalidConfig)
	case c.Students < 0:
		return fmt.Errorf("%w: students must not be negative", ErrInvalidConfig)
	case c.Days < 1:
		return fmt.Errorf("%w: days must be positive", ErrInvalidConfig)
	case c.Now.IsZero():
		return fmt.Errorf("%w: reference time is required", ErrInvalidConfig)
	}
	return nil
}

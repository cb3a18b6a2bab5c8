package demodata

import (
	"io"
)

// ShowHelp prints usage information for the seed tool.
func ShowHelp(w io.Writer) {
	_, _ = io.WriteString(w, `SIGTE Demo Seeder
=================

Generates a deterministic synthetic population and writes it to the
configured store. Optionally asks a running service for a population
analysis and checks the result.

Usage:
  go run ./cmd/seed-demo [options]

Options:
  -driver string     Store driver: sqlite or pgx (default from RISK_DATABASE_DRIVER)
  -dsn string        Store DSN (default from RISK_DATABASE_DSN)
  -schools int       Number of schools (default 3)
  -routes int        Number of routes (default 6)
  -students int      Number of students (default 120)
  -days int          Attendance history in days (default 30)
  -seed uint         Generator seed (default 42)
  -verify string     Base URL of a running service to verify, e.g. http://localhost:8080
  -timeout duration  HTTP timeout for verification (default 30s)
  -help              Show this help message

Examples:
  # Seed the default sqlite file
  go run ./cmd/seed-demo

  # Seed Postgres with a larger population and verify
  go run ./cmd/seed-demo -driver pgx -dsn postgres://risk@localhost/sigte -students 2000 -verify http://localhost:8080
`)
}

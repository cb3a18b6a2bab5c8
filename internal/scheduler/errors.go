package scheduler

import "errors"

// ErrInvalidSchedule is returned for a cron spec that cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid schedule")

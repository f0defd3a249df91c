// Package scheduler triggers the monitoring cycle.
//
// A schedule is a cron expression, a Go duration or an HH:MM interval
// (see ParseSchedule). The trigger never overlaps itself: a run that is
// still in progress when the next tick fires causes that tick to be skipped.
package scheduler

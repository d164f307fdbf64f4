package domain

import (
	"fmt"
	"time"
)

// TimeWindow is the closed interval an investigation looks at.
// Bounds serialize as RFC3339 and StartTime is never after EndTime.
type TimeWindow struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// NewTimeWindow builds a window, rejecting inverted bounds.
func NewTimeWindow(start, end time.Time) (TimeWindow, error) {
	if end.Before(start) {
		return TimeWindow{}, fmt.Errorf("time window ends %s before it starts %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return TimeWindow{StartTime: start.UTC(), EndTime: end.UTC()}, nil
}

// WindowEndingAt returns the window of the given length that closes at end.
func WindowEndingAt(end time.Time, lookback time.Duration) TimeWindow {
	if lookback < 0 {
		lookback = -lookback
	}
	return TimeWindow{StartTime: end.Add(-lookback).UTC(), EndTime: end.UTC()}
}

// Contains reports whether t falls inside the window, bounds included.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.StartTime) && !t.After(w.EndTime)
}

// Duration returns the window length.
func (w TimeWindow) Duration() time.Duration {
	return w.EndTime.Sub(w.StartTime)
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%s .. %s", w.StartTime.Format(time.RFC3339), w.EndTime.Format(time.RFC3339))
}

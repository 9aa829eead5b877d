package archivedb

import (
	"time"

	"golang.org/x/time/rate"
)

// ProgressInterval is the minimum delay between two progress log lines of a
// long running build.
const ProgressInterval = 5 * time.Second

// NewProgress returns a throttle for progress logs.
//
// The first tick is consumed up front, so a build finishing within
// ProgressInterval logs no progress at all.
func NewProgress() *rate.Sometimes {
	s := &rate.Sometimes{Interval: ProgressInterval}
	s.Do(func() {})
	return s
}

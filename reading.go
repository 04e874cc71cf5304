package main

import (
	"fmt"
	"time"
)

const TimeFormat = "2006-01-02T15:04:05.000"

// Reading is one reply from the instrument. Raw carries the reply bytes
// verbatim, one character per byte; the poller does not interpret them.
type Reading struct {
	Time time.Time
	Addr string
	Raw  string
}

func (r Reading) String() string {
	return fmt.Sprintf("{Time:%s Addr:%s Reply:%q}", r.Time.Format(TimeFormat), r.Addr, r.Raw)
}

// Record implements csv.Recorder.
func (r Reading) Record() []string {
	return []string{r.Time.Format(TimeFormat), r.Addr, r.Raw}
}

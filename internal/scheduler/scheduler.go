// Package scheduler fires the daily trading cycle at a fixed wall-clock
// time in one named timezone, weekdays only.
package scheduler

import (
	"context"
	"time"

	"alphadesk/internal/logger"
)

type DailyScheduler struct {
	Hour     int
	Minute   int
	Location *time.Location

	ctx   context.Context
	nowFn func() time.Time
}

func NewDailyScheduler(ctx context.Context, hour, minute int, loc *time.Location) *DailyScheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DailyScheduler{
		Hour:     hour,
		Minute:   minute,
		Location: loc,
		ctx:      ctx,
		nowFn:    time.Now,
	}
}

// Start blocks, invoking task once per weekday at the configured time until
// the context ends.
func (s *DailyScheduler) Start(task func()) {
	if s == nil {
		return
	}
	if task == nil {
		logger.Warnf("DailyScheduler: task is nil, exit")
		return
	}
	if s.Hour < 0 || s.Hour > 23 || s.Minute < 0 || s.Minute > 59 {
		logger.Warnf("DailyScheduler: invalid fire time %02d:%02d, exit", s.Hour, s.Minute)
		return
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}

	logger.Infof("DailyScheduler: started, fires weekdays at %02d:%02d %s",
		s.Hour, s.Minute, s.Location)

	for {
		now := s.nowFn().In(s.Location)
		next := s.NextFire(now)
		wait := next.Sub(now)
		logger.Infof("DailyScheduler: next run at %s (in %s)",
			next.Format(time.RFC3339), wait.Truncate(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-s.ctx.Done():
			timer.Stop()
			logger.Infof("DailyScheduler: ctx done, exit")
			return
		case <-timer.C:
		}
		task()
	}
}

// NextFire returns the first weekday fire time strictly after now.
func (s *DailyScheduler) NextFire(now time.Time) time.Time {
	now = now.In(s.Location)
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

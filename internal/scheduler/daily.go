package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kestrel/internal/logger"
)

// DailyScheduler fires a task once per day at a fixed wall-clock time.
// It is the low-frequency "evaluate and maybe enter" trigger.
type DailyScheduler struct {
	Hour     int
	Minute   int
	Location *time.Location

	ctx   context.Context
	nowFn func() time.Time
}

// ParseClock parses "HH:MM" into hour and minute.
func ParseClock(at string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(at), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("clock time must be HH:MM, got %q", at)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", at)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", at)
	}
	return hour, minute, nil
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

// Start blocks, invoking task at every scheduled time until the context ends.
func (s *DailyScheduler) Start(task func()) {
	if s == nil || task == nil {
		return
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}

	logger.Infof("DailyScheduler: started at=%02d:%02d tz=%s", s.Hour, s.Minute, s.Location)
	for {
		now := s.nowFn().In(s.Location)
		next := s.nextRun(now)
		wait := next.Sub(now)
		logger.Infof("DailyScheduler: next run at %s (in %s)", next.Format(time.RFC3339), wait.Truncate(time.Second))

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

func (s *DailyScheduler) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.Hour, s.Minute, 0, 0, s.Location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

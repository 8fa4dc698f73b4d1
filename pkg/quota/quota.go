package quota

import (
	"time"

	"reelscope/pkg/config"
	"reelscope/pkg/logger"
)

// Reason explains why a request was rejected
type Reason string

const (
	// ReasonRollingExceeded means the rolling-window limit was hit
	ReasonRollingExceeded Reason = "rolling_exceeded"
	// ReasonMonthlyExceeded means the calendar-month limit was hit
	ReasonMonthlyExceeded Reason = "monthly_exceeded"
)

// Decision is the outcome of admitting a request through the guard
type Decision struct {
	Allowed bool
	Reason  Reason

	RollingUsed      int
	RollingRemaining int
	// RollingResetAt is when the oldest counted event ages out of the window
	RollingResetAt time.Time

	MonthlyUsed      int
	MonthlyRemaining int
	// MonthResetDate is the first day of the next calendar month at 00:00
	MonthResetDate time.Time
}

// Usage is a read-only snapshot of a user's consumption
type Usage struct {
	RollingUsed      int
	RollingLimit     int
	RollingRemaining int
	RollingResetAt   time.Time

	MonthlyUsed      int
	MonthlyLimit     int
	MonthlyRemaining int
	// MonthFirstEvent is the first admitted request of the current month;
	// zero when nothing was admitted this month
	MonthFirstEvent time.Time
	MonthResetDate  time.Time
}

// Guard enforces the per-user rolling-window and calendar-month limits.
// Both gates are evaluated and the request recorded in a single atomic
// store update, so concurrent requests from the same user cannot race
// past the limit.
type Guard struct {
	store        Store
	rollingLimit int
	window       time.Duration
	monthlyLimit int
	now          func() time.Time
	logger       logger.Logger
}

// New creates a quota guard backed by the given store
func New(cfg *config.QuotaConfig, store Store) *Guard {
	return &Guard{
		store:        store,
		rollingLimit: cfg.RollingLimit,
		window:       cfg.RollingWindow,
		monthlyLimit: cfg.MonthlyLimit,
		now:          time.Now,
		logger:       logger.GetLogger(),
	}
}

// Admit checks both limits for the user and, when allowed, records the
// request in the same atomic update. Rejections leave the counters
// untouched. The rolling gate is evaluated first.
func (g *Guard) Admit(userID int64) Decision {
	now := g.now()
	var decision Decision

	g.store.Update(userID, func(s State) State {
		s = g.refresh(s, now)

		rollingUsed := len(s.Events)
		monthlyUsed := s.MonthCount

		switch {
		case rollingUsed >= g.rollingLimit:
			decision = g.reject(ReasonRollingExceeded, s, now)
			logger.LogQuotaRejected(userID, "rolling", rollingUsed, g.rollingLimit)
			return s
		case monthlyUsed >= g.monthlyLimit:
			decision = g.reject(ReasonMonthlyExceeded, s, now)
			logger.LogQuotaRejected(userID, "monthly", monthlyUsed, g.monthlyLimit)
			return s
		}

		s.Events = append(s.Events, now)
		s.MonthCount++
		if s.FirstEvent.IsZero() {
			s.FirstEvent = now
		}

		decision = Decision{
			Allowed:          true,
			RollingUsed:      len(s.Events),
			RollingRemaining: g.rollingLimit - len(s.Events),
			RollingResetAt:   s.Events[0].Add(g.window),
			MonthlyUsed:      s.MonthCount,
			MonthlyRemaining: g.monthlyLimit - s.MonthCount,
			MonthResetDate:   monthResetDate(now),
		}
		return s
	})

	return decision
}

// CheckRolling reports whether the user has rolling-window capacity left
// without consuming any. Expired events are pruned as a side effect.
func (g *Guard) CheckRolling(userID int64) (bool, int) {
	now := g.now()
	var used int

	g.store.Update(userID, func(s State) State {
		s = g.refresh(s, now)
		used = len(s.Events)
		return s
	})

	return used < g.rollingLimit, used
}

// CheckMonthly reports whether the user has calendar-month capacity left.
// When the limit is reached it also returns the date the counter resets.
func (g *Guard) CheckMonthly(userID int64) (bool, int, time.Time) {
	now := g.now()
	var used int

	g.store.Update(userID, func(s State) State {
		s = g.refresh(s, now)
		used = s.MonthCount
		return s
	})

	if used >= g.monthlyLimit {
		return false, used, monthResetDate(now)
	}
	return true, used, time.Time{}
}

// Usage returns a snapshot of the user's consumption without consuming
// quota. Counts reflect the current window and month.
func (g *Guard) Usage(userID int64) Usage {
	now := g.now()
	s := g.refresh(g.store.Get(userID), now)

	u := Usage{
		RollingUsed:      len(s.Events),
		RollingLimit:     g.rollingLimit,
		RollingRemaining: g.rollingLimit - len(s.Events),
		MonthlyUsed:      s.MonthCount,
		MonthlyLimit:     g.monthlyLimit,
		MonthlyRemaining: g.monthlyLimit - s.MonthCount,
		MonthFirstEvent:  s.FirstEvent,
		MonthResetDate:   monthResetDate(now),
	}
	if u.RollingRemaining < 0 {
		u.RollingRemaining = 0
	}
	if u.MonthlyRemaining < 0 {
		u.MonthlyRemaining = 0
	}
	if len(s.Events) > 0 {
		u.RollingResetAt = s.Events[0].Add(g.window)
	}
	return u
}

// refresh drops events that have aged out of the rolling window and
// zeroes the month counter when the calendar month has changed
func (g *Guard) refresh(s State, now time.Time) State {
	cutoff := now.Add(-g.window)
	kept := s.Events[:0]
	for _, ev := range s.Events {
		if ev.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	s.Events = kept

	key := monthKey(now)
	if s.MonthKey != key {
		s.MonthKey = key
		s.MonthCount = 0
		// New month: the next admitted request becomes the first event
		s.FirstEvent = time.Time{}
	}
	return s
}

func (g *Guard) reject(reason Reason, s State, now time.Time) Decision {
	d := Decision{
		Allowed:          false,
		Reason:           reason,
		RollingUsed:      len(s.Events),
		RollingRemaining: g.rollingLimit - len(s.Events),
		MonthlyUsed:      s.MonthCount,
		MonthlyRemaining: g.monthlyLimit - s.MonthCount,
		MonthResetDate:   monthResetDate(now),
	}
	if d.RollingRemaining < 0 {
		d.RollingRemaining = 0
	}
	if d.MonthlyRemaining < 0 {
		d.MonthlyRemaining = 0
	}
	if len(s.Events) > 0 {
		d.RollingResetAt = s.Events[0].Add(g.window)
	}
	return d
}

// monthKey identifies a calendar month, e.g. "2026-08"
func monthKey(t time.Time) string {
	return t.Format("2006-01")
}

// monthResetDate returns midnight on the first day of the month after t.
// Jumping to day 28 and adding four days always lands in the next month
// regardless of the current month's length.
func monthResetDate(t time.Time) time.Time {
	day28 := time.Date(t.Year(), t.Month(), 28, 0, 0, 0, 0, t.Location())
	next := day28.AddDate(0, 0, 4)
	return time.Date(next.Year(), next.Month(), 1, 0, 0, 0, 0, t.Location())
}

package storage

import (
	"context"
	"time"

	"reelscope/pkg/logger"
)

// Cleaner periodically deletes reports past their retention period. One
// cleanup pass also runs at startup.
type Cleaner struct {
	store         *Store
	retentionDays int
	interval      time.Duration
	stop          chan struct{}
	done          chan struct{}
	logger        logger.Logger
}

// NewCleaner creates a cleaner for the store
func NewCleaner(store *Store, retentionDays int, interval time.Duration, log logger.Logger) *Cleaner {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Cleaner{
		store:         store,
		retentionDays: retentionDays,
		interval:      interval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		logger:        log,
	}
}

// Start launches the cleanup loop in a background goroutine
func (c *Cleaner) Start() {
	logger.LogComponentStart("report cleaner", map[string]interface{}{
		"retention_days": c.retentionDays,
		"interval":       c.interval.String(),
	})

	go func() {
		defer close(c.done)

		c.runOnce()

		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.runOnce()
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop terminates the cleanup loop and waits for it to finish
func (c *Cleaner) Stop() {
	close(c.stop)
	<-c.done
	logger.LogComponentStop("report cleaner", "shutdown")
}

func (c *Cleaner) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := c.store.CleanupOldReports(ctx, c.retentionDays); err != nil {
		c.logger.ErrorWithFields("report cleanup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

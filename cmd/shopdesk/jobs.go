package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/shopdesk/pkg/observability"
	"github.com/platinummonkey/shopdesk/pkg/session"
)

// dbStatsInterval is how often connection pool gauges are refreshed.
const dbStatsInterval = 15 * time.Second

type dbStatser interface {
	Stats() sql.DBStats
}

// newScheduler registers the periodic maintenance jobs: the session cache sweep
// and the connection pool gauges. The caller starts and stops it.
func newScheduler(logger *observability.Logger, sweepInterval time.Duration, cache *session.Cache, db dbStatser, metrics *observability.Metrics) (*cron.Cron, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(every(sweepInterval), func() {
		sweepSessions(logger, cache, metrics)
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	if _, err := c.AddFunc(every(dbStatsInterval), func() {
		metrics.ObserveDBStats(db.Stats())
	}); err != nil {
		return nil, fmt.Errorf("failed to schedule database stats: %w", err)
	}

	return c, nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// sweepSessions drops expired sessions and refreshes the entries gauge
func sweepSessions(logger *observability.Logger, cache *session.Cache, metrics *observability.Metrics) {
	removed := cache.Sweep()
	if metrics != nil {
		metrics.SessionCacheEntries.Set(float64(cache.Len()))
	}
	if removed > 0 {
		logger.WithField("removed", removed).Debug("swept expired sessions")
	}
}

// cronLogger adapts observability.Logger to cron.Logger
type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}

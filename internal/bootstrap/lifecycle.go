package bootstrap

import (
	"context"
	"sync"
	"time"

	chclient "tradelens/internal/adapters/clickhouse"
	"tradelens/internal/adapters/kafka"
	pgclient "tradelens/internal/adapters/postgres"
	redisclient "tradelens/internal/adapters/redis"
	"tradelens/internal/api"
	chrepo "tradelens/internal/repository/clickhouse"
	"tradelens/internal/workers"
	"tradelens/internal/workers/persist"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// Components are the parts Shutdown stops. Nil entries are skipped.
type Components struct {
	HTTPServer      *api.Server
	ShutdownGrace   time.Duration
	Persister       *persist.Persister
	WorkerScheduler *workers.Scheduler
	ActivityRepo    *chrepo.ActivityRepository
	KafkaProducer   *kafka.Producer
	PG              *pgclient.Client
	CH              *chclient.Client
	Redis           *redisclient.Client
	ErrorTracker    errors.Tracker
}

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

// NewLifecycle creates a lifecycle manager
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 60 * time.Second,
	}
}

// Shutdown stops components in order:
// 1. No new requests accepted (in-flight requests may still enqueue saves)
// 2. Application context cancelled, consumers flush their last batch
// 3. Queued saves drained
// 4. Buffered activity flushed, then the producer closed
// 5. Errors and logs flushed
// 6. Database connections last
func (l *Lifecycle) Shutdown(cancel context.CancelFunc, wg *sync.WaitGroup, c Components, log *logger.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/7] Stopping HTTP server...")
	if c.HTTPServer != nil {
		grace := c.ShutdownGrace
		if grace <= 0 {
			grace = 20 * time.Second
		}
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, grace)
		if err := c.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		} else {
			log.Info("✓ HTTP server stopped")
		}
		httpCancel()
	}

	log.Info("[2/7] Stopping background workers...")
	cancel()
	if c.WorkerScheduler != nil {
		if err := c.WorkerScheduler.Stop(shutdownCtx); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		} else {
			log.Info("✓ Workers stopped")
		}
	}

	log.Info("[3/7] Draining persist queue...")
	if c.Persister != nil {
		persistCtx, persistCancel := context.WithTimeout(shutdownCtx, 15*time.Second)
		if err := c.Persister.Stop(persistCtx); err != nil {
			log.Errorw("Persister shutdown failed", "error", err)
		} else {
			stats := c.Persister.Stats()
			log.Infow("✓ Persister drained", "succeeded", stats.Succeeded, "failed", stats.Failed, "dropped", stats.Dropped)
		}
		persistCancel()
	}

	log.Info("[4/7] Waiting for consumer goroutines...")
	l.waitForGoroutines(wg, 15*time.Second, log)

	log.Info("[5/7] Flushing activity and closing Kafka producer...")
	if c.ActivityRepo != nil {
		if err := c.ActivityRepo.Stop(shutdownCtx); err != nil {
			log.Errorw("Activity flush failed", "error", err)
		}
	}
	if c.KafkaProducer != nil {
		if err := c.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		} else {
			log.Info("✓ Kafka producer closed")
		}
	}

	log.Info("[6/7] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, c.ErrorTracker, log)
	if err := logger.Sync(); err != nil {
		log.Debugw("Log sync completed with warnings", "error", err)
	}

	log.Info("[7/7] Closing database connections...")
	l.closeDatabases(c.PG, c.CH, c.Redis, log)

	log.Info("✅ Graceful shutdown complete")
}

// waitForGoroutines waits for all goroutines with a timeout
func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("✓ All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("⚠ Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Errorw("Error tracker flush failed", "error", err)
	}
}

func (l *Lifecycle) closeDatabases(pg *pgclient.Client, ch *chclient.Client, rdb *redisclient.Client, log *logger.Logger) {
	var dbErrors []error

	if pg != nil {
		if err := pg.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "postgres"))
		}
	}
	if ch != nil {
		if err := ch.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "clickhouse"))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			dbErrors = append(dbErrors, errors.Wrap(err, "redis"))
		}
	}

	if len(dbErrors) > 0 {
		log.Errorw("Database close errors", "errors", dbErrors)
	} else {
		log.Info("✓ Database connections closed")
	}
}

package janitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/sahayak-app/sahayak/pkg/logger"
	"github.com/sahayak-app/sahayak/pkg/store"
)

const defaultSchedule = "0 3 * * *"

// Janitor deletes expired memory facts on a cron schedule. Purge failures
// are logged and never fatal; the next due tick retries.
type Janitor struct {
	memory   store.MemoryStore
	schedule string
	gron     *gronx.Gronx

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func New(memory store.MemoryStore, schedule string) (*Janitor, error) {
	if schedule == "" {
		schedule = defaultSchedule
	}
	gron := gronx.New()
	if !gron.IsValid(schedule) {
		return nil, fmt.Errorf("invalid janitor schedule %q", schedule)
	}
	return &Janitor{
		memory:   memory,
		schedule: schedule,
		gron:     gron,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start launches the background worker. Call Stop to shut it down.
func (j *Janitor) Start() {
	j.wg.Add(1)
	go j.runWorker()
	logger.InfoCF("janitor", "started", map[string]interface{}{
		"schedule": j.schedule,
	})
}

func (j *Janitor) Stop() {
	j.closeOnce.Do(func() {
		close(j.stopCh)
		j.wg.Wait()
	})
}

func (j *Janitor) runWorker() {
	defer j.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-j.stopCh:
			return
		case now := <-ticker.C:
			due, err := j.gron.IsDue(j.schedule, now)
			if err != nil || !due {
				continue
			}
			j.PurgeNow(context.Background())
		}
	}
}

// PurgeNow deletes all facts whose expiry has passed. Safe to call directly,
// e.g. from the CLI.
func (j *Janitor) PurgeNow(ctx context.Context) {
	n, err := j.memory.PurgeExpiredFacts(ctx, time.Now().UnixMilli())
	if err != nil {
		logger.ErrorCF("janitor", "purge expired facts failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if n > 0 {
		logger.InfoCF("janitor", "purged expired facts", map[string]interface{}{
			"count": n,
		})
	}
}

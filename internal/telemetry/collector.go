package telemetry

import (
	"context"
	"sort"
	"sync"
	"time"

	"gamedash/internal/models"
	"gamedash/internal/orchestrator"

	"github.com/rs/zerolog/log"
)

const defaultWorkers = 5

// UsageFetcher is the orchestrator call the collector depends on.
type UsageFetcher interface {
	GetUsage(ctx context.Context, credential, externalID string) (*models.RemoteUsage, error)
}

var _ UsageFetcher = (*orchestrator.Client)(nil)

// Collector fans usage fetches out across a bounded worker pool and records
// the results. One server's fetch failure is logged and skipped; it never
// cancels the other in-flight fetches.
type Collector struct {
	client  UsageFetcher
	store   Store
	workers int
}

// NewCollector builds a collector running at most workers concurrent fetches.
func NewCollector(client UsageFetcher, store Store, workers int) *Collector {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Collector{client: client, store: store, workers: workers}
}

// Collect fetches and records one usage sample per server, returning the
// successful subset ordered by server internal id. Removed records are
// skipped without a fetch.
func (c *Collector) Collect(ctx context.Context, credential string, servers []*models.ServerRecord) []*models.UsageSample {
	jobs := make(chan *models.ServerRecord)

	var mu sync.Mutex
	samples := make([]*models.UsageSample, 0, len(servers))

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				sample, ok := c.collectOne(ctx, credential, rec)
				if !ok {
					continue
				}
				mu.Lock()
				samples = append(samples, sample)
				mu.Unlock()
			}
		}()
	}

	for _, rec := range servers {
		if rec == nil || rec.PowerState == models.StateRemoved {
			continue
		}
		jobs <- rec
	}
	close(jobs)
	wg.Wait()

	sort.Slice(samples, func(i, j int) bool { return samples[i].ServerID < samples[j].ServerID })
	return samples
}

func (c *Collector) collectOne(ctx context.Context, credential string, rec *models.ServerRecord) (*models.UsageSample, bool) {
	usage, err := c.client.GetUsage(ctx, credential, rec.ExternalID)
	if err != nil {
		log.Warn().Err(err).
			Str("external_id", rec.ExternalID).
			Int64("server_id", rec.ID).
			Msg("Usage fetch failed, skipping sample this cycle")
		return nil, false
	}

	sample := models.UsageSample{
		ServerID:    rec.ID,
		SampledAt:   time.Now().UTC(),
		CPUPercent:  usage.CPUPercent,
		MemoryBytes: usage.MemoryBytes,
		DiskBytes:   usage.DiskBytes,
		State:       usage.State,
	}
	stored, err := c.store.Record(sample)
	if err != nil {
		log.Error().Err(err).Int64("server_id", rec.ID).Msg("Failed to record usage sample")
		return nil, false
	}
	return stored, true
}

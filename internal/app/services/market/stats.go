package market

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/photonft/market_layer/internal/app/metrics"
	"github.com/photonft/market_layer/pkg/logger"
)

// StatsCollector periodically refreshes the listing gauges from the
// listing table so dashboards track marketplace depth without polling
// the API.
type StatsCollector struct {
	svc      *Service
	log      *logger.Logger
	schedule string
	cron     *cron.Cron
}

// NewStatsCollector builds a collector on the given cron schedule. An
// empty schedule selects a once-a-minute refresh.
func NewStatsCollector(svc *Service, schedule string, log *logger.Logger) *StatsCollector {
	if log == nil {
		log = logger.NewDefault("market-stats")
	}
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &StatsCollector{svc: svc, log: log, schedule: schedule}
}

// Name implements system.Service.
func (c *StatsCollector) Name() string { return "market-stats" }

// Start begins the periodic refresh. The first refresh runs immediately.
func (c *StatsCollector) Start(ctx context.Context) error {
	c.refresh(ctx)

	c.cron = cron.New()
	if _, err := c.cron.AddFunc(c.schedule, func() { c.refresh(context.Background()) }); err != nil {
		return err
	}
	c.cron.Start()
	c.log.WithField("schedule", c.schedule).Info("stats collector started")
	return nil
}

// Stop halts the schedule and waits for an in-flight refresh.
func (c *StatsCollector) Stop(ctx context.Context) error {
	if c.cron != nil {
		done := c.cron.Stop().Done()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (c *StatsCollector) refresh(ctx context.Context) {
	all, err := c.svc.Listings(ctx)
	if err != nil {
		c.log.WithError(err).Warnf("stats refresh failed")
		return
	}
	unsold, sold := 0, 0
	for _, lst := range all {
		if lst.Sold {
			sold++
		} else {
			unsold++
		}
	}
	metrics.SetListingCounts(unsold, sold)
}

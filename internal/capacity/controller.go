package capacity

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Controller wires the monitor and scaling manager into periodic cron jobs
// (live host-stats ingestion and scaling evaluation), following the same
// cron.New/AddFunc shape the rest of the codebase uses for background jobs.
type Controller struct {
	cron    *cron.Cron
	monitor *Monitor
	scaling *ScalingManager
	log     zerolog.Logger
}

func NewController(monitor *Monitor, scaling *ScalingManager, log zerolog.Logger) *Controller {
	return &Controller{
		cron:    cron.New(cron.WithSeconds()),
		monitor: monitor,
		scaling: scaling,
		log:     log.With().Str("component", "capacity_controller").Logger(),
	}
}

// ScheduleEvaluation registers the scaling-manager evaluation pass on the
// given cron schedule (e.g. "*/30 * * * * *" for every 30 seconds).
func (c *Controller) ScheduleEvaluation(schedule string) error {
	_, err := c.cron.AddFunc(schedule, func() {
		actions := c.scaling.Evaluate()
		for _, a := range actions {
			c.log.Info().
				Str("rule", a.RuleName).
				Str("direction", string(a.Direction)).
				Bool("success", a.Success).
				Str("reason", a.Reason).
				Msg("scaling decision")
		}
	})
	return err
}

// ScheduleHostIngest registers periodic live host CPU/memory ingestion via
// the monitor's gopsutil-backed sampler.
func (c *Controller) ScheduleHostIngest(schedule string) error {
	_, err := c.cron.AddFunc(schedule, func() {
		if err := c.monitor.IngestHostStats(); err != nil {
			c.log.Warn().Err(err).Msg("failed to ingest host stats")
		}
	})
	return err
}

func (c *Controller) Start() { c.cron.Start() }

func (c *Controller) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

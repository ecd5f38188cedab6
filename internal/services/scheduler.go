package services

import (
	"time"

	"github.com/huangang/feedbackbot/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	flowSweepSpec  = "@every 1m"
	logCleanupSpec = "0 3 * * *"
)

// MaintenanceScheduler runs the periodic housekeeping jobs: expiring stale
// conversation flows and trimming the audit log.
type MaintenanceScheduler struct {
	flows         FlowStore
	flowTTL       time.Duration
	logs          *SystemLogService
	retentionDays int
	location      *time.Location
	cronScheduler *cron.Cron
}

func NewMaintenanceScheduler(db *gorm.DB, flows FlowStore, flowTTL time.Duration, retentionDays int, location *time.Location) *MaintenanceScheduler {
	if location == nil {
		location = time.Local
	}
	return &MaintenanceScheduler{
		flows:         flows,
		flowTTL:       flowTTL,
		logs:          NewSystemLogService(db),
		retentionDays: retentionDays,
		location:      location,
	}
}

func (s *MaintenanceScheduler) Start() error {
	s.cronScheduler = cron.New(cron.WithLocation(s.location))

	if s.flowTTL > 0 {
		if _, err := s.cronScheduler.AddFunc(flowSweepSpec, s.SweepFlows); err != nil {
			return err
		}
	}
	if _, err := s.cronScheduler.AddFunc(logCleanupSpec, s.CleanupLogs); err != nil {
		return err
	}

	s.cronScheduler.Start()
	logger.Info().Dur("flow_ttl", s.flowTTL).Int("log_retention_days", s.retentionDays).Msg("[Scheduler] Started")

	// the first cleanup runs at startup
	go s.CleanupLogs()
	return nil
}

func (s *MaintenanceScheduler) Stop() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

// SweepFlows drops conversation flows older than the TTL.
func (s *MaintenanceScheduler) SweepFlows() {
	if s.flowTTL <= 0 {
		return
	}
	if n := s.flows.Sweep(time.Now().Add(-s.flowTTL)); n > 0 {
		logger.Debug().Int("removed", n).Msg("[Scheduler] Expired conversation flows")
	}
}

func (s *MaintenanceScheduler) CleanupLogs() {
	runLogCleanup(s.logs, s.retentionDays)
}

// Package scheduler runs the resolve-and-publish cycle on a fixed cadence.
// It owns only the timing; the work itself is a task closure supplied by the
// caller, so the pipeline stays testable without a running clock.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/config"
	"github.com/nickmerrett/iso-downloader/pkg/errors"
)

// Task performs one resolve-and-publish cycle and reports how many jobs it
// published.
type Task func(ctx context.Context) (int, error)

// Scheduler triggers a Task on the cadence described by a SchedulerConfig.
type Scheduler struct {
	cron  *cron.Cron
	task  Task
	entry cron.EntryID
}

// CronSpec translates a frequency and HH:MM time of day into a standard
// five-field cron expression. Weekly runs fall on Sunday, monthly runs on
// the first day of the month.
func CronSpec(cfg config.SchedulerConfig) (string, error) {
	hour, minute, err := parseTimeOfDay(cfg.Time)
	if err != nil {
		return "", err
	}

	switch cfg.Frequency {
	case config.FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case config.FrequencyWeekly:
		return fmt.Sprintf("%d %d * * 0", minute, hour), nil
	case config.FrequencyMonthly:
		return fmt.Sprintf("%d %d 1 * *", minute, hour), nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidSchedule, "unknown frequency %q", cfg.Frequency)
	}
}

// New builds a scheduler for the given cadence. The task runs once per
// trigger; a failing run is logged and the schedule keeps going.
func New(cfg config.SchedulerConfig, task Task) (*Scheduler, error) {
	spec, err := CronSpec(cfg)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{cron: cron.New(), task: task}
	s.entry, err = s.cron.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidSchedule, "cron spec %q: %v", spec, err)
	}

	logger.Info("Scheduler configured", logger.Fields{
		"frequency": string(cfg.Frequency),
		"time":      cfg.Time,
		"cron":      spec,
	})
	return s, nil
}

// Start begins triggering the task on schedule. It does not block.
func (s *Scheduler) Start() {
	s.cron.Start()
	logger.Info("Scheduler started", logger.Fields{"next_run": s.NextRun().Format(time.RFC3339)})
}

// Stop halts the schedule and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Scheduler stopped")
}

// NextRun reports when the next scheduled trigger fires. Zero before Start.
func (s *Scheduler) NextRun() time.Time {
	return s.cron.Entry(s.entry).Next
}

// TriggerNow runs the task immediately, outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) (int, error) {
	return s.task(ctx)
}

func (s *Scheduler) runOnce() {
	published, err := s.task(context.Background())
	if err != nil {
		logger.Error("Scheduled run failed", logger.Fields{"error": err.Error()})
		return
	}
	logger.Success("Scheduled run complete", logger.Fields{"published": published})
}

func parseTimeOfDay(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, errors.Wrapf(errors.ErrInvalidSchedule, "time %q is not HH:MM", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, errors.Wrapf(errors.ErrInvalidSchedule, "time %q has an invalid hour", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, errors.Wrapf(errors.ErrInvalidSchedule, "time %q has an invalid minute", value)
	}
	return hour, minute, nil
}

package main

import (
	"context"
	"time"

	"github.com/golang/glog"
	"github.com/robfig/cron"
)

// jobs maps cron schedules (with a leading seconds field) to maintenance tasks.
func (s *server) jobs(purgeSchedule string) map[string]func() {
	return map[string]func(){
		purgeSchedule: s.purgeTokensJob,
	}
}

func (s *server) purgeTokensJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := s.accounts.PurgeExpired(ctx)
	if err != nil {
		glog.Errorf("purge tokens: %v", err)
		return
	}
	if n > 0 || glog.V(1) {
		glog.Infof("purged %d expired or revoked tokens", n)
	}
}

// startCron schedules the maintenance jobs. An empty schedule disables a job.
func (s *server) startCron(purgeSchedule string) *cron.Cron {
	c := cron.New()
	for schedule, job := range s.jobs(purgeSchedule) {
		if schedule == "" {
			continue
		}
		if err := c.AddFunc(schedule, job); err != nil {
			glog.Errorf("cron schedule %q rejected: %v", schedule, err)
		}
	}
	c.Start()
	return c
}

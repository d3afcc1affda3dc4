/*
Copyright 2026 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"k8s.io/utils/clock"

	"sigs.k8s.io/fila/pkg/lister"
	"sigs.k8s.io/fila/pkg/run"
)

const (
	DefaultPollInterval = 30 * time.Second

	// DefaultCancelGracePeriod is how long a run waits for the build
	// system to stop it after requesting its own cancellation
	DefaultCancelGracePeriod = 300 * time.Second
)

// ErrCancelTimeout is returned when the run requested its own
// cancellation but was not stopped within the grace period
var ErrCancelTimeout = errors.New("failed to cancel in time")

// Service is the build system the guard coordinates through
type Service interface {
	lister.RunService
	FindWorkflow(context.Context, run.Scope, string) (*run.Workflow, error)
	CancelRun(context.Context, run.Scope, int64) error
}

// Config holds the inputs of the guard, fixed for its lifetime
type Config struct {
	Branch        string
	PollInterval  time.Duration
	CancelOnNewer bool
}

func (c Config) Validate() error {
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval cannot be negative (%s)", c.PollInterval)
	}
	return nil
}

type Options struct {
	Clock             clock.Clock
	CancelGracePeriod time.Duration
}

// Guard blocks a run until every older run of the same workflow on the
// branch is done, or cancels it when a newer run shows up.
type Guard struct {
	Options Options
	Lister  *lister.Lister
	self    run.Self
	scope   run.Scope
	config  Config
	service Service
}

func New(self run.Self, scope run.Scope, config Config, service Service) *Guard {
	return &Guard{
		Options: Options{
			Clock:             clock.RealClock{},
			CancelGracePeriod: DefaultCancelGracePeriod,
		},
		Lister:  lister.New(service),
		self:    self,
		scope:   scope,
		config:  config,
		service: service,
	}
}

// Classification is the position of a run among the live runs of its job
type Classification struct {
	// Newer are the runs started after self
	Newer []run.Run
	// Older are the runs self has to wait for, most recent first
	Older []run.Run
}

// Classify sorts the live runs of the same job as self into newer and
// older ones. Runs of other jobs and self itself are dropped.
func Classify(self run.Self, runs []run.Run) Classification {
	return Classification{
		Newer: run.Newer(self, runs),
		Older: run.Older(self, runs),
	}
}

// Wait returns once no older run of the workflow is queued or in progress.
// If a newer run exists and CancelOnNewer is set, it cancels its own run
// and only returns, with ErrCancelTimeout, if the build system did not
// stop it in time. There is no limit on the polling, ctx is the only way
// to bound it.
func (g *Guard) Wait(ctx context.Context) error {
	if err := g.config.Validate(); err != nil {
		return fmt.Errorf("validating guard config: %w", err)
	}

	logrus.Info("Checking for running builds...")

	self := g.self
	wf, err := g.service.FindWorkflow(ctx, g.scope, self.Name)
	if err != nil {
		if errors.Is(err, run.ErrWorkflowNotFound) {
			logrus.Warnf("Workflow %q not found in %s, not waiting", self.Name, g.scope)
			return nil
		}
		return fmt.Errorf("resolving workflow %q: %w", self.Name, err)
	}
	self.WorkflowID = wf.ID
	logrus.Debugf("Run %d belongs to workflow %d", self.ID, self.WorkflowID)

	for {
		runs, err := g.Lister.List(ctx, g.scope, self.WorkflowID, g.config.Branch)
		if err != nil {
			return fmt.Errorf("polling runs: %w", err)
		}

		c := Classify(self, runs)
		if len(c.Newer) > 0 {
			if g.config.CancelOnNewer {
				return g.cancelSelf(ctx, self, c.Newer)
			}
			logrus.Warnf("%d newer runs found, continuing as cancel on newer is disabled", len(c.Newer))
		}

		if len(c.Older) == 0 {
			logrus.Info("No other builds in progress. Continuing...")
			return nil
		}

		logrus.Info("Awaiting runs:")
		for _, r := range c.Older {
			logrus.Infof("  %s", r.URL)
		}

		if err := g.sleep(ctx, g.config.PollInterval); err != nil {
			return fmt.Errorf("waiting for older runs: %w", err)
		}
	}
}

// cancelSelf asks the build system to cancel the current run and waits
// for it to happen. Returning from here means the cancellation failed.
func (g *Guard) cancelSelf(ctx context.Context, self run.Self, newer []run.Run) error {
	run.SortDescending(newer)
	logrus.Infof("Run %d is superseded by %s, cancelling it", self.ID, newer[0].URL)

	if err := g.service.CancelRun(ctx, g.scope, self.ID); err != nil {
		return fmt.Errorf("requesting cancellation of run %d: %w", self.ID, err)
	}

	logrus.Infof("Waiting up to %s for the run to be cancelled", g.Options.CancelGracePeriod)
	if err := g.sleep(ctx, g.Options.CancelGracePeriod); err != nil {
		return fmt.Errorf("waiting for cancellation: %w", err)
	}

	runs, err := g.Lister.List(ctx, g.scope, self.WorkflowID, g.config.Branch)
	switch {
	case err != nil:
		logrus.Warnf("Unable to check the state of run %d: %v", self.ID, err)
	case run.Contains(runs, self.ID):
		logrus.Errorf("Run %d is still live after %s", self.ID, g.Options.CancelGracePeriod)
	}
	return fmt.Errorf("run %d: %w", self.ID, ErrCancelTimeout)
}

func (g *Guard) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := g.Options.Clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C():
		return nil
	}
}

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

package lister

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"sigs.k8s.io/fila/pkg/run"
)

// RunService is the part of the build system the lister reads from.
// Implementations must return every page of results.
type RunService interface {
	ListRuns(context.Context, run.Scope, run.Query) ([]run.Run, error)
}

type Options struct {
	// Attempts is the total number of tries of a fetch, not retries
	Attempts uint

	// Delay between attempts
	Delay time.Duration

	Clock clock.Clock
}

var defaultOptions = Options{
	Attempts: 3,
	Delay:    time.Second,
	Clock:    clock.RealClock{},
}

// Lister fetches the live runs of a workflow
type Lister struct {
	Options Options
	service RunService
}

func New(service RunService) *Lister {
	return &Lister{
		Options: defaultOptions,
		service: service,
	}
}

// List returns the runs of the workflow on branch that are either queued
// or in progress. Both states are queried at once and a failure in either
// one retries the whole fetch. The returned runs are not ordered.
func (l *Lister) List(ctx context.Context, scope run.Scope, workflowID int64, branch string) ([]run.Run, error) {
	attempt := 0
	runs, err := retry.DoWithData(
		func() ([]run.Run, error) {
			attempt++
			return l.fetch(ctx, scope, workflowID, branch)
		},
		retry.Context(ctx),
		retry.Attempts(l.Options.Attempts),
		retry.Delay(l.Options.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.WithTimer(clockTimer{l.Options.Clock}),
		retry.OnRetry(func(n uint, err error) {
			logrus.Warnf("Attempt %d/%d to list runs failed: %v", n+1, l.Options.Attempts, err)
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetching live runs interrupted after %d attempts: %w", attempt, err)
		}
		return nil, fmt.Errorf("fetching live runs after %d attempts: %w", attempt, err)
	}
	logrus.Debugf("Found %d live runs of workflow %d on %q", len(runs), workflowID, branch)
	return runs, nil
}

// fetch queries all live states concurrently and merges the results
func (l *Lister) fetch(ctx context.Context, scope run.Scope, workflowID int64, branch string) ([]run.Run, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([][]run.Run, len(run.LiveStatuses))
	for i, status := range run.LiveStatuses {
		g.Go(func() error {
			runs, err := l.service.ListRuns(gctx, scope, run.Query{
				WorkflowID: workflowID,
				Branch:     branch,
				Status:     status,
			})
			if err != nil {
				return fmt.Errorf("listing %s runs: %w", status, err)
			}
			results[i] = runs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ret := []run.Run{}
	for _, runs := range results {
		ret = append(ret, runs...)
	}
	return run.Dedupe(ret), nil
}

// clockTimer routes the retry delays through the lister clock
type clockTimer struct {
	clock clock.Clock
}

func (ct clockTimer) After(d time.Duration) <-chan time.Time {
	return ct.clock.After(d)
}

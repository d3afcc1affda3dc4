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

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/env"

	"sigs.k8s.io/fila/pkg/git"
	"sigs.k8s.io/fila/pkg/github"
	"sigs.k8s.io/fila/pkg/guard"
	"sigs.k8s.io/fila/pkg/run"
)

type waitOptions struct {
	repository    string
	runID         int64
	workflow      string
	branch        string
	workspace     string
	pollInterval  time.Duration
	timeout       time.Duration
	cancelOnNewer bool
}

func (o *waitOptions) Validate() error {
	errs := []error{}
	if o.repository == "" {
		errs = append(errs, errors.New("repository not specified and not found in the workspace"))
	} else if _, err := github.ParseRepository(o.repository); err != nil {
		errs = append(errs, err)
	}
	if o.runID <= 0 {
		errs = append(errs, errors.New("run id not specified"))
	}
	if o.workflow == "" {
		errs = append(errs, errors.New("workflow name not specified"))
	}
	if o.pollInterval < 0 {
		errs = append(errs, errors.New("poll interval cannot be negative"))
	}
	if o.timeout < 0 {
		errs = append(errs, errors.New("timeout cannot be negative"))
	}
	return errors.Join(errs...)
}

// complete fills the repository and branch from the local checkout when
// neither the flags nor the environment set them
func (o *waitOptions) complete() error {
	repo := git.NewRepository(o.workspace)
	if o.repository == "" {
		remote, err := repo.SourceURL()
		if err != nil {
			return fmt.Errorf("reading repository remote: %w", err)
		}
		if remote != "" {
			scope, err := github.ParseRemoteURL(remote)
			if err != nil {
				return fmt.Errorf("parsing repository remote: %w", err)
			}
			o.repository = scope.String()
		}
	}

	if o.branch == "" {
		branch, err := repo.CurrentBranch()
		if err != nil {
			return fmt.Errorf("reading current branch: %w", err)
		}
		o.branch = branch
	}
	return nil
}

func addWait(parentCmd *cobra.Command) {
	waitOpts := waitOptions{}
	var ghOpts *githubOptions

	waitCmd := &cobra.Command{
		Short: "Wait for older runs of the workflow to finish",
		Long: `fila wait

The wait subcommand blocks until no older run of the current workflow
is queued or in progress on the branch, polling the GitHub API.

If a newer run of the workflow exists, the current run is obsolete:
fila requests its cancellation and waits for GitHub to stop it. If the
run is still alive after five minutes, fila fails.

	`,
		Use:               "wait",
		SilenceUsage:      true,
		PersistentPreRunE: initLogging,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			if err := waitOpts.complete(); err != nil {
				return fmt.Errorf("reading workspace: %w", err)
			}

			if err := waitOpts.Validate(); err != nil {
				return fmt.Errorf("validating options: %w", err)
			}

			if waitOpts.branch == "" {
				logrus.Warn("no branch set, runs on every branch will be taken into account")
			}

			ctx := cmd.Context()
			if waitOpts.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, waitOpts.timeout)
				defer cancel()
			}

			scope, err := github.ParseRepository(waitOpts.repository)
			if err != nil {
				return fmt.Errorf("parsing repository: %w", err)
			}

			client, err := github.New(ctx, github.Options{
				Token:  ghOpts.FinalToken(),
				APIURL: ghOpts.APIURL,
			})
			if err != nil {
				return fmt.Errorf("creating GitHub client: %w", err)
			}

			g := guard.New(
				run.Self{ID: waitOpts.runID, Name: waitOpts.workflow},
				scope,
				guard.Config{
					Branch:        waitOpts.branch,
					PollInterval:  waitOpts.pollInterval,
					CancelOnNewer: waitOpts.cancelOnNewer,
				},
				client,
			)

			logrus.Infof(
				"Serializing run %d of %q in %s (branch %q)",
				waitOpts.runID, waitOpts.workflow, scope, waitOpts.branch,
			)
			if err := g.Wait(ctx); err != nil {
				return fmt.Errorf("waiting for turn: %w", err)
			}
			return nil
		},
	}

	ghOpts = addGitHubFlags(waitCmd)

	waitCmd.PersistentFlags().StringVar(
		&waitOpts.repository,
		"repository",
		env.Default("GITHUB_REPOSITORY", ""),
		"owner/repo of the repository running the workflow",
	)

	waitCmd.PersistentFlags().Int64Var(
		&waitOpts.runID,
		"run-id",
		envInt64("GITHUB_RUN_ID"),
		"id of the current workflow run",
	)

	waitCmd.PersistentFlags().StringVar(
		&waitOpts.workflow,
		"workflow",
		env.Default("GITHUB_WORKFLOW", ""),
		"name of the workflow to serialize",
	)

	waitCmd.PersistentFlags().StringVar(
		&waitOpts.branch,
		"branch",
		defaultBranch(),
		"only wait for runs on this branch",
	)

	waitCmd.PersistentFlags().StringVar(
		&waitOpts.workspace,
		"workspace",
		env.Default("GITHUB_WORKSPACE", "."),
		"path to the checkout used to guess the repository and branch",
	)

	waitCmd.PersistentFlags().DurationVar(
		&waitOpts.pollInterval,
		"poll-interval",
		guard.DefaultPollInterval,
		"time to wait between checks of the older runs",
	)

	waitCmd.PersistentFlags().DurationVar(
		&waitOpts.timeout,
		"timeout",
		0,
		"give up waiting after this long (0 waits forever)",
	)

	waitCmd.PersistentFlags().BoolVar(
		&waitOpts.cancelOnNewer,
		"cancel-on-newer",
		true,
		"cancel the current run when a newer run of the workflow exists",
	)

	parentCmd.AddCommand(waitCmd)
}

// defaultBranch returns the branch GitHub Actions is running on. Pull
// request events set GITHUB_HEAD_REF to the source branch.
func defaultBranch() string {
	if b := env.Default("GITHUB_HEAD_REF", ""); b != "" {
		return b
	}
	return env.Default("GITHUB_REF_NAME", "")
}

func envInt64(key string) int64 {
	v := env.Default(key, "")
	if v == "" {
		return 0
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logrus.Warnf("ignoring invalid %s: %q", key, v)
		return 0
	}
	return i
}

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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sigs.k8s.io/release-utils/log"
	"sigs.k8s.io/release-utils/version"
)

func Execute() error {
	rootCmd := &cobra.Command{
		Short: "Serialize runs of a CI workflow",
		Long: `fila (a line, the one you wait in)

fila makes the runs of a CI workflow take turns. Added as the first
step of a job, it blocks until every older run of the same workflow
on the same branch is done. When a newer run shows up, the current
run is obsolete and fila cancels it.

	- uses: actions/checkout@v4
	- run: fila wait

fila reads the run, workflow and repository from the environment
GitHub Actions sets up. Everything can be overridden with flags.

	`,
		Use:               "fila",
		SilenceUsage:      true,
		PersistentPreRunE: initLogging,
	}

	rootCmd.PersistentFlags().StringVar(
		&commandLineOpts.logLevel,
		"log-level",
		"info",
		fmt.Sprintf("the logging verbosity, either %s", log.LevelNames()),
	)

	addWait(rootCmd)
	rootCmd.AddCommand(version.WithFont("larry3d"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
		return err
	}
	return nil
}

type commandLineOptions struct {
	logLevel string
}

var commandLineOpts = &commandLineOptions{}

func initLogging(*cobra.Command, []string) error {
	return log.SetupGlobalLogger(commandLineOpts.logLevel)
}

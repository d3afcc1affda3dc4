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
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/env"
)

type githubOptions struct {
	Token  string
	APIURL string
}

// FinalToken returns the token from the flags, falling back to the
// GITHUB_TOKEN environment variable. The variable is not used as the flag
// default to keep it out of the help output.
func (gho *githubOptions) FinalToken() string {
	if gho.Token != "" {
		return gho.Token
	}
	return env.Default("GITHUB_TOKEN", "")
}

func addGitHubFlags(command *cobra.Command) *githubOptions {
	opts := &githubOptions{}
	command.PersistentFlags().StringVar(
		&opts.Token,
		"token",
		"",
		"GitHub token with permission to list and cancel runs (defaults to $GITHUB_TOKEN)",
	)
	command.PersistentFlags().StringVar(
		&opts.APIURL,
		"api-url",
		env.Default("GITHUB_API_URL", ""),
		"GitHub API endpoint, for GitHub Enterprise",
	)
	return opts
}

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

package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v75/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"sigs.k8s.io/fila/pkg/run"
)

const defaultPerPage = 100

type Options struct {
	// Token used to authenticate to the API. Requests are made
	// unauthenticated when empty.
	Token string

	// APIURL overrides the API endpoint (GitHub Enterprise)
	APIURL string
}

// Client queries and cancels GitHub Actions workflow runs
type Client struct {
	gh *gogithub.Client
}

func New(ctx context.Context, opts Options) (*Client, error) {
	httpClient := &http.Client{}
	if opts.Token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: opts.Token},
		))
	} else {
		logrus.Warn("making unauthenticated requests to github")
	}

	gh := gogithub.NewClient(httpClient)
	if opts.APIURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parsing API URL: %w", err)
		}
		gh.BaseURL = u
	}
	return &Client{gh: gh}, nil
}

// ListRuns returns all the runs matching the query, following the
// pagination until the last page.
func (c *Client) ListRuns(ctx context.Context, scope run.Scope, q run.Query) ([]run.Run, error) {
	if q.WorkflowID == 0 {
		return nil, errors.New("workflow id not specified")
	}
	opts := &gogithub.ListWorkflowRunsOptions{
		Branch:      q.Branch,
		Status:      string(q.Status),
		ListOptions: gogithub.ListOptions{PerPage: defaultPerPage},
	}

	ret := []run.Run{}
	for {
		logrus.Debugf(
			"GitHubAPI[GET]: %s runs of workflow %d in %s (page %d)",
			q.Status, q.WorkflowID, scope, opts.Page,
		)
		runs, res, err := c.gh.Actions.ListWorkflowRunsByID(
			ctx, scope.Owner, scope.Repository, q.WorkflowID, opts,
		)
		if err != nil {
			return nil, fmt.Errorf("listing %s runs in %s: %w", q.Status, scope, err)
		}

		for _, wr := range runs.WorkflowRuns {
			ret = append(ret, runFromAPI(wr))
		}

		if res.NextPage == 0 {
			return ret, nil
		}
		opts.Page = res.NextPage
	}
}

// FindWorkflow looks up a workflow by its name. The first exact match wins.
func (c *Client) FindWorkflow(ctx context.Context, scope run.Scope, name string) (*run.Workflow, error) {
	opts := &gogithub.ListOptions{PerPage: defaultPerPage}
	for {
		logrus.Debugf("GitHubAPI[GET]: workflows in %s (page %d)", scope, opts.Page)
		workflows, res, err := c.gh.Actions.ListWorkflows(ctx, scope.Owner, scope.Repository, opts)
		if err != nil {
			return nil, fmt.Errorf("listing workflows in %s: %w", scope, err)
		}
		for _, wf := range workflows.Workflows {
			if wf.GetName() == name {
				return workflowFromAPI(wf), nil
			}
		}
		if res.NextPage == 0 {
			return nil, fmt.Errorf("%w: %q in %s", run.ErrWorkflowNotFound, name, scope)
		}
		opts.Page = res.NextPage
	}
}

// CancelRun requests the cancellation of a run. The API only acknowledges
// the request, the run stops asynchronously.
func (c *Client) CancelRun(ctx context.Context, scope run.Scope, id int64) error {
	logrus.Debugf("GitHubAPI[POST]: cancel run %d in %s", id, scope)
	if _, err := c.gh.Actions.CancelWorkflowRunByID(ctx, scope.Owner, scope.Repository, id); err != nil {
		// 202 Accepted is surfaced as an error by the client
		var accepted *gogithub.AcceptedError
		if errors.As(err, &accepted) {
			return nil
		}
		return fmt.Errorf("cancelling run %d in %s: %w", id, scope, err)
	}
	return nil
}

// ParseRepository reads an owner/repo slug as found in GITHUB_REPOSITORY
func ParseRepository(slug string) (run.Scope, error) {
	owner, repo, ok := strings.Cut(strings.Trim(slug, "/"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return run.Scope{}, fmt.Errorf("invalid repository %q, expected owner/repo", slug)
	}
	return run.Scope{Owner: owner, Repository: repo}, nil
}

// ParseRemoteURL extracts the repository from a git remote URL in
// either its https or scp-like ssh form
func ParseRemoteURL(remote string) (run.Scope, error) {
	var path string
	switch {
	case strings.HasPrefix(remote, "git@"):
		_, p, ok := strings.Cut(remote, ":")
		if !ok {
			return run.Scope{}, fmt.Errorf("unable to parse remote %q", remote)
		}
		path = p
	default:
		u, err := url.Parse(remote)
		if err != nil {
			return run.Scope{}, fmt.Errorf("parsing remote URL: %w", err)
		}
		path = u.Path
	}
	return ParseRepository(strings.TrimSuffix(path, ".git"))
}

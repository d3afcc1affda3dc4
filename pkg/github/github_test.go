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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigs.k8s.io/fila/pkg/run"
)

var testScope = run.Scope{Owner: "kubernetes-sigs", Repository: "fila"}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c, err := New(t.Context(), Options{APIURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestListRunsPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/kubernetes-sigs/fila/actions/workflows/7/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("branch"))
		assert.Equal(t, "queued", r.URL.Query().Get("status"))
		switch r.URL.Query().Get("page") {
		case "":
			w.Header().Set("Link", fmt.Sprintf(
				`<http://%s%s?page=2>; rel="next", <http://%s%s?page=2>; rel="last"`,
				r.Host, r.URL.Path, r.Host, r.URL.Path,
			))
			fmt.Fprint(w, `{"total_count":3,"workflow_runs":[
				{"id":100,"name":"build","status":"queued","workflow_id":7,"html_url":"https://github.com/kubernetes-sigs/fila/actions/runs/100"},
				{"id":101,"name":"build","status":"queued","workflow_id":7,"html_url":"https://github.com/kubernetes-sigs/fila/actions/runs/101"}
			]}`)
		case "2":
			fmt.Fprint(w, `{"total_count":3,"workflow_runs":[
				{"id":102,"name":"build","status":"queued","workflow_id":7,"html_url":"https://github.com/kubernetes-sigs/fila/actions/runs/102"}
			]}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	})

	c := newTestClient(t, mux)
	runs, err := c.ListRuns(t.Context(), testScope, run.Query{
		WorkflowID: 7, Branch: "main", Status: run.StatusQueued,
	})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	require.Equal(t, run.Run{
		ID:         102,
		Name:       "build",
		WorkflowID: 7,
		Status:     run.StatusQueued,
		URL:        "https://github.com/kubernetes-sigs/fila/actions/runs/102",
	}, runs[2])
}

func TestListRunsRequiresWorkflow(t *testing.T) {
	requests := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(http.ResponseWriter, *http.Request) { requests++ })
	c := newTestClient(t, mux)
	_, err := c.ListRuns(t.Context(), testScope, run.Query{Status: run.StatusInProgress})
	require.Error(t, err)
	require.Zero(t, requests)
}

func TestListRunsError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/kubernetes-sigs/fila/actions/workflows/7/runs", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c := newTestClient(t, mux)
	_, err := c.ListRuns(t.Context(), testScope, run.Query{WorkflowID: 7, Status: run.StatusQueued})
	require.Error(t, err)
}

func TestFindWorkflow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/kubernetes-sigs/fila/actions/workflows", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"total_count":2,"workflows":[{"id":1,"name":"lint"},{"id":7,"name":"build"}]}`)
	})
	c := newTestClient(t, mux)

	wf, err := c.FindWorkflow(t.Context(), testScope, "build")
	require.NoError(t, err)
	require.Equal(t, &run.Workflow{ID: 7, Name: "build"}, wf)

	_, err = c.FindWorkflow(t.Context(), testScope, "release")
	require.True(t, errors.Is(err, run.ErrWorkflowNotFound))
}

func TestCancelRun(t *testing.T) {
	for _, tc := range []struct {
		status    int
		shouldErr bool
	}{
		{http.StatusAccepted, false},
		{http.StatusConflict, true},
		{http.StatusInternalServerError, true},
	} {
		calls := 0
		mux := http.NewServeMux()
		mux.HandleFunc("/repos/kubernetes-sigs/fila/actions/runs/105/cancel", func(w http.ResponseWriter, r *http.Request) {
			calls++
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(tc.status)
			fmt.Fprint(w, `{}`)
		})
		c := newTestClient(t, mux)
		err := c.CancelRun(t.Context(), testScope, 105)
		if tc.shouldErr {
			require.Error(t, err)
		} else {
			require.NoError(t, err)
		}
		require.Equal(t, 1, calls)
	}
}

func TestParseRepository(t *testing.T) {
	for _, tc := range []struct {
		slug      string
		expect    run.Scope
		shouldErr bool
	}{
		{"kubernetes-sigs/fila", testScope, false},
		{"/kubernetes-sigs/fila/", testScope, false},
		{"fila", run.Scope{}, true},
		{"a/b/c", run.Scope{}, true},
		{"/fila", run.Scope{}, true},
	} {
		res, err := ParseRepository(tc.slug)
		if tc.shouldErr {
			require.Error(t, err, tc.slug)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, tc.expect, res)
	}
}

func TestParseRemoteURL(t *testing.T) {
	for _, remote := range []string{
		"git@github.com:kubernetes-sigs/fila.git",
		"https://github.com/kubernetes-sigs/fila.git",
		"https://github.com/kubernetes-sigs/fila",
		"ssh://git@github.com/kubernetes-sigs/fila.git",
	} {
		res, err := ParseRemoteURL(remote)
		require.NoError(t, err, remote)
		require.Equal(t, testScope, res)
	}
	_, err := ParseRemoteURL("git@github.com")
	require.Error(t, err)
}

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

package run

import (
	"errors"
	"fmt"
	"slices"
)

// ErrWorkflowNotFound is returned by build systems when no job definition
// carries the requested name
var ErrWorkflowNotFound = errors.New("workflow not found")

// Status is the lifecycle state of a run as reported by the build system
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
)

// LiveStatuses are the states where a run still holds its place in line
var LiveStatuses = []Status{StatusInProgress, StatusQueued}

// Run is a snapshot of one execution of a job as returned by the
// build system. Runs are never modified after being fetched.
type Run struct {
	ID         int64
	Name       string
	WorkflowID int64
	Status     Status
	URL        string
}

func (r Run) String() string {
	return fmt.Sprintf("%s#%d (%s)", r.Name, r.ID, r.Status)
}

// Self identifies the run executing the guard. WorkflowID is known once
// the job name has been resolved in the build system.
type Self struct {
	ID         int64
	Name       string
	WorkflowID int64
}

// SameJob returns true if r is a run of the same job as self
func (s Self) SameJob(r Run) bool {
	if s.WorkflowID != 0 && r.WorkflowID != 0 {
		return s.WorkflowID == r.WorkflowID
	}
	return s.Name == r.Name
}

// Scope is the repository whose runs are listed
type Scope struct {
	Owner      string
	Repository string
}

func (s Scope) String() string {
	return s.Owner + "/" + s.Repository
}

// Query selects the runs of one workflow on a branch in one state
type Query struct {
	WorkflowID int64
	Branch     string
	Status     Status
}

// Workflow is a job definition in the build system
type Workflow struct {
	ID   int64
	Name string
}

// Newer returns the runs of the same job as self with a greater ID
func Newer(self Self, runs []Run) []Run {
	ret := []Run{}
	for _, r := range runs {
		if self.SameJob(r) && r.ID > self.ID {
			ret = append(ret, r)
		}
	}
	return ret
}

// Older returns the runs of the same job as self with a smaller ID,
// most recent first.
func Older(self Self, runs []Run) []Run {
	ret := []Run{}
	for _, r := range runs {
		if self.SameJob(r) && r.ID < self.ID {
			ret = append(ret, r)
		}
	}
	SortDescending(ret)
	return ret
}

// SortDescending sorts runs by ID, highest first
func SortDescending(runs []Run) {
	slices.SortFunc(runs, func(a, b Run) int {
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}

// Dedupe drops repeated run IDs keeping the first occurrence. A run
// moving from queued to in_progress between two queries shows up in both.
func Dedupe(runs []Run) []Run {
	seen := map[int64]struct{}{}
	ret := make([]Run, 0, len(runs))
	for _, r := range runs {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		ret = append(ret, r)
	}
	return ret
}

// Contains returns true if a run with the id is in the list
func Contains(runs []Run, id int64) bool {
	return slices.ContainsFunc(runs, func(r Run) bool { return r.ID == id })
}

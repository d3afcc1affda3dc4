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
	gogithub "github.com/google/go-github/v75/github"

	"sigs.k8s.io/fila/pkg/run"
)

func runFromAPI(wr *gogithub.WorkflowRun) run.Run {
	return run.Run{
		ID:         wr.GetID(),
		Name:       wr.GetName(),
		WorkflowID: wr.GetWorkflowID(),
		Status:     run.Status(wr.GetStatus()),
		URL:        wr.GetHTMLURL(),
	}
}

func workflowFromAPI(wf *gogithub.Workflow) *run.Workflow {
	return &run.Workflow{
		ID:   wf.GetID(),
		Name: wf.GetName(),
	}
}

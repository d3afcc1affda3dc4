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

package git

import (
	"errors"
	"fmt"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/helpers"
)

const defaultRemote = "origin"

// Repository reads data from a local checkout. Every method returns an
// empty string when the directory is not a git repository.
type Repository struct {
	Options Options
}

func NewRepository(dir string) *Repository {
	return &Repository{
		Options: Options{
			CWD:    dir,
			Remote: defaultRemote,
		},
	}
}

type Options struct {
	CWD    string
	Remote string
}

func (r *Repository) open() (*gogit.Repository, error) {
	if !helpers.Exists(filepath.Join(r.Options.CWD, ".git")) {
		logrus.Debugf("Directory %s is not a git repository", r.Options.CWD)
		return nil, nil
	}

	repo, err := gogit.PlainOpen(r.Options.CWD)
	if err != nil {
		return nil, fmt.Errorf("opening git repo at %s: %w", r.Options.CWD, err)
	}
	return repo, nil
}

// SourceURL returns the repository URL
func (r *Repository) SourceURL() (string, error) {
	repo, err := r.open()
	if err != nil || repo == nil {
		return "", err
	}

	remote, err := repo.Remote(r.Options.Remote)
	if err != nil {
		return "", fmt.Errorf("getting repository remote: %w", err)
	}

	if len(remote.Config().URLs) == 0 {
		return "", errors.New("repo remote does not have URLs")
	}

	return remote.Config().URLs[0], nil
}

// CurrentBranch returns the branch checked out. A detached HEAD, as
// found in most CI checkouts of pull requests, returns an empty string.
func (r *Repository) CurrentBranch() (string, error) {
	repo, err := r.open()
	if err != nil || repo == nil {
		return "", err
	}

	// HEAD is read without resolving it, the branch may not have
	// objects in shallow checkouts
	head, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("reading HEAD: %w", err)
	}

	if head.Type() != plumbing.SymbolicReference || !head.Target().IsBranch() {
		logrus.Debugf("HEAD in %s is detached", r.Options.CWD)
		return "", nil
	}
	return head.Target().Short(), nil
}

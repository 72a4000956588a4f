package catalog

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
	"github.com/jsettlers-installer/installer/client/internal/ratelimit"
)

// DefaultRunCap bounds how many workflow runs with artifacts are collected.
const DefaultRunCap = 30

// Workflow is a CI workflow of the repository.
type Workflow struct {
	ID   int64
	Name string
}

// Repository is the remote repository the catalog is read from.
type Repository interface {
	ratelimit.Source
	// ListReleases returns every release as a KindRelease entry
	ListReleases(ctx context.Context) ([]Entry, error)
	ListWorkflows(ctx context.Context) ([]Workflow, error)
	// ListWorkflowRuns returns KindWorkflowRun entries without artifacts
	ListWorkflowRuns(ctx context.Context, workflowID int64) ([]Entry, error)
	ListRunArtifacts(ctx context.Context, runID int64) ([]Asset, error)
}

// Gate is consulted before each remote call.
type Gate interface {
	Check(ctx context.Context) error
}

// Client builds the merged catalog of releases and workflow runs.
type Client struct {
	repo   Repository
	gate   Gate
	runCap int
}

func NewClient(repo Repository, gate Gate, runCap int) *Client {
	if runCap <= 0 {
		runCap = DefaultRunCap
	}
	return &Client{
		repo:   repo,
		gate:   gate,
		runCap: runCap,
	}
}

// FetchCatalog lists releases and, unless releasesOnly, workflow runs with artifacts.
// A quota breach during the run enumeration keeps what was collected so far.
func (c *Client) FetchCatalog(ctx context.Context, releasesOnly bool) (Catalog, error) {
	log.Debugf("fetching catalog, releases only: %t", releasesOnly)

	if err := c.gate.Check(ctx); err != nil {
		return nil, err
	}

	releases, err := c.repo.ListReleases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	log.Debugf("found %d releases", len(releases))

	entries := make([]Entry, 0, len(releases))
	entries = append(entries, releases...)

	if !releasesOnly {
		runs, err := c.collectRuns(ctx)
		switch {
		case errors.Is(err, sierrors.ErrQuotaExhausted):
			log.Warnf("stopped listing workflow runs after %d runs: %v", len(runs), err)
		case err != nil:
			return nil, err
		}
		entries = append(entries, runs...)
	}

	log.Debugf("found %d catalog entries", len(entries))
	return Sort(entries), nil
}

func (c *Client) collectRuns(ctx context.Context) ([]Entry, error) {
	var runs []Entry

	if err := c.gate.Check(ctx); err != nil {
		return runs, err
	}
	workflows, err := c.repo.ListWorkflows(ctx)
	if err != nil {
		return runs, fmt.Errorf("list workflows: %w", err)
	}

	for _, wf := range workflows {
		if err := c.gate.Check(ctx); err != nil {
			return runs, err
		}
		candidates, err := c.repo.ListWorkflowRuns(ctx, wf.ID)
		if err != nil {
			return runs, fmt.Errorf("list runs of workflow %q: %w", wf.Name, err)
		}

		for _, run := range candidates {
			if err := c.gate.Check(ctx); err != nil {
				return runs, err
			}
			artifacts, err := c.repo.ListRunArtifacts(ctx, run.ID)
			if err != nil {
				return runs, fmt.Errorf("list artifacts of run %d: %w", run.ID, err)
			}
			if len(artifacts) == 0 {
				continue
			}

			if run.Run == nil {
				run.Run = &WorkflowRun{WorkflowID: wf.ID}
			}
			run.Run.Artifacts = artifacts
			runs = append(runs, run)

			if len(runs) >= c.runCap {
				log.Debugf("reached cap of %d workflow runs", c.runCap)
				return runs, nil
			}
		}
	}

	return runs, nil
}

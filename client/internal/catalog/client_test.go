package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
	"github.com/jsettlers-installer/installer/client/internal/ratelimit"
)

// fakeRepository spends one unit of quota per listing call.
type fakeRepository struct {
	remaining int
	releases  []Entry
	workflows []Workflow
	runs      map[int64][]Entry
	artifacts map[int64][]Asset

	calls       []string
	releasesErr error
}

func (f *fakeRepository) RateLimit(context.Context) (ratelimit.Record, error) {
	return ratelimit.Record{Remaining: f.remaining, Limit: 5000}, nil
}

func (f *fakeRepository) spend(call string) {
	f.calls = append(f.calls, call)
	f.remaining--
}

func (f *fakeRepository) ListReleases(context.Context) ([]Entry, error) {
	f.spend("releases")
	return f.releases, f.releasesErr
}

func (f *fakeRepository) ListWorkflows(context.Context) ([]Workflow, error) {
	f.spend("workflows")
	return f.workflows, nil
}

func (f *fakeRepository) ListWorkflowRuns(_ context.Context, workflowID int64) ([]Entry, error) {
	f.spend(fmt.Sprintf("runs/%d", workflowID))
	return f.runs[workflowID], nil
}

func (f *fakeRepository) ListRunArtifacts(_ context.Context, runID int64) ([]Asset, error) {
	f.spend(fmt.Sprintf("artifacts/%d", runID))
	return f.artifacts[runID], nil
}

func testGovernor(source ratelimit.Source) *ratelimit.Governor {
	cfg := ratelimit.DefaultConfig()
	cfg.RequestsPerSecond = 0
	return ratelimit.NewGovernor(source, cfg).WithSleep(func(context.Context, time.Duration) error {
		return nil
	})
}

func runEntryFixture(id int64, updated time.Time) Entry {
	return Entry{Kind: KindWorkflowRun, ID: id, Name: "CI", UpdatedAt: updated, Run: &WorkflowRun{HeadBranch: "master", RunNumber: int(id)}}
}

func newFixtureRepository() *fakeRepository {
	return &fakeRepository{
		remaining: 5000,
		releases: []Entry{
			{Kind: KindRelease, ID: 100, Name: "A", PublishedAt: day(10), Release: &Release{TagName: "v1"}},
		},
		workflows: []Workflow{{ID: 1, Name: "CI"}, {ID: 2, Name: "Nightly"}},
		runs: map[int64][]Entry{
			1: {runEntryFixture(200, day(31).AddDate(0, 0, 1)), runEntryFixture(201, day(5))},
			2: {runEntryFixture(300, day(20))},
		},
		artifacts: map[int64][]Asset{
			200: {{ID: 1, Name: "Release"}},
			300: {{ID: 2, Name: "Release"}},
		},
	}
}

func TestClient_FetchCatalog(t *testing.T) {
	repo := newFixtureRepository()
	client := NewClient(repo, testGovernor(repo), DefaultRunCap)

	catalog, err := client.FetchCatalog(context.Background(), false)
	require.NoError(t, err)

	ids := make([]int64, 0, len(catalog))
	for _, e := range catalog {
		ids = append(ids, e.ID)
	}
	// run 201 has no artifacts
	assert.Equal(t, []int64{200, 300, 100}, ids)

	run, ok := catalog.Find(200)
	require.True(t, ok)
	require.NotNil(t, run.Run)
	assert.Len(t, run.Run.Artifacts, 1)

	assert.Equal(t, []string{"releases", "workflows", "runs/1", "artifacts/200", "artifacts/201", "runs/2", "artifacts/300"}, repo.calls)
}

func TestClient_ReleasesOnly(t *testing.T) {
	repo := newFixtureRepository()
	client := NewClient(repo, testGovernor(repo), DefaultRunCap)

	catalog, err := client.FetchCatalog(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, catalog, 1)
	assert.Equal(t, []string{"releases"}, repo.calls)
}

func TestClient_RunCap(t *testing.T) {
	repo := newFixtureRepository()
	repo.runs[1] = nil
	repo.artifacts = map[int64][]Asset{}
	for i := int64(0); i < 40; i++ {
		id := 1000 + i
		repo.runs[1] = append(repo.runs[1], runEntryFixture(id, day(1).Add(time.Duration(i)*time.Hour)))
		repo.artifacts[id] = []Asset{{Name: "Release"}}
	}

	client := NewClient(repo, testGovernor(repo), 30)
	catalog, err := client.FetchCatalog(context.Background(), false)
	require.NoError(t, err)

	assert.Len(t, catalog, 31, "30 runs plus the release")
	assert.NotContains(t, repo.calls, "runs/2", "enumeration must stop at the cap")
	assert.NotContains(t, repo.calls, "artifacts/1030")
}

func TestClient_QuotaBreachKeepsCollected(t *testing.T) {
	repo := newFixtureRepository()
	// releases, workflows, runs/1, artifacts/200 leave 10 units, artifacts/201 leaves 9
	repo.remaining = 14

	client := NewClient(repo, testGovernor(repo), DefaultRunCap)
	catalog, err := client.FetchCatalog(context.Background(), false)
	require.NoError(t, err)

	ids := make([]int64, 0, len(catalog))
	for _, e := range catalog {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{200, 100}, ids)
	assert.NotContains(t, repo.calls, "runs/2")
}

func TestClient_QuotaExhaustedBeforeReleases(t *testing.T) {
	repo := newFixtureRepository()
	repo.remaining = 5

	client := NewClient(repo, testGovernor(repo), DefaultRunCap)
	_, err := client.FetchCatalog(context.Background(), false)
	require.ErrorIs(t, err, sierrors.ErrQuotaExhausted)
	assert.Empty(t, repo.calls)
}

func TestClient_NetworkErrorPropagates(t *testing.T) {
	repo := newFixtureRepository()
	cause := errors.New("connection refused")
	repo.releasesErr = &sierrors.NetworkError{Op: "list releases", Err: cause}

	client := NewClient(repo, testGovernor(repo), DefaultRunCap)
	_, err := client.FetchCatalog(context.Background(), false)
	require.ErrorIs(t, err, cause)

	var netErr *sierrors.NetworkError
	assert.ErrorAs(t, err, &netErr)
}

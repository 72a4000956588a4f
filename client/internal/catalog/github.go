package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v66/github"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
	"github.com/jsettlers-installer/installer/client/internal/ratelimit"
	"github.com/jsettlers-installer/installer/client/internal/updatemanager/downloader"
)

const (
	pageSize             = 100
	artifactMaxRedirects = 3
)

// GitHubRepository reads releases, workflows and artifacts of one GitHub repository.
type GitHubRepository struct {
	client   *github.Client
	download downloader.HTTPClient
	owner    string
	name     string
}

// NewGitHubRepository creates a repository client, authenticated when token is set.
func NewGitHubRepository(ctx context.Context, owner, name, token string) *GitHubRepository {
	httpClient := http.DefaultClient
	if token != "" {
		log.Debugf("using authenticated GitHub client")
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	} else {
		log.Debugf("using anonymous GitHub client")
	}

	return &GitHubRepository{
		client:   github.NewClient(httpClient),
		download: http.DefaultClient,
		owner:    owner,
		name:     name,
	}
}

// WithBaseURL points the client to another API root, e.g. a GitHub Enterprise server.
func (r *GitHubRepository) WithBaseURL(baseURL string) (*GitHubRepository, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	r.client.BaseURL = u
	return r, nil
}

// WithDownloadClient sets the HTTP client used for asset and artifact downloads.
func (r *GitHubRepository) WithDownloadClient(client downloader.HTTPClient) *GitHubRepository {
	r.download = client
	return r
}

func (r *GitHubRepository) String() string {
	return r.owner + "/" + r.name
}

func (r *GitHubRepository) RateLimit(ctx context.Context) (ratelimit.Record, error) {
	limits, _, err := r.client.RateLimit.Get(ctx)
	if err != nil {
		return ratelimit.Record{}, &sierrors.NetworkError{Op: "get rate limit", Err: err}
	}

	core := limits.GetCore()
	if core == nil {
		return ratelimit.Record{}, &sierrors.NetworkError{Op: "get rate limit", Err: fmt.Errorf("no core rate limit in response")}
	}

	return ratelimit.Record{
		Remaining: core.Remaining,
		Limit:     core.Limit,
		Reset:     core.Reset.Time,
	}, nil
}

func (r *GitHubRepository) ListReleases(ctx context.Context) ([]Entry, error) {
	var entries []Entry

	opts := &github.ListOptions{PerPage: pageSize}
	for {
		releases, resp, err := r.client.Repositories.ListReleases(ctx, r.owner, r.name, opts)
		if err != nil {
			return nil, &sierrors.NetworkError{Op: "list releases of " + r.String(), Err: err}
		}
		for _, rel := range releases {
			entries = append(entries, releaseEntry(rel))
		}
		if resp.NextPage == 0 {
			return entries, nil
		}
		opts.Page = resp.NextPage
	}
}

func (r *GitHubRepository) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var workflows []Workflow

	opts := &github.ListOptions{PerPage: pageSize}
	for {
		list, resp, err := r.client.Actions.ListWorkflows(ctx, r.owner, r.name, opts)
		if err != nil {
			return nil, &sierrors.NetworkError{Op: "list workflows of " + r.String(), Err: err}
		}
		for _, wf := range list.Workflows {
			workflows = append(workflows, Workflow{ID: wf.GetID(), Name: wf.GetName()})
		}
		if resp.NextPage == 0 {
			return workflows, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListWorkflowRuns returns the most recent page of runs. Older runs are never needed
// because the catalog stops after a small number of runs.
func (r *GitHubRepository) ListWorkflowRuns(ctx context.Context, workflowID int64) ([]Entry, error) {
	opts := &github.ListWorkflowRunsOptions{ListOptions: github.ListOptions{PerPage: pageSize}}
	list, _, err := r.client.Actions.ListWorkflowRunsByID(ctx, r.owner, r.name, workflowID, opts)
	if err != nil {
		return nil, &sierrors.NetworkError{Op: fmt.Sprintf("list runs of workflow %d", workflowID), Err: err}
	}

	entries := make([]Entry, 0, len(list.WorkflowRuns))
	for _, run := range list.WorkflowRuns {
		entries = append(entries, runEntry(run))
	}
	return entries, nil
}

func (r *GitHubRepository) ListRunArtifacts(ctx context.Context, runID int64) ([]Asset, error) {
	list, _, err := r.client.Actions.ListWorkflowRunArtifacts(ctx, r.owner, r.name, runID, &github.ListOptions{PerPage: pageSize})
	if err != nil {
		return nil, &sierrors.NetworkError{Op: fmt.Sprintf("list artifacts of run %d", runID), Err: err}
	}

	assets := make([]Asset, 0, len(list.Artifacts))
	for _, a := range list.Artifacts {
		assets = append(assets, Asset{
			ID:          a.GetID(),
			Name:        a.GetName(),
			DownloadURL: a.GetArchiveDownloadURL(),
			UpdatedAt:   a.GetUpdatedAt().Time,
			Expired:     a.GetExpired(),
		})
	}
	return assets, nil
}

// Fetch streams the content of a resolved download into w. Workflow artifacts are
// resolved to their short-lived storage URL first.
func (r *GitHubRepository) Fetch(ctx context.Context, d Download, w io.Writer) error {
	target := d.Asset.DownloadURL
	if d.Kind == KindWorkflowRun {
		u, _, err := r.client.Actions.DownloadArtifact(ctx, r.owner, r.name, d.Asset.ID, artifactMaxRedirects)
		if err != nil {
			return &sierrors.NetworkError{Op: fmt.Sprintf("resolve artifact %d", d.Asset.ID), Err: err}
		}
		target = u.String()
	}

	_, err := downloader.Download(ctx, r.download, target, w)
	return err
}

func releaseEntry(rel *github.RepositoryRelease) Entry {
	assets := make([]Asset, 0, len(rel.Assets))
	for _, a := range rel.Assets {
		assets = append(assets, Asset{
			ID:          a.GetID(),
			Name:        a.GetName(),
			DownloadURL: a.GetBrowserDownloadURL(),
			UpdatedAt:   a.GetUpdatedAt().Time,
		})
	}

	return Entry{
		Kind:        KindRelease,
		ID:          rel.GetID(),
		Name:        rel.GetName(),
		CreatedAt:   rel.GetCreatedAt().Time,
		PublishedAt: rel.GetPublishedAt().Time,
		Release: &Release{
			TagName: rel.GetTagName(),
			Assets:  assets,
		},
	}
}

func runEntry(run *github.WorkflowRun) Entry {
	return Entry{
		Kind:      KindWorkflowRun,
		ID:        run.GetID(),
		Name:      run.GetName(),
		CreatedAt: run.GetCreatedAt().Time,
		UpdatedAt: run.GetUpdatedAt().Time,
		Run: &WorkflowRun{
			WorkflowID: run.GetWorkflowID(),
			HeadBranch: run.GetHeadBranch(),
			RunNumber:  run.GetRunNumber(),
			HTMLURL:    run.GetHTMLURL(),
		},
	}
}

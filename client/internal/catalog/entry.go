package catalog

import (
	"fmt"
	"slices"
	"sort"
	"time"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
)

const (
	// ReleaseAssetName is the release asset carrying the game.
	ReleaseAssetName = "JSettlers.zip"
	// ArtifactName is the workflow artifact carrying the game, a zip wrapping ReleaseAssetName.
	ArtifactName = "Release"
)

// Kind tags the source variant of an Entry.
type Kind string

const (
	KindRelease     Kind = "release"
	KindWorkflowRun Kind = "workflow_run"
)

// Asset is a downloadable file attached to a release (asset) or a workflow run (artifact).
type Asset struct {
	ID          int64
	Name        string
	DownloadURL string
	UpdatedAt   time.Time
	Expired     bool
}

// Release holds the fields only a tagged release has.
type Release struct {
	TagName string
	Assets  []Asset
}

// WorkflowRun holds the fields only a CI workflow run has.
type WorkflowRun struct {
	WorkflowID int64
	HeadBranch string
	RunNumber  int
	HTMLURL    string
	Artifacts  []Asset
}

// Entry is one installable remote version. Exactly one of Release and Run is set,
// matching Kind.
type Entry struct {
	Kind        Kind
	ID          int64
	Name        string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt time.Time

	Release *Release
	Run     *WorkflowRun
}

// Download describes what has to be fetched to install an entry.
type Download struct {
	Kind  Kind
	Asset Asset
	// Nested names the archive inside Asset holding the game, empty for plain archives
	Nested string
	// SourceDate is the content age stamped on the install directory
	SourceDate time.Time
}

// EffectiveDate is the update time, else the creation time, else the publish time.
func (e Entry) EffectiveDate() time.Time {
	switch {
	case !e.UpdatedAt.IsZero():
		return e.UpdatedAt
	case !e.CreatedAt.IsZero():
		return e.CreatedAt
	default:
		return e.PublishedAt
	}
}

// DisplayName returns the human readable name of the entry.
func (e Entry) DisplayName() string {
	if e.Kind == KindWorkflowRun && e.Run != nil {
		return fmt.Sprintf("%s %s %d", e.Name, e.Run.HeadBranch, e.Run.RunNumber)
	}
	if e.Name == "" && e.Release != nil {
		return e.Release.TagName
	}
	return e.Name
}

// ResolveDownload finds the installable asset of the entry.
func (e Entry) ResolveDownload() (Download, error) {
	switch e.Kind {
	case KindRelease:
		if e.Release == nil {
			break
		}
		for _, a := range e.Release.Assets {
			if a.Name == ReleaseAssetName {
				date := e.PublishedAt
				if date.IsZero() {
					date = e.EffectiveDate()
				}
				return Download{Kind: e.Kind, Asset: a, SourceDate: date}, nil
			}
		}
		return Download{}, fmt.Errorf("%w: release %d has no %s", sierrors.ErrAssetNotFound, e.ID, ReleaseAssetName)
	case KindWorkflowRun:
		if e.Run == nil {
			break
		}
		for _, a := range e.Run.Artifacts {
			if a.Name == ArtifactName && !a.Expired {
				date := a.UpdatedAt
				if date.IsZero() {
					date = e.EffectiveDate()
				}
				return Download{Kind: e.Kind, Asset: a, Nested: ReleaseAssetName, SourceDate: date}, nil
			}
		}
		return Download{}, fmt.Errorf("%w: workflow run %d has no %s artifact", sierrors.ErrAssetNotFound, e.ID, ArtifactName)
	}
	return Download{}, fmt.Errorf("%w: %q (entry %d)", sierrors.ErrUnsupportedSource, e.Kind, e.ID)
}

// Catalog is a list of entries ordered by effective date, newest first.
type Catalog []Entry

// Sort orders entries by effective date descending. Entries without a date go last,
// equal dates keep their input order.
func Sort(entries []Entry) Catalog {
	result := make(Catalog, len(entries))
	copy(result, entries)
	sort.SliceStable(result, func(i, j int) bool {
		di, dj := result[i].EffectiveDate(), result[j].EffectiveDate()
		if di.IsZero() {
			return false
		}
		if dj.IsZero() {
			return true
		}
		return di.After(dj)
	})
	return result
}

// Newest returns the first entry.
func (c Catalog) Newest() (Entry, bool) {
	if len(c) == 0 {
		return Entry{}, false
	}
	return c[0], true
}

// Find returns the entry with the given id.
func (c Catalog) Find(id int64) (Entry, bool) {
	for _, e := range c {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Releases returns only the release entries, keeping the order.
func (c Catalog) Releases() Catalog {
	result := make(Catalog, 0, len(c))
	for _, e := range c {
		if e.Kind == KindRelease {
			result = append(result, e)
		}
	}
	return result
}

// clone copies the entries together with their release and run details.
func (c Catalog) clone() Catalog {
	if c == nil {
		return nil
	}
	result := make(Catalog, len(c))
	for i, e := range c {
		if e.Release != nil {
			rel := *e.Release
			rel.Assets = slices.Clone(rel.Assets)
			e.Release = &rel
		}
		if e.Run != nil {
			run := *e.Run
			run.Artifacts = slices.Clone(run.Artifacts)
			e.Run = &run
		}
		result[i] = e
	}
	return result
}

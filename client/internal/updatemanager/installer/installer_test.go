package installer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
	"github.com/jsettlers-installer/installer/client/internal/catalog"
	"github.com/jsettlers-installer/installer/client/internal/inventory"
	"github.com/jsettlers-installer/installer/client/internal/updatemanager/archive"
)

var (
	publishedAt = time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	installTime = time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)
)

type fakeFetcher struct {
	payload []byte
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ catalog.Download, w io.Writer) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	_, err := w.Write(f.payload)
	return err
}

type fakeGate struct {
	err   error
	calls int
}

func (g *fakeGate) Check(context.Context) error {
	g.calls++
	return g.err
}

func zipOf(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func releaseEntry() catalog.Entry {
	return catalog.Entry{
		Kind:        catalog.KindRelease,
		ID:          100,
		Name:        "Release A",
		PublishedAt: publishedAt,
		Release: &catalog.Release{TagName: "v1", Assets: []catalog.Asset{
			{ID: 5, Name: catalog.ReleaseAssetName, DownloadURL: "https://example/JSettlers.zip"},
		}},
	}
}

func runEntry() catalog.Entry {
	return catalog.Entry{
		Kind:      catalog.KindWorkflowRun,
		ID:        200,
		Name:      "CI",
		UpdatedAt: publishedAt,
		Run: &catalog.WorkflowRun{HeadBranch: "master", RunNumber: 7, Artifacts: []catalog.Asset{
			{ID: 9, Name: catalog.ArtifactName, UpdatedAt: publishedAt, DownloadURL: "https://example/artifacts/9"},
		}},
	}
}

func newTestInstaller(t *testing.T, fetcher Fetcher, gate catalog.Gate) (*Installer, *inventory.Inventory) {
	t.Helper()
	inv := inventory.New(inventory.Layout{Root: t.TempDir()})
	inst := New(inv, fetcher, gate).
		WithRetryPolicy(DefaultExtractAttempts, 0).
		WithClock(func() time.Time { return installTime })
	return inst, inv
}

// countingBackOff retries without waiting and counts the retries.
type countingBackOff struct {
	calls int
}

func (b *countingBackOff) NextBackOff() time.Duration {
	b.calls++
	return 0
}

func (b *countingBackOff) Reset() {}

func assertTempEmpty(t *testing.T, inv *inventory.Inventory) {
	t.Helper()
	entries, err := os.ReadDir(inv.Layout().TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "downloads and scratch dirs must be removed")
}

func TestInstaller_InstallRelease(t *testing.T) {
	fetcher := &fakeFetcher{payload: zipOf(t, map[string][]byte{"JSettlers/JSettlers.jar": []byte("jar")})}
	inst, inv := newTestInstaller(t, fetcher, nil)

	game, err := inst.Install(context.Background(), releaseEntry())
	require.NoError(t, err)

	assert.Equal(t, int64(100), game.ID)
	assert.Equal(t, "Release A", game.Name)
	assert.Equal(t, "https://example/JSettlers.zip", game.DownloadURL)
	assert.Equal(t, string(catalog.KindRelease), game.BasedOn)
	assert.True(t, publishedAt.Equal(game.PublishedAt.Time))
	assert.True(t, installTime.Equal(game.InstalledAt.Time))

	target := inv.Layout().TargetDir(100)
	assert.FileExists(t, filepath.Join(target, "JSettlers", "JSettlers.jar"))

	stored, err := inv.Get(100)
	require.NoError(t, err)
	assert.Equal(t, game.Name, stored.Name)
	assert.True(t, game.PublishedAt.Equal(stored.PublishedAt.Time))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, publishedAt.Unix(), info.ModTime().Unix())

	assertTempEmpty(t, inv)
}

func TestInstaller_InstallWorkflowRunNested(t *testing.T) {
	inner := zipOf(t, map[string][]byte{"JSettlers/MapCreator.jar": []byte("maps")})
	fetcher := &fakeFetcher{payload: zipOf(t, map[string][]byte{catalog.ReleaseAssetName: inner})}
	gate := &fakeGate{}
	inst, inv := newTestInstaller(t, fetcher, gate)

	game, err := inst.Install(context.Background(), runEntry())
	require.NoError(t, err)

	assert.Equal(t, "CI master 7", game.Name)
	assert.Equal(t, 1, gate.calls)
	assert.FileExists(t, filepath.Join(inv.Layout().TargetDir(200), "JSettlers", "MapCreator.jar"))
	assert.NoFileExists(t, filepath.Join(inv.Layout().TargetDir(200), catalog.ReleaseAssetName))
	assertTempEmpty(t, inv)
}

func TestInstaller_SucceedsOnLastAttempt(t *testing.T) {
	fetcher := &fakeFetcher{payload: zipOf(t, map[string][]byte{"a.txt": []byte("a")})}
	inst, inv := newTestInstaller(t, fetcher, nil)

	retries := &countingBackOff{}
	inst.WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(retries, DefaultExtractAttempts-1)
	})

	calls := 0
	inst.WithExtractFunc(func(archivePath, target string) error {
		calls++
		if calls < DefaultExtractAttempts {
			return errors.New("file is locked")
		}
		return archive.Extract(archivePath, target)
	})

	_, err := inst.Install(context.Background(), releaseEntry())
	require.NoError(t, err)
	assert.Equal(t, DefaultExtractAttempts, calls)
	assert.Equal(t, DefaultExtractAttempts-1, retries.calls)
	assert.True(t, inv.IsInstalled(100))
}

func TestInstaller_ExtractionExhausted(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("not a zip")}
	inst, inv := newTestInstaller(t, fetcher, nil)

	calls := 0
	inst.WithExtractFunc(func(archivePath, target string) error {
		calls++
		return archive.Extract(archivePath, target)
	})

	_, err := inst.Install(context.Background(), releaseEntry())
	var extErr *sierrors.ExtractionError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, DefaultExtractAttempts, extErr.Attempts)
	assert.Equal(t, DefaultExtractAttempts, calls)

	assert.False(t, inv.IsInstalled(100))
	games, err := inv.ListInstalled()
	require.NoError(t, err)
	assert.Empty(t, games)
	assertTempEmpty(t, inv)
}

func TestInstaller_SecurityErrorNotRetried(t *testing.T) {
	fetcher := &fakeFetcher{payload: zipOf(t, map[string][]byte{"../outside.txt": []byte("evil")})}
	inst, inv := newTestInstaller(t, fetcher, nil)

	calls := 0
	inst.WithExtractFunc(func(archivePath, target string) error {
		calls++
		return archive.Extract(archivePath, target)
	})

	_, err := inst.Install(context.Background(), releaseEntry())
	require.True(t, sierrors.IsSecurityError(err))
	assert.Equal(t, 1, calls)
	assert.False(t, inv.IsInstalled(100))
	assert.NoFileExists(t, filepath.Join(inv.Layout().GamesDir(), "outside.txt"))
}

func TestInstaller_KeepsExistingTargetOnFailure(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("broken")}
	inst, inv := newTestInstaller(t, fetcher, nil)
	inst.WithRetryPolicy(1, 0)

	target := inv.Layout().TargetDir(100)
	require.NoError(t, os.MkdirAll(target, 0o755))

	_, err := inst.Install(context.Background(), releaseEntry())
	require.Error(t, err)
	assert.DirExists(t, target)
}

func TestInstaller_AssetNotFound(t *testing.T) {
	fetcher := &fakeFetcher{}
	inst, _ := newTestInstaller(t, fetcher, nil)

	entry := releaseEntry()
	entry.Release.Assets = []catalog.Asset{{Name: "JSettlers-sources.zip"}}

	_, err := inst.Install(context.Background(), entry)
	require.ErrorIs(t, err, sierrors.ErrAssetNotFound)
	assert.Zero(t, fetcher.calls)

	_, err = inst.Install(context.Background(), catalog.Entry{Kind: "tag", ID: 1})
	require.ErrorIs(t, err, sierrors.ErrUnsupportedSource)
}

func TestInstaller_NetworkErrorNotRetried(t *testing.T) {
	cause := errors.New("connection reset")
	fetcher := &fakeFetcher{err: &sierrors.NetworkError{Op: "get asset", Err: cause}}
	inst, inv := newTestInstaller(t, fetcher, nil)

	calls := 0
	inst.WithExtractFunc(func(string, string) error {
		calls++
		return nil
	})

	_, err := inst.Install(context.Background(), releaseEntry())
	var netErr *sierrors.NetworkError
	require.ErrorAs(t, err, &netErr)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, 1, fetcher.calls)
	assert.Zero(t, calls)
	assert.False(t, inv.IsInstalled(100))
	assertTempEmpty(t, inv)
}

func TestInstaller_QuotaBlocksArtifactDownload(t *testing.T) {
	fetcher := &fakeFetcher{}
	gate := &fakeGate{err: sierrors.ErrQuotaExhausted}
	inst, _ := newTestInstaller(t, fetcher, gate)

	_, err := inst.Install(context.Background(), runEntry())
	require.ErrorIs(t, err, sierrors.ErrQuotaExhausted)
	assert.Zero(t, fetcher.calls)
}

func TestInstaller_CancelledDuringRetry(t *testing.T) {
	fetcher := &fakeFetcher{payload: []byte("broken")}
	inst, _ := newTestInstaller(t, fetcher, nil)
	inst.WithRetryPolicy(DefaultExtractAttempts, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	inst.WithExtractFunc(func(string, string) error {
		cancel()
		return errors.New("locked")
	})

	_, err := inst.Install(ctx, releaseEntry())
	require.ErrorIs(t, err, context.Canceled)
}

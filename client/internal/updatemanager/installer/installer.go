package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
	"github.com/jsettlers-installer/installer/client/internal/catalog"
	"github.com/jsettlers-installer/installer/client/internal/inventory"
	"github.com/jsettlers-installer/installer/client/internal/updatemanager/archive"
)

const (
	DefaultExtractAttempts = 6
	DefaultExtractWait     = 10 * time.Second
)

// Fetcher streams the content of a resolved download.
type Fetcher interface {
	Fetch(ctx context.Context, d catalog.Download, w io.Writer) error
}

// ExtractFunc expands the archive at archivePath into target.
type ExtractFunc func(archivePath, target string) error

// Installer downloads catalog entries and unpacks them into the games folder.
type Installer struct {
	inventory *inventory.Inventory
	fetcher   Fetcher
	gate      catalog.Gate

	newBackOff func() backoff.BackOff
	extract    ExtractFunc
	now        func() time.Time
}

// New creates an installer. gate may be nil, it is consulted before artifact
// downloads, which cost API quota.
func New(inv *inventory.Inventory, fetcher Fetcher, gate catalog.Gate) *Installer {
	i := &Installer{
		inventory: inv,
		fetcher:   fetcher,
		gate:      gate,
		extract:   archive.Extract,
		now:       time.Now,
	}
	return i.WithRetryPolicy(DefaultExtractAttempts, DefaultExtractWait)
}

// WithRetryPolicy sets how often extraction is attempted and the wait in between.
func (i *Installer) WithRetryPolicy(attempts int, wait time.Duration) *Installer {
	if attempts < 1 {
		attempts = 1
	}
	i.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), uint64(attempts-1))
	}
	return i
}

// WithBackOff replaces the extraction retry policy.
func (i *Installer) WithBackOff(newBackOff func() backoff.BackOff) *Installer {
	i.newBackOff = newBackOff
	return i
}

func (i *Installer) WithExtractFunc(fn ExtractFunc) *Installer {
	i.extract = fn
	return i
}

func (i *Installer) WithClock(now func() time.Time) *Installer {
	i.now = now
	return i
}

// Install downloads and extracts the entry into its install directory and records
// its metadata. It does not check whether the entry is installed already.
func (i *Installer) Install(ctx context.Context, entry catalog.Entry) (inventory.InstalledGame, error) {
	d, err := entry.ResolveDownload()
	if err != nil {
		return inventory.InstalledGame{}, err
	}

	layout := i.inventory.Layout()
	target := layout.TargetDir(entry.ID)
	log.Infof("installing %s (%d) to %s", entry.DisplayName(), entry.ID, target)

	if err := os.MkdirAll(layout.TempDir(), 0o755); err != nil {
		return inventory.InstalledGame{}, fmt.Errorf("create temp dir: %w", err)
	}

	var cleanup *multierror.Error
	defer func() {
		if err := sierrors.FormatErrorOrNil(cleanup); err != nil {
			log.Warnf("cleanup after installing %d: %v", entry.ID, err)
		}
	}()

	_, statErr := os.Lstat(target)
	createsTarget := errors.Is(statErr, os.ErrNotExist)

	archivePath, err := i.download(ctx, d, layout.TempDir())
	if archivePath != "" {
		defer func() {
			if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
				cleanup = multierror.Append(cleanup, fmt.Errorf("remove download: %w", err))
			}
		}()
	}
	if err != nil {
		return inventory.InstalledGame{}, err
	}

	if err := i.extractWithRetry(ctx, archivePath, d, target, layout.TempDir(), &cleanup); err != nil {
		if createsTarget {
			if rmErr := os.RemoveAll(target); rmErr != nil {
				cleanup = multierror.Append(cleanup, fmt.Errorf("remove partial install: %w", rmErr))
			}
		}
		return inventory.InstalledGame{}, err
	}

	installPath, err := filepath.Abs(target)
	if err != nil {
		installPath = target
	}

	game := inventory.InstalledGame{
		ID:          entry.ID,
		DownloadURL: d.Asset.DownloadURL,
		InstallPath: installPath,
		InstalledAt: inventory.NewTimestamp(i.now()),
		Name:        entry.DisplayName(),
		PublishedAt: inventory.NewTimestamp(d.SourceDate),
		BasedOn:     string(entry.Kind),
	}
	if err := i.inventory.Save(ctx, game); err != nil {
		return inventory.InstalledGame{}, err
	}

	if !d.SourceDate.IsZero() {
		log.Debugf("setting modification time of %s to %s", target, d.SourceDate)
		if err := os.Chtimes(target, d.SourceDate, d.SourceDate); err != nil {
			log.Warnf("failed to set modification time of %s: %v", target, err)
		}
	}

	log.Infof("installed %s", entry.DisplayName())
	return game, nil
}

func (i *Installer) download(ctx context.Context, d catalog.Download, tempDir string) (string, error) {
	if d.Kind == catalog.KindWorkflowRun && i.gate != nil {
		if err := i.gate.Check(ctx); err != nil {
			return "", err
		}
	}

	f, err := os.CreateTemp(tempDir, "download-*.zip")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	log.Debugf("downloading %s to %s", d.Asset.Name, f.Name())

	fetchErr := i.fetcher.Fetch(ctx, d, f)
	if err := f.Close(); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("close download file: %w", err)
	}
	if fetchErr != nil {
		return f.Name(), fmt.Errorf("download %s: %w", d.Asset.Name, fetchErr)
	}
	return f.Name(), nil
}

func (i *Installer) extractWithRetry(ctx context.Context, archivePath string, d catalog.Download, target, tempDir string, cleanup **multierror.Error) error {
	attempts := 0
	operation := func() error {
		attempts++
		err := i.extractOnce(archivePath, d, target, tempDir, cleanup)
		if err != nil && sierrors.IsSecurityError(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(i.newBackOff(), ctx), func(err error, wait time.Duration) {
		log.Warnf("extraction attempt %d failed, retrying in %v: %v", attempts, wait, err)
	})
	switch {
	case err == nil:
		return nil
	case sierrors.IsSecurityError(err):
		log.Errorf("aborting installation: %v", err)
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return &sierrors.ExtractionError{Archive: archivePath, Target: target, Attempts: attempts, Err: err}
	}
}

// extractOnce unpacks plain archives directly and nested archives through a
// scratch directory that is removed afterwards.
func (i *Installer) extractOnce(archivePath string, d catalog.Download, target, tempDir string, cleanup **multierror.Error) error {
	if d.Nested == "" {
		return i.extract(archivePath, target)
	}

	scratch, err := os.MkdirTemp(tempDir, "extract-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			*cleanup = multierror.Append(*cleanup, fmt.Errorf("remove scratch dir: %w", err))
		}
	}()

	if err := i.extract(archivePath, scratch); err != nil {
		return err
	}
	return i.extract(filepath.Join(scratch, d.Nested), target)
}

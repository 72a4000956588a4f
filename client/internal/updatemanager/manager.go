package updatemanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jsettlers-installer/installer/client/internal/catalog"
	"github.com/jsettlers-installer/installer/client/internal/inventory"
)

// ErrAlreadyInstalled is returned when installing an id that has an install directory.
var ErrAlreadyInstalled = errors.New("already installed")

// ErrNotInCatalog is returned for ids the remote catalog does not list.
var ErrNotInCatalog = errors.New("not found in catalog")

// CatalogSource serves the remote catalog, usually through the cache.
type CatalogSource interface {
	GetCatalog(ctx context.Context, releasesOnly bool) (catalog.Catalog, error)
}

// invalidator is implemented by catalog sources that keep a snapshot.
type invalidator interface {
	Invalidate()
}

type Installer interface {
	Install(ctx context.Context, entry catalog.Entry) (inventory.InstalledGame, error)
}

// Status is a snapshot of the remote and local side of an update check.
type Status struct {
	Decision  Decision
	Latest    catalog.Entry
	Installed []inventory.InstalledGame
}

// Manager ties the catalog, the local inventory and the installer together.
type Manager struct {
	catalog   CatalogSource
	inventory *inventory.Inventory
	installer Installer
}

func NewManager(source CatalogSource, inv *inventory.Inventory, installer Installer) *Manager {
	return &Manager{
		catalog:   source,
		inventory: inv,
		installer: installer,
	}
}

// Check fetches the catalog and the local installs and decides whether an update
// is available.
func (m *Manager) Check(ctx context.Context, releasesOnly bool) (Status, error) {
	remote, err := m.catalog.GetCatalog(ctx, releasesOnly)
	if err != nil {
		return Status{}, fmt.Errorf("get catalog: %w", err)
	}

	installed, err := m.inventory.ListInstalled()
	if err != nil {
		return Status{}, fmt.Errorf("list installed: %w", err)
	}

	status := Status{
		Decision:  CheckUpdate(installed, remote),
		Installed: installed,
	}
	status.Latest, _ = remote.Newest()
	return status, nil
}

// Install installs the catalog entry with the given id.
func (m *Manager) Install(ctx context.Context, id int64, releasesOnly bool) (inventory.InstalledGame, error) {
	if m.inventory.IsInstalled(id) {
		return inventory.InstalledGame{}, fmt.Errorf("%d: %w", id, ErrAlreadyInstalled)
	}

	remote, err := m.catalog.GetCatalog(ctx, releasesOnly)
	if err != nil {
		return inventory.InstalledGame{}, fmt.Errorf("get catalog: %w", err)
	}

	entry, ok := remote.Find(id)
	if !ok {
		return inventory.InstalledGame{}, fmt.Errorf("%d: %w", id, ErrNotInCatalog)
	}

	game, err := m.installer.Install(ctx, entry)
	if err != nil {
		return inventory.InstalledGame{}, err
	}
	m.invalidateCatalog()
	return game, nil
}

// InstallLatest installs the newest catalog entry when nothing is installed or the
// newest install is older. It returns nil when there is nothing to do.
func (m *Manager) InstallLatest(ctx context.Context, releasesOnly bool) (*inventory.InstalledGame, error) {
	status, err := m.Check(ctx, releasesOnly)
	if err != nil {
		return nil, err
	}

	switch status.Decision {
	case NoLocal, Available:
	default:
		log.Infof("not installing: %s", status.Decision)
		return nil, nil
	}

	if m.inventory.IsInstalled(status.Latest.ID) {
		log.Infof("latest version %s is installed already", status.Latest.DisplayName())
		return nil, nil
	}

	game, err := m.installer.Install(ctx, status.Latest)
	if err != nil {
		return nil, err
	}
	m.invalidateCatalog()
	return &game, nil
}

// invalidateCatalog makes the next listing after an install read the remote side again.
func (m *Manager) invalidateCatalog() {
	if inv, ok := m.catalog.(invalidator); ok {
		log.Debugf("invalidating cached catalog")
		inv.Invalidate()
	}
}

// Watch checks for updates every interval until ctx is done. onUpdate is called once
// per newly available entry.
func (m *Manager) Watch(ctx context.Context, interval time.Duration, releasesOnly bool, onUpdate func(Status)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastNotified int64
	for {
		status, err := m.Check(ctx, releasesOnly)
		switch {
		case err != nil:
			log.Warnf("update check failed: %v", err)
		case status.Decision == Available && status.Latest.ID != lastNotified:
			lastNotified = status.Latest.ID
			onUpdate(status)
		default:
			log.Tracef("update check: %s", status.Decision)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

package updatemanager

import (
	"github.com/jsettlers-installer/installer/client/internal/catalog"
	"github.com/jsettlers-installer/installer/client/internal/inventory"
)

// Decision is the outcome of comparing local installs with the remote catalog.
type Decision int

const (
	// NoRemote means the catalog is empty, only local installs can be offered.
	NoRemote Decision = iota
	// NoLocal means nothing is installed yet, there is nothing to compare against.
	NoLocal
	UpToDate
	Available
)

func (d Decision) String() string {
	switch d {
	case NoRemote:
		return "no remote versions"
	case NoLocal:
		return "nothing installed"
	case UpToDate:
		return "up to date"
	case Available:
		return "update available"
	default:
		return "unknown"
	}
}

// CheckUpdate compares the install time of the newest local install with the
// effective date of the newest remote entry. installed and remote are expected in
// the order ListInstalled and the catalog return them. Missing timestamps count as
// up to date.
func CheckUpdate(installed []inventory.InstalledGame, remote catalog.Catalog) Decision {
	newest, ok := remote.Newest()
	if !ok {
		return NoRemote
	}
	if len(installed) == 0 {
		return NoLocal
	}

	local := installed[0].InstalledAt
	remoteDate := newest.EffectiveDate()
	if local.IsZero() || remoteDate.IsZero() {
		return UpToDate
	}

	if local.Before(remoteDate) {
		return Available
	}
	return UpToDate
}

// IsUpdateAvailable reports whether a newer remote version than the newest local
// install exists.
func IsUpdateAvailable(installed []inventory.InstalledGame, remote catalog.Catalog) bool {
	return CheckUpdate(installed, remote) == Available
}

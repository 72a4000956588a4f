package inventory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	log "github.com/sirupsen/logrus"

	sierrors "github.com/jsettlers-installer/installer/client/errors"
	"github.com/jsettlers-installer/installer/util"
)

// ErrNotInstalled is returned for ids without an install directory.
var ErrNotInstalled = errors.New("game not installed")

// Inventory reads and maintains the install directories below the games folder.
type Inventory struct {
	layout Layout
}

func New(layout Layout) *Inventory {
	return &Inventory{layout: layout}
}

func (i *Inventory) Layout() Layout {
	return i.layout
}

// ListInstalled returns every install with readable metadata, newest publish date
// first. Directories with missing or broken metadata are skipped.
func (i *Inventory) ListInstalled() ([]InstalledGame, error) {
	dirs, err := os.ReadDir(i.layout.GamesDir())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", i.layout.GamesDir(), err)
	}

	games := make([]InstalledGame, 0, len(dirs))
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}

		game, err := readMetadata(filepath.Join(i.layout.GamesDir(), d.Name(), MetadataFile))
		if err != nil {
			log.Infof("skipping install directory %s: %v", d.Name(), err)
			continue
		}
		if id, err := strconv.ParseInt(d.Name(), 10, 64); err == nil {
			game.ID = id
		}
		games = append(games, game)
	}

	sort.SliceStable(games, func(a, b int) bool {
		pa, pb := games[a].PublishedAt, games[b].PublishedAt
		if pa.IsZero() {
			return false
		}
		if pb.IsZero() {
			return true
		}
		return pa.After(pb.Time)
	})
	return games, nil
}

// IsInstalled reports whether the install directory of id exists.
func (i *Inventory) IsInstalled(id int64) bool {
	return util.FileExists(i.layout.TargetDir(id))
}

// Get reads the metadata of one install.
func (i *Inventory) Get(id int64) (InstalledGame, error) {
	if !i.IsInstalled(id) {
		return InstalledGame{}, fmt.Errorf("%w: %d", ErrNotInstalled, id)
	}

	game, err := readMetadata(i.layout.MetadataPath(id))
	if err != nil {
		return InstalledGame{}, err
	}
	game.ID = id
	return game, nil
}

// Save writes the metadata of an install, replacing the file atomically.
func (i *Inventory) Save(ctx context.Context, game InstalledGame) error {
	if err := util.WriteJson(ctx, i.layout.MetadataPath(game.ID), game); err != nil {
		return fmt.Errorf("write metadata of %d: %w", game.ID, err)
	}
	return nil
}

// Remove deletes the install directory of id. Symbolic links inside it are removed,
// never followed.
func (i *Inventory) Remove(id int64) error {
	target := i.layout.TargetDir(id)
	if _, err := os.Lstat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %d", ErrNotInstalled, id)
		}
		return fmt.Errorf("stat %s: %w", target, err)
	}

	log.Infof("removing %s", target)
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove %s: %w", target, err)
	}
	return nil
}

func readMetadata(path string) (InstalledGame, error) {
	var game InstalledGame
	if err := util.ReadJson(path, &game); err != nil {
		return InstalledGame{}, &sierrors.MetadataParseError{Path: path, Err: err}
	}
	return game, nil
}

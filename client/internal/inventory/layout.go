package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	gamesDirName = "game"
	tempDirName  = "temp"
	dataDirName  = "data"
	varDirName   = "var"

	// MetadataFile is written into every install directory.
	MetadataFile = "metadata.json"
)

// Layout derives every managed location from one root directory.
type Layout struct {
	Root string
}

// DefaultRoot returns ~/.jsettlers/managed.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".jsettlers", "managed"), nil
}

func (l Layout) GamesDir() string {
	return filepath.Join(l.Root, gamesDirName)
}

// TempDir holds downloads and scratch directories of running installs.
func (l Layout) TempDir() string {
	return filepath.Join(l.Root, tempDirName)
}

// DataDir is passed to the game as its settlers folder.
func (l Layout) DataDir() string {
	return filepath.Join(l.Root, dataDirName)
}

// VarDir is the working directory of a launched game.
func (l Layout) VarDir() string {
	return filepath.Join(l.Root, varDirName)
}

// TargetDir is the install directory of the entry with the given id.
func (l Layout) TargetDir(id int64) string {
	return filepath.Join(l.GamesDir(), strconv.FormatInt(id, 10))
}

// MetadataPath is the metadata file of the entry with the given id.
func (l Layout) MetadataPath(id int64) string {
	return filepath.Join(l.TargetDir(id), MetadataFile)
}

// Ensure creates the managed directories.
func (l Layout) Ensure() error {
	for _, dir := range []string{l.GamesDir(), l.TempDir(), l.DataDir(), l.VarDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

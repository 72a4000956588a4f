// Package launch builds the command line that starts an installed game.
package launch

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

const maxHeap = "-Xmx2G"

// EntryPoint is a jar inside an install directory.
type EntryPoint string

const (
	Game       EntryPoint = "JSettlers/JSettlers.jar"
	Tools      EntryPoint = "JSettlers/JSettlersTools.jar"
	MapCreator EntryPoint = "JSettlers/MapCreator.jar"
)

// ParseEntryPoint maps the short names game, tools and mapcreator to entry points.
func ParseEntryPoint(name string) (EntryPoint, error) {
	switch strings.ToLower(name) {
	case "", "game":
		return Game, nil
	case "tools":
		return Tools, nil
	case "mapcreator", "map-creator":
		return MapCreator, nil
	default:
		return "", fmt.Errorf("unknown entry point %q, expected game, tools or mapcreator", name)
	}
}

// Command returns the not yet started command running the entry point of the install
// at installPath. The game keeps its settings in dataDir and runs inside varDir.
func Command(installPath string, entry EntryPoint, dataDir, varDir, javaHome string) (*exec.Cmd, error) {
	jar := filepath.Join(installPath, filepath.FromSlash(string(entry)))
	if _, err := os.Stat(jar); err != nil {
		return nil, fmt.Errorf("could not find jar %s: %w", jar, err)
	}

	cmd := exec.Command(javaBinary(javaHome), maxHeap, "-jar", jar, "--settlers-folder="+dataDir)
	cmd.Dir = varDir
	log.Debugf("launch command: %s", cmd.String())
	return cmd, nil
}

// javaBinary prefers the java of javaHome and falls back to the one on the PATH.
func javaBinary(javaHome string) string {
	name := "java"
	if runtime.GOOS == "windows" {
		name = "java.exe"
	}

	if javaHome != "" {
		candidate := filepath.Join(javaHome, "bin", name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		log.Infof("%s is not usable, falling back to java from PATH", candidate)
	}
	return name
}

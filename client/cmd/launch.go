package cmd

import (
	"fmt"
	"os/exec"
	"strings"
	"unicode"

	"github.com/spf13/cobra"

	"github.com/jsettlers-installer/installer/client/internal/launch"
)

var (
	entryPointName string

	launchCmd = &cobra.Command{
		Use:   "launch <id>",
		Short: "prints the command starting an installed version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetOut(cmd.OutOrStdout())

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			entry, err := launch.ParseEntryPoint(entryPointName)
			if err != nil {
				return err
			}

			s, err := loadServices(cmd)
			if err != nil {
				return err
			}

			game, err := s.inventory.Get(id)
			if err != nil {
				return err
			}

			layout := s.cfg.Layout()
			gameCmd, err := launch.Command(game.InstallPath, entry, layout.DataDir(), layout.VarDir(), s.cfg.JavaHome)
			if err != nil {
				return err
			}

			cmd.Println(shellCommand(gameCmd))
			return nil
		},
	}
)

func init() {
	launchCmd.Flags().StringVar(&entryPointName, "entry", "game", "what to start: game, tools or mapcreator")
}

// shellCommand renders c as a line that can be pasted into a POSIX shell.
func shellCommand(c *exec.Cmd) string {
	parts := []string{shellQuote(c.Path)}
	for _, arg := range c.Args[1:] {
		parts = append(parts, shellQuote(arg))
	}
	return fmt.Sprintf("cd %s && %s", shellQuote(c.Dir), strings.Join(parts, " "))
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsFunc(s, needsQuoting) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuoting(r rune) bool {
	if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
		return false
	}
	return !strings.ContainsRune("-_./=:,+@%", r)
}

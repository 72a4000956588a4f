package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	installLatest bool

	installCmd = &cobra.Command{
		Use:   "install [id]",
		Short: "downloads and installs a version",
		Args: func(cmd *cobra.Command, args []string) error {
			if installLatest {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetOut(cmd.OutOrStdout())

			s, err := loadServices(cmd)
			if err != nil {
				return err
			}

			if installLatest {
				game, err := s.manager.InstallLatest(cmd.Context(), s.cfg.ReleasesOnly)
				if err != nil {
					return fmt.Errorf("install latest: %w", err)
				}
				if game == nil {
					cmd.Println("The latest version is installed already.")
					return nil
				}
				cmd.Printf("Installed %s to %s\n", game.Name, game.InstallPath)
				return nil
			}

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			game, err := s.manager.Install(cmd.Context(), id, s.cfg.ReleasesOnly)
			if err != nil {
				return fmt.Errorf("install %d: %w", id, err)
			}
			cmd.Printf("Installed %s to %s\n", game.Name, game.InstallPath)
			return nil
		},
	}

	uninstallCmd = &cobra.Command{
		Use:   "uninstall <id>",
		Short: "removes an installed version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetOut(cmd.OutOrStdout())

			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s, err := loadServices(cmd)
			if err != nil {
				return err
			}

			if err := s.inventory.Remove(id); err != nil {
				return err
			}
			cmd.Printf("Removed %d\n", id)
			return nil
		},
	}
)

func init() {
	installCmd.Flags().BoolVar(&installLatest, "latest", false, "install the newest version unless the newest install is current")
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", arg, err)
	}
	return id, nil
}

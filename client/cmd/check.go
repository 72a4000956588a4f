package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jsettlers-installer/installer/client/internal/updatemanager"
)

var (
	watchInterval time.Duration

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "checks whether a newer version than the newest install is available",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetOut(cmd.OutOrStdout())

			s, err := loadServices(cmd)
			if err != nil {
				return err
			}

			if watchInterval > 0 {
				s.manager.Watch(cmd.Context(), watchInterval, s.cfg.ReleasesOnly, func(status updatemanager.Status) {
					printStatus(cmd, status)
				})
				return nil
			}

			status, err := s.manager.Check(cmd.Context(), s.cfg.ReleasesOnly)
			if err != nil {
				return err
			}
			printStatus(cmd, status)
			return nil
		},
	}
)

func init() {
	checkCmd.Flags().DurationVar(&watchInterval, "watch", 0, "keep checking at this interval and report every newly available version")
}

func printStatus(cmd *cobra.Command, status updatemanager.Status) {
	switch status.Decision {
	case updatemanager.Available:
		cmd.Printf("Update available: %s (%d) from %s\n", status.Latest.DisplayName(), status.Latest.ID, formatDate(status.Latest.EffectiveDate()))
	case updatemanager.NoLocal:
		cmd.Printf("Nothing installed yet, latest is %s (%d)\n", status.Latest.DisplayName(), status.Latest.ID)
	default:
		cmd.Printf("Status: %s\n", status.Decision)
	}
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jsettlers-installer/installer/version"
)

var (
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "prints the installer version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.SetOut(cmd.OutOrStdout())
			cmd.Println(version.InstallerVersion())
		},
	}
)

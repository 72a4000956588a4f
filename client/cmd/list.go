package cmd

import (
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsettlers-installer/installer/client/internal/catalog"
	"github.com/jsettlers-installer/installer/client/internal/inventory"
)

const dateFormat = "2006-01-02 15:04"

var availableCmd = &cobra.Command{
	Use:   "available",
	Short: "lists releases and CI builds that can be installed",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SetOut(cmd.OutOrStdout())

		s, err := loadServices(cmd)
		if err != nil {
			return err
		}

		remote, err := s.cache.GetCatalog(cmd.Context(), s.cfg.ReleasesOnly)
		if err != nil {
			log.Warnf("could not read the remote catalog: %v", err)
			cmd.Printf("Remote versions are unavailable (%v), showing local installs only.\n\n", err)
			return printInstalled(cmd, s.inventory)
		}

		cmd.Print(formatCatalog(remote, s.inventory))
		if record, ok := s.governor.Last(); ok {
			cmd.Printf("\nAPI quota: %s\n", record)
		}
		if expiry, ok := s.cache.Expiry(); ok {
			cmd.Printf("Catalog cached until %s\n", expiry.Format(dateFormat))
		}
		return nil
	},
}

var installedCmd = &cobra.Command{
	Use:   "installed",
	Short: "lists installed versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SetOut(cmd.OutOrStdout())

		s, err := loadServices(cmd)
		if err != nil {
			return err
		}
		return printInstalled(cmd, s.inventory)
	},
}

func printInstalled(cmd *cobra.Command, inv *inventory.Inventory) error {
	games, err := inv.ListInstalled()
	if err != nil {
		return err
	}
	cmd.Print(formatInstalled(games))
	return nil
}

func formatCatalog(remote catalog.Catalog, inv *inventory.Inventory) string {
	if len(remote) == 0 {
		return "No remote versions found.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-13s %-16s %-9s %s\n", "ID", "TYPE", "DATE", "INSTALLED", "NAME")
	for _, e := range remote {
		installed := ""
		if inv.IsInstalled(e.ID) {
			installed = "yes"
		}
		fmt.Fprintf(&b, "%-12d %-13s %-16s %-9s %s\n", e.ID, e.Kind, formatDate(e.EffectiveDate()), installed, e.DisplayName())
	}
	return b.String()
}

func formatInstalled(games []inventory.InstalledGame) string {
	if len(games) == 0 {
		return "No versions installed.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-16s %-16s %s\n", "ID", "PUBLISHED", "INSTALLED", "NAME")
	for _, g := range games {
		fmt.Fprintf(&b, "%-12d %-16s %-16s %s\n", g.ID, formatDate(g.PublishedAt.Time), formatDate(g.InstalledAt.Time), g.Name)
	}
	return b.String()
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(dateFormat)
}

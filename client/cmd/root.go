package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsettlers-installer/installer/client/internal/catalog"
	"github.com/jsettlers-installer/installer/client/internal/config"
	"github.com/jsettlers-installer/installer/client/internal/inventory"
	"github.com/jsettlers-installer/installer/client/internal/ratelimit"
	"github.com/jsettlers-installer/installer/client/internal/updatemanager"
	"github.com/jsettlers-installer/installer/client/internal/updatemanager/installer"
	"github.com/jsettlers-installer/installer/util"
)

var (
	rootCmd = &cobra.Command{
		Use:          "jsettlers-installer",
		Short:        "installs and updates JSettlers versions from GitHub",
		Long:         "Lists JSettlers releases and CI builds, installs them below a managed directory and prints how to launch them.",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SetupCloseHandler(ctx, cancel)

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(availableCmd)
	rootCmd.AddCommand(installedCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetupCloseHandler handles SIGTERM signal and cancels the running command
func SetupCloseHandler(ctx context.Context, cancel context.CancelFunc) {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(termCh)
		select {
		case <-ctx.Done():
			return
		case <-termCh:
		}

		log.Info("shutdown signal received")
		cancel()
	}()
}

// services wires the components used by the commands.
type services struct {
	cfg       config.Config
	governor  *ratelimit.Governor
	cache     *catalog.Cache
	inventory *inventory.Inventory
	installer *installer.Installer
	manager   *updatemanager.Manager
}

// loadServices reads the configuration, sets up logging and builds the services.
func loadServices(cmd *cobra.Command) (*services, error) {
	cfg, err := config.Load(rootCmd.PersistentFlags())
	if err != nil {
		return nil, err
	}

	if err := util.InitLog(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, fmt.Errorf("failed initializing log %v", err)
	}

	return newServices(cmd.Context(), cfg)
}

func newServices(ctx context.Context, cfg config.Config) (*services, error) {
	layout := cfg.Layout()
	if err := layout.Ensure(); err != nil {
		return nil, err
	}

	repo := catalog.NewGitHubRepository(ctx, cfg.RepoOwner, cfg.RepoName, cfg.GitHubToken)
	if cfg.GitHubAPIURL != "" {
		var err error
		if repo, err = repo.WithBaseURL(cfg.GitHubAPIURL); err != nil {
			return nil, err
		}
	}
	log.Debugf("using repository %s, managed root %s", repo, layout.Root)

	governor := ratelimit.NewGovernor(repo, cfg.Governor)
	cache := catalog.NewCache(catalog.NewClient(repo, governor, cfg.RunCap), cfg.CacheTTL)
	inv := inventory.New(layout)
	inst := installer.New(inv, repo, governor).WithRetryPolicy(cfg.ExtractAttempts, cfg.ExtractWait)

	return &services{
		cfg:       cfg,
		governor:  governor,
		cache:     cache,
		inventory: inv,
		installer: inst,
		manager:   updatemanager.NewManager(cache, inv, inst),
	}, nil
}

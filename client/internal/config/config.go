package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jsettlers-installer/installer/client/internal/catalog"
	"github.com/jsettlers-installer/installer/client/internal/inventory"
	"github.com/jsettlers-installer/installer/client/internal/ratelimit"
	"github.com/jsettlers-installer/installer/client/internal/updatemanager/installer"
)

const (
	KeyManagedRoot       = "managed-root"
	KeyRepository        = "repository"
	KeyGitHubToken       = "github-token"
	KeyGitHubAPIURL      = "github-api-url"
	KeyHardFloor         = "quota-hard-floor"
	KeySoftFloor         = "quota-soft-floor"
	KeyThrottleStep      = "throttle-step"
	KeyRequestsPerSecond = "requests-per-second"
	KeyRunCap            = "run-cap"
	KeyCacheTTL          = "cache-ttl"
	KeyReleasesOnly      = "releases-only"
	KeyExtractAttempts   = "extract-attempts"
	KeyExtractWait       = "extract-wait"
	KeyJavaHome          = "java-home"
	KeyLogLevel          = "log-level"
	KeyLogFile           = "log-file"
)

const (
	DefaultRepository = "paulwedeck/settlers-remake"
	DefaultLogLevel   = "info"
	DefaultLogFile    = "console"

	envPrefix = "JSI"
)

// Config holds every setting of the installer.
type Config struct {
	ManagedRoot string
	RepoOwner   string
	RepoName    string
	// GitHubToken authenticates API calls, raising the quota
	GitHubToken  string
	GitHubAPIURL string

	Governor ratelimit.Config
	RunCap   int
	CacheTTL time.Duration
	// ReleasesOnly hides workflow runs from the catalog
	ReleasesOnly bool

	ExtractAttempts int
	ExtractWait     time.Duration

	JavaHome string
	LogLevel string
	LogFile  string
}

// Layout returns the managed directory layout.
func (c Config) Layout() inventory.Layout {
	return inventory.Layout{Root: c.ManagedRoot}
}

// RegisterFlags adds a flag with its default for every setting.
func RegisterFlags(fs *pflag.FlagSet) {
	governor := ratelimit.DefaultConfig()

	fs.String(KeyManagedRoot, "", "directory holding installs, downloads and game data (default ~/.jsettlers/managed)")
	fs.String(KeyRepository, DefaultRepository, "GitHub repository <owner>/<name> to install from")
	fs.String(KeyGitHubToken, "", "GitHub token for a higher API quota")
	fs.String(KeyGitHubAPIURL, "", "GitHub API base URL, empty for api.github.com")
	fs.Int(KeyHardFloor, governor.HardFloor, "remaining API quota below which remote calls are refused")
	fs.Int(KeySoftFloor, governor.SoftFloor, "remaining API quota below which remote calls are delayed")
	fs.Duration(KeyThrottleStep, governor.Step, "delay per missing quota unit below the soft floor")
	fs.Float64(KeyRequestsPerSecond, governor.RequestsPerSecond, "client side pacing of API calls, 0 disables it")
	fs.Int(KeyRunCap, catalog.DefaultRunCap, "maximum number of workflow runs listed")
	fs.Duration(KeyCacheTTL, catalog.DefaultCacheTTL, "how long a fetched catalog is reused")
	fs.Bool(KeyReleasesOnly, false, "list releases only, no workflow runs")
	fs.Int(KeyExtractAttempts, installer.DefaultExtractAttempts, "extraction attempts before an install fails")
	fs.Duration(KeyExtractWait, installer.DefaultExtractWait, "wait between extraction attempts")
	fs.String(KeyJavaHome, "", "Java installation used to launch games, empty for java on the PATH")
	fs.String(KeyLogLevel, DefaultLogLevel, "log level: trace, debug, info, warn or error")
	fs.String(KeyLogFile, DefaultLogFile, "log file path, console logs to stderr")
}

// Load resolves the settings from flags and JSI_ prefixed environment variables.
// Flags set on the command line win over the environment.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("bind flags: %w", err)
	}

	cfg := Config{
		ManagedRoot:  v.GetString(KeyManagedRoot),
		GitHubToken:  v.GetString(KeyGitHubToken),
		GitHubAPIURL: v.GetString(KeyGitHubAPIURL),
		Governor: ratelimit.Config{
			HardFloor:         v.GetInt(KeyHardFloor),
			SoftFloor:         v.GetInt(KeySoftFloor),
			Step:              v.GetDuration(KeyThrottleStep),
			RequestsPerSecond: v.GetFloat64(KeyRequestsPerSecond),
			Burst:             ratelimit.DefaultBurst,
		},
		RunCap:          v.GetInt(KeyRunCap),
		CacheTTL:        v.GetDuration(KeyCacheTTL),
		ReleasesOnly:    v.GetBool(KeyReleasesOnly),
		ExtractAttempts: v.GetInt(KeyExtractAttempts),
		ExtractWait:     v.GetDuration(KeyExtractWait),
		JavaHome:        v.GetString(KeyJavaHome),
		LogLevel:        v.GetString(KeyLogLevel),
		LogFile:         v.GetString(KeyLogFile),
	}

	owner, name, err := splitRepository(v.GetString(KeyRepository))
	if err != nil {
		return Config{}, err
	}
	cfg.RepoOwner, cfg.RepoName = owner, name

	if cfg.ManagedRoot == "" {
		root, err := inventory.DefaultRoot()
		if err != nil {
			return Config{}, err
		}
		cfg.ManagedRoot = root
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Governor.HardFloor < 0:
		return fmt.Errorf("%s must not be negative", KeyHardFloor)
	case c.Governor.SoftFloor < c.Governor.HardFloor:
		return fmt.Errorf("%s (%d) must not be below %s (%d)", KeySoftFloor, c.Governor.SoftFloor, KeyHardFloor, c.Governor.HardFloor)
	case c.RunCap <= 0:
		return fmt.Errorf("%s must be positive", KeyRunCap)
	case c.CacheTTL <= 0:
		return fmt.Errorf("%s must be positive", KeyCacheTTL)
	case c.ExtractAttempts <= 0:
		return fmt.Errorf("%s must be positive", KeyExtractAttempts)
	}
	return nil
}

func splitRepository(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(strings.Trim(repo, "/"), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid %s %q, expected <owner>/<name>", KeyRepository, repo)
	}
	return owner, name, nil
}

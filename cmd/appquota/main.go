// Package main is the CLI entry point for appquota.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/appquota/appquota/internal/config"
	"github.com/appquota/appquota/internal/daemon"
	"github.com/appquota/appquota/internal/domain"
	"github.com/appquota/appquota/internal/infra"
	"github.com/appquota/appquota/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

var (
	configPath string
	jsonOutput bool

	ruleLimit   int
	ruleWarn    int
	ruleName    string
	rulePattern string

	settingsInterval  int
	settingsLogin     bool
	settingsMinimized bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "appquota",
	Short: "Per-application daily usage budgets",
	Long: `appquota watches configured applications, accumulates how long they
run each day, warns before the daily budget runs out and terminates
them once it is spent. Usage resets at midnight.`,
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the monitor daemon in the foreground",
	Long: `Runs the enforcement loop until interrupted. Rules and usage are
persisted to a single JSON document under the user config directory.`,
	RunE: runStart,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single enforcement cycle immediately",
	RunE:  runScan,
}

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage enforcement rules",
}

var ruleAddCmd = &cobra.Command{
	Use:   "add <process-name-or-path>",
	Short: "Add a rule",
	Long: `Adds a rule for a process name (case-insensitive, extension optional)
or a full executable path. The daily limit is required.`,
	Args: cobra.ExactArgs(1),
	RunE: runRuleAdd,
}

var ruleUpdateCmd = &cobra.Command{
	Use:   "update <rule-id>",
	Short: "Change a rule's pattern, name, limit or warning lead",
	Long: `Updates only the fields whose flags are given; everything else keeps
its current value.`,
	Args: cobra.ExactArgs(1),
	RunE: runRuleUpdate,
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules",
	RunE:  runRuleList,
}

var ruleRemoveCmd = &cobra.Command{
	Use:   "remove <rule-id>",
	Short: "Remove a rule and its usage history",
	Args:  cobra.ExactArgs(1),
	RunE:  runRuleRemove,
}

var ruleEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], true) },
}

var ruleDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a rule",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setRuleEnabled(args[0], false) },
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's usage per rule",
	RunE:  runUsage,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change persisted settings",
	Long: `Without flags, prints the current settings. With flags, applies the
given changes and prints the result.`,
	RunE: runSettings,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show data file, rule and autostart status",
	RunE:  runStatus,
}

var autostartCmd = &cobra.Command{
	Use:       "autostart <enable|disable>",
	Short:     "Register or unregister start at login",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"enable", "disable"},
	RunE:      runAutostart,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run:   runVersion,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")

	ruleAddCmd.Flags().IntVar(&ruleLimit, "limit", 0, "Daily limit in minutes (required)")
	ruleAddCmd.Flags().IntVar(&ruleWarn, "warn", 0, "Warning lead time in minutes")
	ruleAddCmd.Flags().StringVar(&ruleName, "name", "", "Display name (defaults to the file name)")
	_ = ruleAddCmd.MarkFlagRequired("limit")

	ruleUpdateCmd.Flags().StringVar(&rulePattern, "pattern", "", "Process name or executable path")
	ruleUpdateCmd.Flags().IntVar(&ruleLimit, "limit", 0, "Daily limit in minutes")
	ruleUpdateCmd.Flags().IntVar(&ruleWarn, "warn", 0, "Warning lead time in minutes")
	ruleUpdateCmd.Flags().StringVar(&ruleName, "name", "", "Display name")

	settingsCmd.Flags().IntVar(&settingsInterval, "interval", 0, "Polling interval in seconds")
	settingsCmd.Flags().BoolVar(&settingsLogin, "login", false, "Start at login")
	settingsCmd.Flags().BoolVar(&settingsMinimized, "minimized", false, "Start minimized")

	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	ruleCmd.AddCommand(ruleAddCmd)
	ruleCmd.AddCommand(ruleUpdateCmd)
	ruleCmd.AddCommand(ruleListCmd)
	ruleCmd.AddCommand(ruleRemoveCmd)
	ruleCmd.AddCommand(ruleEnableCmd)
	ruleCmd.AddCommand(ruleDisableCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(ruleCmd)
	rootCmd.AddCommand(usageCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(versionCmd)
}

// newMonitor wires the store, process manager and sink for a command
// invocation.
func newMonitor(logger *zap.Logger) (*usecase.Monitor, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store := infra.NewFileStore(cfg.DataFile, logger)
	pm := infra.NewProcessManager()
	sink := infra.NewLogSink(logger)

	return usecase.NewMonitor(store, pm, sink, domain.RealClock{}, logger), nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	store := infra.NewFileStore(cfg.DataFile, logger)
	pm := infra.NewProcessManager()
	sink := infra.NewLogSink(logger)

	monitor := usecase.NewMonitor(store, pm, sink, domain.RealClock{}, logger)
	settings := monitor.Settings()

	syncAutostart(settings, logger)

	intervalSeconds := settings.PollingIntervalSeconds
	if cfg.PollingOverrideSeconds > 0 {
		intervalSeconds = cfg.PollingOverrideSeconds
		monitor.OverridePollingInterval(intervalSeconds)
		logger.Info("polling interval overridden by config",
			zap.Int("seconds", intervalSeconds))
	}

	scheduler := daemon.NewScheduler(daemon.Config{
		Interval: time.Duration(intervalSeconds) * time.Second,
	}, monitor, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		scheduler.Stop()
	}()

	fmt.Printf("appquota %s monitoring %d rule(s), data: %s\n",
		Version, len(monitor.Rules()), cfg.DataFile)

	scheduler.Run(ctx)

	// Final synchronous save so at most one interval of accrual is lost.
	monitor.Save()
	logger.Info("monitor shut down")
	return nil
}

// syncAutostart aligns login-item registration with the persisted
// start-at-login setting. Best effort.
func syncAutostart(settings domain.Settings, logger *zap.Logger) {
	mgr := infra.NewAutostartManager()
	execPath, err := os.Executable()
	if err != nil {
		logger.Warn("could not resolve executable path", zap.Error(err))
		return
	}

	if settings.StartAtLogin && !mgr.IsInstalled() {
		if err := mgr.Install(execPath); err != nil {
			logger.Warn("could not install login item", zap.Error(err))
		}
	} else if !settings.StartAtLogin && mgr.IsInstalled() {
		if err := mgr.Uninstall(); err != nil {
			logger.Warn("could not remove login item", zap.Error(err))
		}
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	monitor, err := newMonitor(logger)
	if err != nil {
		return err
	}

	monitor.RunCycle(context.Background())
	monitor.Save()
	return nil
}

func runRuleAdd(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	monitor, err := newMonitor(logger)
	if err != nil {
		return err
	}

	rule, err := monitor.AddRule(args[0], ruleName, ruleLimit, ruleWarn)
	if err != nil {
		return err
	}

	fmt.Printf("Added rule %s\n", rule.ID)
	fmt.Printf("  %s: %d min/day, warn %d min before\n",
		rule.DisplayName, rule.DailyLimitMinutes, rule.WarningMinutesBefore)
	return nil
}

func runRuleUpdate(cmd *cobra.Command, args []string) error {
	monitor, err := newMonitor(zap.NewNop())
	if err != nil {
		return err
	}

	var rule domain.Rule
	found := false
	for _, r := range monitor.Rules() {
		if r.ID == args[0] {
			rule = r
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("update rule %s: %w", args[0], usecase.ErrRuleNotFound)
	}

	if cmd.Flags().Changed("pattern") {
		rule.ProcessNameOrPath = rulePattern
	}
	if cmd.Flags().Changed("name") {
		rule.DisplayName = ruleName
	}
	if cmd.Flags().Changed("limit") {
		rule.DailyLimitMinutes = ruleLimit
	}
	if cmd.Flags().Changed("warn") {
		rule.WarningMinutesBefore = ruleWarn
	}

	if err := monitor.UpdateRule(rule); err != nil {
		return err
	}
	fmt.Printf("Updated rule %s\n", rule.ID)
	fmt.Printf("  %s: %d min/day, warn %d min before\n",
		rule.DisplayName, rule.DailyLimitMinutes, rule.WarningMinutesBefore)
	return nil
}

func runRuleList(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	monitor, err := newMonitor(logger)
	if err != nil {
		return err
	}

	rules := monitor.Rules()
	if len(rules) == 0 {
		fmt.Println("No rules configured. Add one with 'appquota rule add'.")
		return nil
	}

	for _, r := range rules {
		state := "enabled"
		if !r.IsEnabled {
			state = "disabled"
		}
		fmt.Printf("[%s] %s (%s)\n", r.ID, r.DisplayName, state)
		fmt.Printf("  pattern: %s\n", r.ProcessNameOrPath)
		fmt.Printf("  limit:   %d min/day, warn %d min before\n",
			r.DailyLimitMinutes, r.WarningMinutesBefore)
	}
	return nil
}

func runRuleRemove(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	monitor, err := newMonitor(logger)
	if err != nil {
		return err
	}

	if err := monitor.RemoveRule(args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed rule %s and its usage history\n", args[0])
	return nil
}

func setRuleEnabled(id string, enabled bool) error {
	logger := zap.NewNop()
	monitor, err := newMonitor(logger)
	if err != nil {
		return err
	}

	if err := monitor.SetRuleEnabled(id, enabled); err != nil {
		return err
	}
	if enabled {
		fmt.Printf("Enabled rule %s\n", id)
	} else {
		fmt.Printf("Disabled rule %s\n", id)
	}
	return nil
}

func runUsage(cmd *cobra.Command, args []string) error {
	logger := zap.NewNop()
	monitor, err := newMonitor(logger)
	if err != nil {
		return err
	}

	rules := monitor.Rules()
	if len(rules) == 0 {
		fmt.Println("No rules configured.")
		return nil
	}

	for _, r := range rules {
		rec, err := monitor.TodayUsage(r.ID)
		if err != nil {
			return err
		}
		usedMin := rec.UsedSecondsToday / 60
		fmt.Printf("%-24s %s / %s\n",
			r.DisplayName,
			strconv.Itoa(usedMin)+" min",
			strconv.Itoa(r.DailyLimitMinutes)+" min")
	}
	return nil
}

func runSettings(cmd *cobra.Command, args []string) error {
	monitor, err := newMonitor(zap.NewNop())
	if err != nil {
		return err
	}

	s := monitor.Settings()
	changed := false
	if cmd.Flags().Changed("interval") {
		s.PollingIntervalSeconds = settingsInterval
		changed = true
	}
	if cmd.Flags().Changed("login") {
		s.StartAtLogin = settingsLogin
		changed = true
	}
	if cmd.Flags().Changed("minimized") {
		s.StartMinimized = settingsMinimized
		changed = true
	}
	if changed {
		monitor.UpdateSettings(s)
		s = monitor.Settings()
	}

	fmt.Printf("Polling interval: %ds\n", s.PollingIntervalSeconds)
	fmt.Printf("Start at login:   %t\n", s.StartAtLogin)
	fmt.Printf("Start minimized:  %t\n", s.StartMinimized)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fmt.Println("=== appquota Status ===")

	if _, err := os.Stat(cfg.DataFile); err != nil {
		fmt.Printf("Data file: %s (not created yet)\n", cfg.DataFile)
	} else {
		fmt.Printf("Data file: %s\n", cfg.DataFile)
	}

	monitor, err := newMonitor(zap.NewNop())
	if err != nil {
		return err
	}

	rules := monitor.Rules()
	enabled := 0
	for _, r := range rules {
		if r.IsEnabled {
			enabled++
		}
	}
	settings := monitor.Settings()

	fmt.Printf("Rules: %d (%d enabled)\n", len(rules), enabled)
	fmt.Printf("Polling interval: %ds\n", settings.PollingIntervalSeconds)
	fmt.Printf("Today: %s\n", time.Now().Format(domain.DateLayout))

	if infra.NewAutostartManager().IsInstalled() {
		fmt.Println("Autostart: installed")
	} else {
		fmt.Println("Autostart: not installed")
	}
	return nil
}

func runAutostart(cmd *cobra.Command, args []string) error {
	mgr := infra.NewAutostartManager()
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable path: %w", err)
	}

	switch args[0] {
	case "enable":
		if err := mgr.Install(execPath); err != nil {
			return err
		}
		fmt.Printf("Installed login item: %s\n", mgr.PlistPath())
	case "disable":
		if err := mgr.Uninstall(); err != nil {
			return err
		}
		fmt.Println("Removed login item")
	default:
		return fmt.Errorf("unknown argument %q, expected enable or disable", args[0])
	}
	return nil
}

func createLogger(cfg *config.Config) *zap.Logger {
	level := zapcore.InfoLevel
	if err := level.Set(cfg.LogLevel); err != nil {
		level = zapcore.InfoLevel
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err != nil {
		logger, _ := zap.NewProduction()
		return logger
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{cfg.LogFile, "stdout"}
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zcfg.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("appquota %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}

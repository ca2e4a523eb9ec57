package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pingcrafty/mcscan/internal/api"
	"github.com/pingcrafty/mcscan/internal/blacklist"
	"github.com/pingcrafty/mcscan/internal/config"
	"github.com/pingcrafty/mcscan/internal/db"
	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/scheduler"
)

var daemonPidFile string

// daemonCmd runs mcscan as a long-running service: the REST/WebSocket API
// accepts on-demand scans, and the scheduler fires recurring file-based
// scans on their cron expressions. It blocks until SIGINT/SIGTERM.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the API server and scheduler until stopped",
	Long: `Run mcscan as a long-running service exposing the REST and
WebSocket API for on-demand scans, and the cron-driven scheduler for
recurring scans of a watched target file. Runs in the foreground; use
your process supervisor of choice to daemonize it.`,
	Example: `  mcscan daemon
  mcscan daemon --pid-file /var/run/mcscan.pid`,
	Run: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().StringVar(&daemonPidFile, "pid-file", "", "Write the process PID to this file")
}

func runDaemon(_ *cobra.Command, _ []string) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if daemonPidFile != "" {
		if err := writePIDFile(daemonPidFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing PID file: %v\n", err)
			os.Exit(1)
		}
		defer os.Remove(daemonPidFile) //nolint:errcheck
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bl *blacklist.Blacklist
	if cfg.Blacklist.Enabled {
		bl, err = blacklist.New(cfg.Blacklist.FilePath, cfg.Blacklist.AutoUpdate)
		if err != nil {
			if cfg.Blacklist.Required {
				fmt.Fprintf(os.Stderr, "Error loading required blacklist: %v\n", err)
				os.Exit(1)
			}
			logging.Warn("blacklist unavailable, daemon continuing without it", "error", err)
		} else {
			defer bl.Close()
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.API.Enabled {
		server, err := api.New(cfg, bl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error building API server: %v\n", err)
			os.Exit(1)
		}
		group.Go(func() error {
			return server.Start(groupCtx)
		})
	}

	sched := scheduler.New(func() (db.Sink, error) {
		database, err := db.Connect(groupCtx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		return db.NewPostgresSink(database), nil
	})
	if cfg.Discovery.Method == "file" && cfg.Discovery.CronExpr != "" {
		defaultPort := uint16(25565)
		if len(cfg.Discovery.Ports) > 0 {
			defaultPort = uint16(cfg.Discovery.Ports[0])
		}
		if _, err := sched.AddJob(buildScheduledJob(cfg, defaultPort)); err != nil {
			fmt.Fprintf(os.Stderr, "Error registering scheduled job: %v\n", err)
			os.Exit(1)
		}
	}
	sched.Start()
	defer sched.Stop()

	logging.InfoDaemon("daemon started", "api_enabled", cfg.API.Enabled, "api_address", cfg.GetAPIAddress())

	<-groupCtx.Done()
	logging.InfoDaemon("daemon shutting down")

	if err := group.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "Daemon exited with error: %v\n", err)
		os.Exit(1)
	}
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

// buildScheduledJob turns the on-disk discovery/scheduler config into the
// JobConfig the scheduler repeats on cfg.Discovery.CronExpr.
func buildScheduledJob(cfg *config.Config, defaultPort uint16) scheduler.JobConfig {
	name := cfg.Discovery.Path
	if name == "" {
		name = "scheduled-scan"
	}
	return scheduler.JobConfig{
		Name:         strings.TrimSpace(name),
		CronExpr:     cfg.Discovery.CronExpr,
		TargetFile:   cfg.Discovery.Path,
		DefaultPort:  defaultPort,
		Orchestrator: cfg.BuildOrchestratorConfig(),
	}
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pingcrafty/mcscan/internal/config"
	"github.com/pingcrafty/mcscan/internal/db"
	"github.com/pingcrafty/mcscan/internal/logging"
	"github.com/pingcrafty/mcscan/internal/orchestrator"
)

var (
	scanMethod      string
	scanCIDR        string
	scanFile        string
	scanExternalCmd string
	scanPorts       string
	scanNoPersist   bool
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single scan to completion",
	Long: `Run one scan against a target source built from flags or the
loaded config file, printing progress and a final summary table, then
exit. Use 'mcscan daemon' instead for scheduled or API-driven scans.`,
	Example: `  mcscan scan --method range --cidr 10.0.0.0/16 --ports 25565
  mcscan scan --method file --file targets.txt
  mcscan scan --method external --external-cmd "./discover.sh"`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanMethod, "method", "", "Discovery method: range, file, external (default: config file)")
	scanCmd.Flags().StringVar(&scanCIDR, "cidr", "", "CIDR block to scan (method=range)")
	scanCmd.Flags().StringVar(&scanFile, "file", "", "Target list file (method=file)")
	scanCmd.Flags().StringVar(&scanExternalCmd, "external-cmd", "", "External discovery command (method=external)")
	scanCmd.Flags().StringVar(&scanPorts, "ports", "", "Comma-separated ports to probe")
	scanCmd.Flags().BoolVar(&scanNoPersist, "no-persist", false, "Run without a database sink")
}

func runScan(_ *cobra.Command, _ []string) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	discovery := applyScanFlags(cfg.Discovery)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, err := discovery.BuildSource(ctx, cfg.Advanced)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building target source: %v\n", err)
		os.Exit(1)
	}

	var sink db.Sink
	if !scanNoPersist {
		sink, err = openSink(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening database sink: %v\n", err)
			os.Exit(1)
		}
	}

	o := orchestrator.New(cfg.BuildOrchestratorConfig(), source, sink)
	events, unsubscribe := o.Subscribe()
	defer unsubscribe()

	go printProgress(events)

	logging.InfoDaemon("scan starting", "method", discovery.Method)
	if err := o.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
		printSummary(o)
		os.Exit(1)
	}

	printSummary(o)
}

// applyScanFlags overrides the config file's discovery section with
// whichever scan flags were actually set, leaving the rest untouched.
func applyScanFlags(base config.DiscoveryConfig) config.DiscoveryConfig {
	if scanMethod != "" {
		base.Method = scanMethod
	}
	if scanCIDR != "" {
		base.CIDR = scanCIDR
	}
	if scanFile != "" {
		base.Path = scanFile
	}
	if scanExternalCmd != "" {
		parts := strings.Fields(scanExternalCmd)
		base.Command = parts
	}
	if scanPorts != "" {
		base.Ports = nil
		for _, p := range strings.Split(scanPorts, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err == nil {
				base.Ports = append(base.Ports, n)
			}
		}
	}
	return base
}

// openSink connects to the configured database and wraps it as a Sink.
func openSink(ctx context.Context, cfg *config.Config) (db.Sink, error) {
	database, err := db.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	return db.NewPostgresSink(database), nil
}

// printProgress prints one line per published ProgressEvent until the
// scan's broadcaster closes the channel.
func printProgress(events <-chan orchestrator.ProgressEvent) {
	for ev := range events {
		fmt.Printf("\rattempted=%d succeeded=%d failed=%d rate=%.1f/s eta=%.0fs   ",
			ev.Attempted, ev.Succeeded, ev.Failed, ev.RateEPS, ev.ETASeconds)
	}
}

// printSummary renders the final counters as a table, following the
// operator-CLI table style used elsewhere in this package.
func printSummary(o *orchestrator.Orchestrator) {
	fmt.Println()
	snap := o.Stats().Snapshot()

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Metric", "Value")
	_ = table.Append([]string{"Attempted", strconv.FormatInt(snap.Attempted, 10)})
	_ = table.Append([]string{"Succeeded", strconv.FormatInt(snap.Succeeded, 10)})
	_ = table.Append([]string{"Failed", strconv.FormatInt(snap.Failed, 10)})
	_ = table.Append([]string{"Timeouts", strconv.FormatInt(snap.Timeouts, 10)})
	_ = table.Append([]string{"Refused", strconv.FormatInt(snap.Refused, 10)})
	_ = table.Append([]string{"Errors", strconv.FormatInt(snap.Errors, 10)})
	_ = table.Append([]string{"Rate limited", strconv.FormatInt(snap.RateLimited, 10)})
	_ = table.Append([]string{"Blacklisted", strconv.FormatInt(snap.Blacklisted, 10)})
	_ = table.Append([]string{"Elapsed", snap.Elapsed.String()})
	_ = table.Render()
}

package cli

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pingcrafty/mcscan/internal/blacklist"
	"github.com/pingcrafty/mcscan/internal/config"
)

// blacklistCmd inspects the address-exclusion list the config file points
// at, without needing a running daemon.
var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "List the loaded blacklist entries",
	Long: `Load the blacklist file named by the config's blacklist
section and print its parsed CIDR entries.`,
	Run: runBlacklist,
}

func init() {
	rootCmd.AddCommand(blacklistCmd)
}

func runBlacklist(_ *cobra.Command, _ []string) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if !cfg.Blacklist.Enabled {
		fmt.Println("Blacklist is disabled in config")
		return
	}

	bl, err := blacklist.New(cfg.Blacklist.FilePath, cfg.Blacklist.AutoUpdate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading blacklist: %v\n", err)
		os.Exit(1)
	}
	defer bl.Close()

	entries := bl.Entries()
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("CIDR")
	for _, e := range entries {
		_ = table.Append([]string{e})
	}
	_ = table.Render()
	fmt.Printf("%d entries loaded from %s\n", len(entries), cfg.Blacklist.FilePath)
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pingcrafty/mcscan/internal/auth"
	"github.com/pingcrafty/mcscan/internal/config"
)

var configInitPath string

// configCmd groups config inspection subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or initialize configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Run:   runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Run:   runConfigInit,
}

var generateKeyName string

var configGenerateKeyCmd = &cobra.Command{
	Use:   "generate-key",
	Short: "Generate a new API key for the api.api_key config field",
	Run:   runConfigGenerateKey,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGenerateKeyCmd)
	configInitCmd.Flags().StringVar(&configInitPath, "path", "config.yaml", "Path to write the default config to")
	configGenerateKeyCmd.Flags().StringVar(&generateKeyName, "name", "default", "Label for the generated key")
}

func runConfigShow(_ *cobra.Command, _ []string) {
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling config: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(out))
}

func runConfigInit(_ *cobra.Command, _ []string) {
	if _, err := os.Stat(configInitPath); err == nil {
		fmt.Fprintf(os.Stderr, "%s already exists, refusing to overwrite\n", configInitPath)
		os.Exit(1)
	}
	if err := config.Default().Save(configInitPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default configuration to %s\n", configInitPath)
}

func runConfigGenerateKey(_ *cobra.Command, _ []string) {
	generated, err := auth.GenerateAPIKey(generateKeyName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating API key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated key (shown once, paste into api.api_key): %s\n", generated.Key)
	fmt.Printf("Display prefix: %s\n", generated.KeyPrefix)
}

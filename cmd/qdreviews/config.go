package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"qdreviews/pkg/config"
	"qdreviews/pkg/ui"
)

// defaultConfigPath is where config init writes; it is the first search location
const defaultConfigPath = ".qdreviews.yaml"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage qdreviews configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (QDREVIEWS_*)
  - Configuration file
  - Default values (lowest priority)`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the default configuration with every available option.

The file is created in the current directory as '.qdreviews.yaml',
where runs pick it up, unless a different path is given with --config.`,
	RunE: runConfigInit,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	console := ui.NewConsoleWriter(cmd.OutOrStdout())
	console.PrintSuccess("configuration file created: %s", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, flagValues())
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, string(data))
	fmt.Fprintln(out, "\nConfiguration sources (in order of priority):")
	fmt.Fprintln(out, "1. Command line flags")
	fmt.Fprintln(out, "2. Environment variables (QDREVIEWS_*)")
	if configFile != "" {
		fmt.Fprintf(out, "3. Configuration file: %s\n", configFile)
	} else {
		fmt.Fprintln(out, "3. Configuration file: (searched in default locations)")
	}
	fmt.Fprintln(out, "4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	console := ui.NewConsoleWriter(cmd.OutOrStdout())

	cfg, err := config.Load(configFile, flagValues())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		return fmt.Errorf("cannot create output directory: %w", err)
	}
	if !cfg.Content.CaptureOriginalText && cfg.Content.BrowserFallback {
		console.PrintWarning("browser_fallback has no effect while capture_original_text is off")
	}

	console.PrintSuccess("configuration is valid")
	return nil
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"secevents/pkg/config"
	"secevents/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage secevents configuration files.

Configuration is loaded from:
  - Environment variables and .env files (highest priority)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Create an example configuration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigInit,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

Environment overrides are applied before validation, exactly as a fetch
would see them.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigValidate,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show <path>",
	Short: "Show the effective configuration with secrets masked",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(showCmd)
}

const exampleConfig = `# secevents configuration
#
# Environment variables override these values:
#   SECEVENTS_BASE_URL, SECEVENTS_ACCESS_TOKEN, SECEVENTS_FROM, SECEVENTS_TO,
#   SECEVENTS_LOG_LEVEL, SECEVENTS_OUTPUT_DIR, SECEVENTS_REDIS_ADDR

secureEvents_connector:
  # API root, with trailing slash
  base_url: "https://secure.sysdig.com/"

  # Prefix of the page files; pages go to <store_filename>_list_events_<n>.json
  store_filename: "events"

  # Leave empty to use SECEVENTS_ACCESS_TOKEN or 'secevents auth login'
  access_token: ""
  credential_profile: "default"

  # Time window in nanoseconds since the Unix epoch
  from: "1700000000000000000"
  to: "1700003600000000000"

  # Page size
  limit: 10

  # Retries after a timed-out attempt
  max_retries: 3

  # Per-attempt timeout
  request_timeout: 30s

output:
  # file or redis
  backend: file
  directory: "./out"
  redis:
    addr: "localhost:6379"
    key_prefix: "secevents:"
    ttl: 0s

logging:
  level: info
  file: "secureEvents_connector.log"
  console: false

metrics:
  # Prometheus textfile written after every run; empty disables it
  textfile: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := args[0]

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("base_url", cfg.Connector.BaseURL)
	ui.PrintInfo("output", cfg.Output.Backend)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(args[0]); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

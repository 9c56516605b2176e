package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"secevents/pkg/auth"
	"secevents/pkg/client"
	"secevents/pkg/config"
	"secevents/pkg/logger"
	"secevents/pkg/metrics"
	"secevents/pkg/secure"
	"secevents/pkg/storage"
	"secevents/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	noColor bool
)

// credentialSource looks up a stored token by profile
type credentialSource interface {
	Retrieve(profile string) (*auth.Credential, error)
}

// newCredentialManager is replaced in tests
var newCredentialManager = func() (credentialManager, error) {
	return auth.NewManager()
}

// rootCmd fetches both event collections described by a config file
var rootCmd = &cobra.Command{
	Use:   "secevents <config.yaml>",
	Short: "Download Secure events and activity audit events",
	Long: `secevents pages through the Secure events and activity audit events of a
time window, writes the data array of every page to its own file and
reports how many records each collection holds.

The access token is taken from the config file, SECEVENTS_ACCESS_TOKEN, or
the profile stored with 'secevents auth login', in that order.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.SetNoColor(true)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var creds credentialSource
		if manager, err := newCredentialManager(); err == nil {
			creds = manager
		}

		summary, err := runFetch(cmd.Context(), args[0], creds)
		if err != nil {
			return err
		}
		printSummary(cmd.OutOrStdout(), summary)
		return nil
	},
}

// Execute runs the root command and exits with status 1 on failure
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError("Error", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.SetVersionTemplate(`secevents {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// runFetch loads configPath and fetches both collections. The metrics
// textfile is written even when the run fails.
func runFetch(ctx context.Context, configPath string, creds credentialSource) (secure.Summary, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return secure.Summary{}, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return secure.Summary{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	resolveToken(cfg, creds, log)

	logger.LogComponentStart(log, "secevents", map[string]interface{}{
		"base_url":       cfg.Connector.BaseURL,
		"from":           cfg.Connector.From,
		"to":             cfg.Connector.To,
		"limit":          cfg.Connector.Limit,
		"max_retries":    cfg.Connector.MaxRetries,
		"output_backend": cfg.Output.Backend,
	})
	logWindow(log, cfg.Connector)

	store, err := storage.New(ctx, cfg.Output)
	if err != nil {
		log.WithError(err).Error("Failed to open page store")
		return secure.Summary{}, fmt.Errorf("failed to open page store: %w", err)
	}
	defer store.Close()

	collector := metrics.New()
	service := secure.NewService(cfg.Session(), store, log,
		secure.WithMetrics(collector),
		secure.WithClientOptions(client.WithTimeout(cfg.Connector.RequestTimeout)),
	)

	summary, runErr := service.Run(ctx, cfg.Connector.StoreFilename)

	if cfg.Metrics.Textfile != "" {
		if err := collector.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			log.WithError(err).Warn("Failed to write metrics textfile")
		}
	}

	if runErr != nil {
		logger.LogComponentStop(log, "secevents", runErr.Error())
		return summary, runErr
	}

	log.InfoWithFields("Secure events count", map[string]interface{}{"count": summary.SecureEvents})
	log.InfoWithFields("Audit events count", map[string]interface{}{"count": summary.AuditEvents})
	logger.LogComponentStop(log, "secevents", "completed")
	return summary, nil
}

// resolveToken fills in the access token from the credential store when the
// config file and environment have none
func resolveToken(cfg *config.Config, creds credentialSource, log logger.Logger) {
	if cfg.Connector.AccessToken != "" || creds == nil {
		return
	}

	cred, err := creds.Retrieve(cfg.Connector.CredentialProfile)
	if err != nil {
		log.WithField("profile", cfg.Connector.CredentialProfile).Debug("No stored credential")
		return
	}
	cfg.Connector.AccessToken = cred.AccessToken
	log.WithField("profile", cred.Profile).Info("Using stored credential")
}

func logWindow(log logger.Logger, c config.ConnectorConfig) {
	fields := map[string]interface{}{}
	if from, err := config.ParseEpochNanos(c.From); err == nil {
		fields["from_time"] = from
	}
	if to, err := config.ParseEpochNanos(c.To); err == nil {
		fields["to_time"] = to
	}
	if len(fields) > 0 {
		log.DebugWithFields("Time window", fields)
	}
}

func printSummary(w io.Writer, summary secure.Summary) {
	fmt.Fprintf(w, "Secure events: %d\n", summary.SecureEvents)
	fmt.Fprintf(w, "Audit events: %d\n", summary.AuditEvents)
	fmt.Fprintf(w, "API calls: %d\n", summary.APICalls)
}

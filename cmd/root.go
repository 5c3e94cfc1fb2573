package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stackvista/es-restore/cmd/elasticsearch"
	"github.com/stackvista/es-restore/internal/config"
	"github.com/stackvista/es-restore/internal/logger"
	"github.com/stackvista/es-restore/internal/restore"
)

// Set at build time with -ldflags "-X github.com/stackvista/es-restore/cmd.version=..."
var version = "dev"

var (
	cliCtx *config.Context
)

// addConnectionFlags adds the flags that select the cluster and how to reach it
func addConnectionFlags(flags *pflag.FlagSet) {
	flags.StringVarP(&cliCtx.Config.URL, "url", "u", "", "Elasticsearch URL, e.g. https://search.example.com:9200")
	flags.StringVar(&cliCtx.Config.Repository, "snapshot-repository", config.DefaultRepository, "Snapshot repository name")
	flags.StringVar(&cliCtx.Config.Username, "username", "", "Basic auth username")
	flags.StringVar(&cliCtx.Config.Password, "password", "", "Basic auth password")
	flags.DurationVar(&cliCtx.Config.RequestTimeout, "timeout", 0, "Timeout for each Elasticsearch request (default 30s)")
	flags.StringVar(&cliCtx.Config.ConfigFile, "config", "", "Path to a YAML configuration file")
}

// addKubernetesFlags adds the flags used when Elasticsearch runs inside Kubernetes
func addKubernetesFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cliCtx.Config.Namespace, "namespace", "", "Kubernetes namespace of the Elasticsearch service")
	flags.StringVar(&cliCtx.Config.Kubeconfig, "kubeconfig", "", "Path to kubeconfig file (default: ~/.kube/config)")
	flags.StringVar(&cliCtx.Config.ConfigMapName, "configmap", "", "ConfigMap name containing restore configuration")
	flags.StringVar(&cliCtx.Config.SecretName, "secret", "", "Secret name containing restore configuration overrides")
	flags.StringVar(&cliCtx.Config.ServiceName, "service", "", "Port-forward to this Elasticsearch service when no --url is given")
	flags.StringVar(&cliCtx.Config.ScaleDownSelector, "scale-down-selector", "", "Label selector of deployments to stop while restoring")
}

func init() {
	cliCtx = config.NewContext()

	addConnectionFlags(rootCmd.Flags())
	addKubernetesFlags(rootCmd.Flags())

	rootCmd.Flags().BoolVarP(&cliCtx.Config.ListSnapshots, "list-snapshots", "l", false, "List the latest successful snapshots")
	rootCmd.Flags().BoolVarP(&cliCtx.Config.Restore, "restore", "r", false, "Restore an index from a snapshot")
	rootCmd.Flags().StringVarP(&cliCtx.Config.SnapshotName, "snapshot-name", "s", "", "Snapshot to restore from")
	rootCmd.Flags().StringVarP(&cliCtx.Config.Index, "index", "i", "", "Index to restore, a comma-separated list or 'all'")
	rootCmd.Flags().BoolVar(&cliCtx.Config.NoColor, "no-color", false, "Disable colored output")
	rootCmd.Flags().BoolVar(&cliCtx.Config.Debug, "debug", false, "Enable debug output")
	rootCmd.Flags().BoolVarP(&cliCtx.Config.Quiet, "quiet", "q", false, "Suppress operational messages (only show errors and data output)")
	rootCmd.Flags().StringVarP(&cliCtx.Config.OutputFormat, "output", "o", "table", "Output format (table, json)")
}

var rootCmd = &cobra.Command{
	Use:   "es-restore",
	Short: "List and restore Elasticsearch snapshots",
	Long: `A CLI tool to list the latest successful snapshots of an Elasticsearch snapshot repository
and to restore an index from one of them. Restoring deletes the existing index first.`,
	Example: `  es-restore --url https://localhost:9200 --list-snapshots
  es-restore --url https://localhost:9200 --restore --snapshot-name nightly-2024.01.31 --index logs-app`,
	Version:      version,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, _ []string) {
		err := elasticsearch.Run(cmd.Context(), cliCtx, cmd.Flags().Changed, elasticsearch.DefaultEnv())
		if err == nil {
			return
		}

		reportError(os.Stderr, cmd, err)
		os.Exit(1)
	},
}

// reportError logs a failed invocation and appends the usage for argument errors
func reportError(w io.Writer, cmd *cobra.Command, err error) {
	log := logger.NewWithWriter(w, cliCtx.Config.Quiet, cliCtx.Config.Debug, cliCtx.Config.NoColor)
	log.Errorf("%v", err)

	if errors.Is(err, config.ErrInvalid) || errors.Is(err, restore.ErrMissingArguments) {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprint(w, cmd.UsageString())
	}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

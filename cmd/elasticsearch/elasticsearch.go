package elasticsearch

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/stackvista/es-restore/cmd/portforward"
	"github.com/stackvista/es-restore/internal/config"
	"github.com/stackvista/es-restore/internal/elasticsearch"
	"github.com/stackvista/es-restore/internal/k8s"
	"github.com/stackvista/es-restore/internal/logger"
	"github.com/stackvista/es-restore/internal/output"
	"github.com/stackvista/es-restore/internal/restore"
)

// Env holds the process collaborators of one invocation
type Env struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Confirm restore.Confirmer
	// Clock drives the restore wait loop; nil means the wall clock
	Clock        restore.Clock
	NewK8sClient func(kubeconfig string, debug bool) (k8s.Interface, error)
}

// DefaultEnv wires the invocation to the terminal and the real cluster
func DefaultEnv() *Env {
	return &Env{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Confirm: restore.NewPromptConfirmer(os.Stdin, os.Stderr),
		NewK8sClient: func(kubeconfig string, debug bool) (k8s.Interface, error) {
			return k8s.NewClient(kubeconfig, debug)
		},
	}
}

// session is the state shared by the operations of one invocation
type session struct {
	cli       *config.CLIConfig
	cfg       *config.Config
	env       *Env
	log       *logger.Logger
	formatter *output.Formatter
	k8sClient k8s.Interface
	esClient  *elasticsearch.Client
}

// Run checks connectivity and then lists snapshots or restores an index, depending on the flags.
// changed reports which flags were set explicitly on the command line.
func Run(ctx context.Context, cliCtx *config.Context, changed func(flag string) bool, env *Env) error {
	cli := cliCtx.Config
	cli.Index = elasticsearch.NormalizeIndices(cli.Index)
	log := logger.NewWithWriter(env.Stderr, cli.Quiet, cli.Debug, cli.NoColor)

	if !output.IsValid(cli.OutputFormat) {
		return fmt.Errorf("%w: --output must be one of table, json", config.ErrInvalid)
	}

	restoring := cli.Restore && !cli.ListSnapshots

	// Restore arguments are checked before anything touches the network
	if restoring {
		opts := restore.Options{SnapshotName: cli.SnapshotName, Index: cli.Index}
		if err := opts.Validate(); err != nil {
			return err
		}
	}

	s := &session{
		cli:       cli,
		env:       env,
		log:       log,
		formatter: output.NewFormatter(env.Stdout, cli.OutputFormat),
	}

	if err := s.loadConfig(ctx, changed); err != nil {
		return err
	}
	if s.cfg.NeedsKubernetes(restoring) {
		if _, err := s.kubernetes(); err != nil {
			return err
		}
	}

	esURL := s.cfg.Elasticsearch.URL
	if esURL == "" {
		pf, err := s.portForward(ctx)
		if err != nil {
			return err
		}
		defer pf.Close()
		esURL = pf.URL()
	}

	esClient, err := elasticsearch.NewClient(elasticsearch.ClientConfig{
		URL:            esURL,
		Username:       s.cfg.Elasticsearch.Username,
		Password:       s.cfg.Elasticsearch.Password,
		ConnectTimeout: s.cfg.Elasticsearch.ConnectTimeout,
		RequestTimeout: s.cfg.Elasticsearch.RequestTimeout,
	})
	if err != nil {
		return err
	}
	s.esClient = esClient

	info, err := s.connect(ctx)
	if err != nil {
		return err
	}

	switch {
	case cli.ListSnapshots:
		return s.listSnapshots(ctx)
	case cli.Restore:
		return s.restore(ctx)
	default:
		return s.formatter.PrintObject([][2]string{
			{"cluster_name", info.ClusterName},
			{"version", info.Version.Number},
		})
	}
}

// loadConfig merges defaults, the config file, the cluster ConfigMap/Secret and the explicit flags
func (s *session) loadConfig(ctx context.Context, changed func(flag string) bool) error {
	cfg := config.Default()

	var layers []*config.Config
	if s.cli.ConfigFile != "" {
		fileCfg, err := config.LoadFile(s.cli.ConfigFile)
		if err != nil {
			return err
		}
		layers = append(layers, fileCfg)
	}

	if s.cli.Namespace != "" && (s.cli.ConfigMapName != "" || s.cli.SecretName != "") {
		k8sClient, err := s.kubernetes()
		if err != nil {
			return err
		}
		clusterCfg, err := config.LoadFromCluster(ctx, k8sClient.Clientset(), s.cli.Namespace, s.cli.ConfigMapName, s.cli.SecretName)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		layers = append(layers, clusterCfg)
	}

	layers = append(layers, s.cli.Overrides(changed))
	if err := config.Merge(cfg, layers...); err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	s.log.Debugf("Using snapshot repository %s", cfg.Elasticsearch.Repository)
	s.cfg = cfg
	return nil
}

// kubernetes returns the cluster client, creating it on first use
func (s *session) kubernetes() (k8s.Interface, error) {
	if s.k8sClient != nil {
		return s.k8sClient, nil
	}
	if s.cli.Namespace == "" {
		return nil, fmt.Errorf("%w: --namespace is required with --service, --scale-down-selector, --configmap or --secret", config.ErrInvalid)
	}

	k8sClient, err := s.env.NewK8sClient(s.cli.Kubeconfig, s.cli.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	s.k8sClient = k8sClient
	return k8sClient, nil
}

// portForward exposes the configured in-cluster service on a local port
func (s *session) portForward(ctx context.Context) (*portforward.Conn, error) {
	k8sClient, err := s.kubernetes()
	if err != nil {
		return nil, err
	}

	service := s.cfg.Elasticsearch.Service
	pfCtx, cancel := context.WithTimeout(ctx, s.cfg.Elasticsearch.RequestTimeout)
	defer cancel()

	return portforward.SetupPortForward(pfCtx, k8sClient, s.cli.Namespace, service.Name, service.LocalPortForwardPort, service.Port, s.log)
}

// connect verifies the cluster answers and reports its name and version
func (s *session) connect(ctx context.Context) (*elasticsearch.ClusterInfo, error) {
	info, err := s.esClient.ClusterInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	s.log.Infof("Elasticsearch cluster name: %s, version: %s", info.ClusterName, info.Version.Number)
	return info, nil
}

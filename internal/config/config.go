// Package config provides configuration management for the restore tool.
// Configuration is layered: built-in defaults, an optional YAML file, an optional
// Kubernetes ConfigMap overridden by a Secret, and finally command line flags.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	// DefaultRepository is the snapshot repository used when none is configured
	DefaultRepository = "cs-automated"
	// DefaultPort is the Elasticsearch HTTP port
	DefaultPort = 9200

	defaultConnectTimeout = 5 * time.Second
	defaultRequestTimeout = 30 * time.Second
	defaultPollInterval   = 2 * time.Second
	defaultDeleteTimeout  = 300 * time.Second

	// configKey is the ConfigMap/Secret data key holding the YAML document
	configKey = "config"
)

// ErrInvalid marks configuration problems the operator has to fix on the command line
var ErrInvalid = errors.New("invalid configuration")

// Config represents the merged configuration
type Config struct {
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch" validate:"required"`
	Restore       RestoreConfig       `yaml:"restore" validate:"required"`
}

// ElasticsearchConfig holds Elasticsearch connection configuration
type ElasticsearchConfig struct {
	URL            string        `yaml:"url" validate:"omitempty,startswith=http"`
	Repository     string        `yaml:"repository" validate:"required"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"` // From secret
	ConnectTimeout time.Duration `yaml:"connectTimeout" validate:"gt=0"`
	RequestTimeout time.Duration `yaml:"requestTimeout" validate:"gt=0"`
	Service        ServiceConfig `yaml:"service"`
}

// ServiceConfig holds the in-cluster service reached through a port-forward
type ServiceConfig struct {
	Name                 string `yaml:"name"`
	Port                 int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	LocalPortForwardPort int    `yaml:"localPortForwardPort" validate:"omitempty,min=1,max=65535"`
}

// RestoreConfig holds restore workflow configuration
type RestoreConfig struct {
	PollInterval           time.Duration `yaml:"pollInterval" validate:"gt=0"`
	DeleteTimeout          time.Duration `yaml:"deleteTimeout" validate:"gt=0"`
	ScaleDownLabelSelector string        `yaml:"scaleDownLabelSelector"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Elasticsearch: ElasticsearchConfig{
			Repository:     DefaultRepository,
			ConnectTimeout: defaultConnectTimeout,
			RequestTimeout: defaultRequestTimeout,
			Service: ServiceConfig{
				Port:                 DefaultPort,
				LocalPortForwardPort: DefaultPort,
			},
		},
		Restore: RestoreConfig{
			PollInterval:  defaultPollInterval,
			DeleteTimeout: defaultDeleteTimeout,
		},
	}
}

// LoadFile reads a YAML configuration file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	return config, nil
}

// LoadFromCluster loads and merges configuration from ConfigMap and Secret
// ConfigMap provides base configuration, Secret overrides it
// A missing Secret is tolerated, a missing ConfigMap is not
func LoadFromCluster(ctx context.Context, clientset kubernetes.Interface, namespace, configMapName, secretName string) (*Config, error) {
	config := &Config{}

	if configMapName != "" {
		cm, err := clientset.CoreV1().ConfigMaps(namespace).Get(ctx, configMapName, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get ConfigMap '%s': %w", configMapName, err)
		}

		configData, ok := cm.Data[configKey]
		if !ok {
			return nil, fmt.Errorf("ConfigMap '%s' does not contain '%s' key", configMapName, configKey)
		}
		if err := yaml.Unmarshal([]byte(configData), config); err != nil {
			return nil, fmt.Errorf("failed to parse ConfigMap config: %w", err)
		}
	}

	if secretName != "" {
		secret, err := clientset.CoreV1().Secrets(namespace).Get(ctx, secretName, metav1.GetOptions{})
		switch {
		case apierrors.IsNotFound(err):
			// Secret is optional - only used for overrides
		case err != nil:
			return nil, fmt.Errorf("failed to get Secret '%s': %w", secretName, err)
		default:
			if configData, ok := secret.Data[configKey]; ok {
				var secretConfig Config
				if err := yaml.Unmarshal(configData, &secretConfig); err != nil {
					return nil, fmt.Errorf("failed to parse Secret config: %w", err)
				}
				// Merge Secret config into base config (non-zero values override)
				if err := mergo.Merge(config, secretConfig, mergo.WithOverride); err != nil {
					return nil, fmt.Errorf("failed to merge Secret config: %w", err)
				}
			}
		}
	}

	return config, nil
}

// Merge overlays the non-zero values of each layer onto base, in order
func Merge(base *Config, layers ...*Config) error {
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if err := mergo.Merge(base, *layer, mergo.WithOverride); err != nil {
			return fmt.Errorf("failed to merge configuration: %w", err)
		}
	}
	return nil
}

// Validate checks the merged configuration
// All failures wrap ErrInvalid
func Validate(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				if fe.StructField() == "URL" && fe.Tag() == "startswith" {
					return fmt.Errorf("%w: --url [url], url must be in the format https://some.url", ErrInvalid)
				}
			}
		}
		return fmt.Errorf("%w: configuration validation failed: %w", ErrInvalid, err)
	}

	if config.Elasticsearch.URL == "" && config.Elasticsearch.Service.Name == "" {
		return fmt.Errorf("%w: --url [url] is a required option", ErrInvalid)
	}

	return nil
}

// Context carries the parsed command line for the lifetime of one invocation
type Context struct {
	Config *CLIConfig
}

// CLIConfig holds the raw flag values
type CLIConfig struct {
	URL               string
	ListSnapshots     bool
	Restore           bool
	SnapshotName      string
	Index             string
	Repository        string
	NoColor           bool
	Debug             bool
	Quiet             bool
	OutputFormat      string // table, json
	ConfigFile        string
	RequestTimeout    time.Duration
	Username          string
	Password          string
	Namespace         string
	Kubeconfig        string
	ConfigMapName     string
	SecretName        string
	ServiceName       string
	ScaleDownSelector string
}

// NewContext creates an empty CLI context
func NewContext() *Context {
	return &Context{
		Config: &CLIConfig{},
	}
}

// Overrides converts the flags the operator explicitly set into a config layer.
// changed reports whether a flag, by name, was given on the command line.
func (c *CLIConfig) Overrides(changed func(flag string) bool) *Config {
	o := &Config{}
	if changed("url") {
		o.Elasticsearch.URL = c.URL
	}
	if changed("snapshot-repository") {
		o.Elasticsearch.Repository = c.Repository
	}
	if changed("timeout") {
		o.Elasticsearch.RequestTimeout = c.RequestTimeout
	}
	if changed("username") {
		o.Elasticsearch.Username = c.Username
	}
	if changed("password") {
		o.Elasticsearch.Password = c.Password
	}
	if changed("service") {
		o.Elasticsearch.Service.Name = c.ServiceName
	}
	if changed("scale-down-selector") {
		o.Restore.ScaleDownLabelSelector = c.ScaleDownSelector
	}
	return o
}

// NeedsKubernetes reports whether the invocation requires cluster access: a port-forward
// when no URL is configured, or scaling down writers while restoring
func (c *Config) NeedsKubernetes(restoring bool) bool {
	if c.Elasticsearch.URL == "" && c.Elasticsearch.Service.Name != "" {
		return true
	}
	return restoring && c.Restore.ScaleDownLabelSelector != ""
}

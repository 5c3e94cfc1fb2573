package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

const invalidConfigYAML = `
elasticsearch:
  service:
    port: [not, a, port]
`

// loadTestData loads test configuration from testdata files
func loadTestData(t *testing.T, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	require.NoError(t, err, "failed to read test data file: %s", filename)
	return string(data)
}

func createConfigMap(t *testing.T, client *fake.Clientset, name string, data map[string]string) {
	t.Helper()
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "test-ns",
		},
		Data: data,
	}
	_, err := client.CoreV1().ConfigMaps("test-ns").Create(context.Background(), cm, metav1.CreateOptions{})
	require.NoError(t, err)
}

func createSecret(t *testing.T, client *fake.Clientset, name string, data map[string][]byte) {
	t.Helper()
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "test-ns",
		},
		Data: data,
	}
	_, err := client.CoreV1().Secrets("test-ns").Create(context.Background(), secret, metav1.CreateOptions{})
	require.NoError(t, err)
}

func TestDefault(t *testing.T) {
	config := Default()

	assert.Equal(t, "cs-automated", config.Elasticsearch.Repository)
	assert.Equal(t, 5*time.Second, config.Elasticsearch.ConnectTimeout)
	assert.Equal(t, 30*time.Second, config.Elasticsearch.RequestTimeout)
	assert.Equal(t, 9200, config.Elasticsearch.Service.Port)
	assert.Equal(t, 9200, config.Elasticsearch.Service.LocalPortForwardPort)
	assert.Equal(t, 2*time.Second, config.Restore.PollInterval)
	assert.Equal(t, 300*time.Second, config.Restore.DeleteTimeout)
	assert.False(t, config.NeedsKubernetes(true))
}

func TestLoadFile(t *testing.T) {
	config, err := LoadFile(filepath.Join("testdata", "validConfigFile.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://search-logs.eu-west-1.es.amazonaws.com", config.Elasticsearch.URL)
	assert.Equal(t, "nightly", config.Elasticsearch.Repository)
	assert.Equal(t, 45*time.Second, config.Elasticsearch.RequestTimeout)
	assert.Equal(t, 5*time.Second, config.Restore.PollInterval)
	assert.Equal(t, 10*time.Minute, config.Restore.DeleteTimeout)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "does-not-exist.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(invalidConfigYAML), 0o600))

	_, err := LoadFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFromCluster_CompleteConfiguration(t *testing.T) {
	fakeClient := fake.NewSimpleClientset()
	createConfigMap(t, fakeClient, "restore-config", map[string]string{
		"config": loadTestData(t, "validConfigMapConfig.yaml"),
	})
	createSecret(t, fakeClient, "restore-secret", map[string][]byte{
		"config": []byte(loadTestData(t, "validSecretConfig.yaml")),
	})

	config, err := LoadFromCluster(context.Background(), fakeClient, "test-ns", "restore-config", "restore-secret")
	require.NoError(t, err)

	assert.Equal(t, "sts-backup", config.Elasticsearch.Repository)
	assert.Equal(t, "suse-observability-elasticsearch-master-headless", config.Elasticsearch.Service.Name)
	assert.Equal(t, 9201, config.Elasticsearch.Service.LocalPortForwardPort)
	assert.Equal(t, "observability.suse.com/scalable-during-es-restore=true", config.Restore.ScaleDownLabelSelector)

	// Credentials come from Secret
	assert.Equal(t, "restore-admin", config.Elasticsearch.Username)
	assert.Equal(t, "secret-password", config.Elasticsearch.Password)
	assert.True(t, config.NeedsKubernetes(false))
}

func TestLoadFromCluster_ConfigMapNotFound(t *testing.T) {
	fakeClient := fake.NewSimpleClientset()

	_, err := LoadFromCluster(context.Background(), fakeClient, "test-ns", "nonexistent", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get ConfigMap")
}

func TestLoadFromCluster_ConfigMapMissingConfigKey(t *testing.T) {
	fakeClient := fake.NewSimpleClientset()
	createConfigMap(t, fakeClient, "restore-config", map[string]string{"other": "value"})

	_, err := LoadFromCluster(context.Background(), fakeClient, "test-ns", "restore-config", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "does not contain 'config' key")
}

func TestLoadFromCluster_InvalidYAML(t *testing.T) {
	fakeClient := fake.NewSimpleClientset()
	createConfigMap(t, fakeClient, "restore-config", map[string]string{"config": invalidConfigYAML})

	_, err := LoadFromCluster(context.Background(), fakeClient, "test-ns", "restore-config", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse ConfigMap config")
}

func TestLoadFromCluster_SecretNotFound(t *testing.T) {
	fakeClient := fake.NewSimpleClientset()
	createConfigMap(t, fakeClient, "restore-config", map[string]string{
		"config": loadTestData(t, "validConfigMapConfig.yaml"),
	})

	config, err := LoadFromCluster(context.Background(), fakeClient, "test-ns", "restore-config", "nonexistent-secret")
	require.NoError(t, err)
	assert.Equal(t, "restore", config.Elasticsearch.Username)
	assert.Empty(t, config.Elasticsearch.Password)
}

func TestLoadFromCluster_SecretOnly(t *testing.T) {
	fakeClient := fake.NewSimpleClientset()
	createSecret(t, fakeClient, "restore-secret", map[string][]byte{
		"config": []byte(loadTestData(t, "validSecretConfig.yaml")),
	})

	config, err := LoadFromCluster(context.Background(), fakeClient, "test-ns", "", "restore-secret")
	require.NoError(t, err)
	assert.Equal(t, "secret-password", config.Elasticsearch.Password)
}

func TestMerge_LaterLayersWin(t *testing.T) {
	base := Default()
	file, err := LoadFile(filepath.Join("testdata", "validConfigFile.yaml"))
	require.NoError(t, err)

	flags := &Config{}
	flags.Elasticsearch.Repository = "manual"

	require.NoError(t, Merge(base, file, nil, flags))

	assert.Equal(t, "https://search-logs.eu-west-1.es.amazonaws.com", base.Elasticsearch.URL)
	assert.Equal(t, "manual", base.Elasticsearch.Repository)
	assert.Equal(t, 45*time.Second, base.Elasticsearch.RequestTimeout)
	// untouched defaults survive
	assert.Equal(t, 5*time.Second, base.Elasticsearch.ConnectTimeout)
	assert.Equal(t, 9200, base.Elasticsearch.Service.Port)
	require.NoError(t, Validate(base))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		expectError   bool
		errorContains string
	}{
		{
			name:   "url set",
			mutate: func(c *Config) { c.Elasticsearch.URL = "https://some.url" },
		},
		{
			name:   "service instead of url",
			mutate: func(c *Config) { c.Elasticsearch.Service.Name = "elasticsearch-master" },
		},
		{
			name:          "neither url nor service",
			mutate:        func(*Config) {},
			expectError:   true,
			errorContains: "--url [url] is a required option",
		},
		{
			name:          "url without scheme",
			mutate:        func(c *Config) { c.Elasticsearch.URL = "some.url:9200" },
			expectError:   true,
			errorContains: "url must be in the format https://some.url",
		},
		{
			name: "empty repository",
			mutate: func(c *Config) {
				c.Elasticsearch.URL = "http://localhost:9200"
				c.Elasticsearch.Repository = ""
			},
			expectError:   true,
			errorContains: "Repository",
		},
		{
			name: "zero poll interval",
			mutate: func(c *Config) {
				c.Elasticsearch.URL = "http://localhost:9200"
				c.Restore.PollInterval = 0
			},
			expectError:   true,
			errorContains: "PollInterval",
		},
		{
			name: "port out of range",
			mutate: func(c *Config) {
				c.Elasticsearch.Service.Name = "elasticsearch-master"
				c.Elasticsearch.Service.Port = 70000
			},
			expectError:   true,
			errorContains: "Port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)

			err := Validate(config)
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInvalid)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_InvalidURLFromFile(t *testing.T) {
	config := Default()
	file, err := LoadFile(filepath.Join("testdata", "invalidUrlConfig.yaml"))
	require.NoError(t, err)
	require.NoError(t, Merge(config, file))

	err = Validate(config)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewContext(t *testing.T) {
	ctx := NewContext()
	assert.NotNil(t, ctx)
	assert.NotNil(t, ctx.Config)
}

func TestCLIConfig_Overrides(t *testing.T) {
	cli := &CLIConfig{
		URL:               "https://some.url",
		Repository:        "cs-automated",
		RequestTimeout:    10 * time.Second,
		Username:          "admin",
		ServiceName:       "es",
		ScaleDownSelector: "app=writer",
	}

	t.Run("only changed flags are applied", func(t *testing.T) {
		changed := map[string]bool{"url": true, "timeout": true}
		o := cli.Overrides(func(name string) bool { return changed[name] })

		assert.Equal(t, "https://some.url", o.Elasticsearch.URL)
		assert.Equal(t, 10*time.Second, o.Elasticsearch.RequestTimeout)
		assert.Empty(t, o.Elasticsearch.Repository)
		assert.Empty(t, o.Elasticsearch.Username)
		assert.Empty(t, o.Elasticsearch.Service.Name)
		assert.Empty(t, o.Restore.ScaleDownLabelSelector)
	})

	t.Run("all flags changed", func(t *testing.T) {
		o := cli.Overrides(func(string) bool { return true })

		assert.Equal(t, "cs-automated", o.Elasticsearch.Repository)
		assert.Equal(t, "admin", o.Elasticsearch.Username)
		assert.Equal(t, "es", o.Elasticsearch.Service.Name)
		assert.Equal(t, "app=writer", o.Restore.ScaleDownLabelSelector)
		assert.True(t, o.NeedsKubernetes(true))
		assert.False(t, o.NeedsKubernetes(false), "an explicit url needs no port-forward")
	})
}

func TestConfig_NeedsKubernetes(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		service   string
		selector  string
		restoring bool
		expected  bool
	}{
		{name: "url only", url: "https://es:9200", restoring: true},
		{name: "service without url", service: "es-master", expected: true},
		{name: "url wins over service", url: "https://es:9200", service: "es-master"},
		{name: "selector while restoring", url: "https://es:9200", selector: "app=writer", restoring: true, expected: true},
		{name: "selector while listing", url: "https://es:9200", selector: "app=writer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Elasticsearch.URL = tt.url
			cfg.Elasticsearch.Service.Name = tt.service
			cfg.Restore.ScaleDownLabelSelector = tt.selector

			assert.Equal(t, tt.expected, cfg.NeedsKubernetes(tt.restoring))
		})
	}
}

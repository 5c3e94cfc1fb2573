package k8s

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes/fake"
)

const testKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: observability
  cluster:
    server: https://kube.example.com:6443
contexts:
- name: observability
  context:
    cluster: observability
    user: restore
current-context: observability
users:
- name: restore
  user:
    token: restore-token
`

func TestNewClient_ExplicitKubeconfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kubeconfig")
	require.NoError(t, os.WriteFile(path, []byte(testKubeconfig), 0o600))

	client, err := NewClient(path, true)

	require.NoError(t, err)
	assert.Equal(t, "https://kube.example.com:6443", client.restConfig.Host)
	assert.Equal(t, "restore-token", client.restConfig.BearerToken)
	assert.True(t, client.debug)
	assert.NotNil(t, client.Clientset())
}

func TestNewClient_MissingKubeconfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist")

	_, err := NewClient(path, false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load kubeconfig "+path)
}

func TestNewTestClient(t *testing.T) {
	clientset := fake.NewSimpleClientset()

	client := NewTestClient(clientset)

	assert.Same(t, clientset, client.Clientset())
	assert.Nil(t, client.restConfig)
}

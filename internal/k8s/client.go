// Package k8s provides the Kubernetes access used around a restore:
// port-forwarding to an in-cluster Elasticsearch service and scaling index
// writers down while an index is deleted and restored.
package k8s

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps the Kubernetes clientset
type Client struct {
	clientset  kubernetes.Interface
	restConfig *rest.Config
	debug      bool
}

// Clientset returns the underlying Kubernetes clientset
func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

// NewTestClient wraps an existing clientset, typically a fake one, without a REST config.
// Port-forwarding is unavailable on such a client.
func NewTestClient(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// NewClient creates a client from kubeconfigPath, or from the standard loading rules
// ($KUBECONFIG, ~/.kube/config, in-cluster service account) when the path is empty.
func NewClient(kubeconfigPath string, debug bool) (*Client, error) {
	restConfig, err := loadRESTConfig(kubeconfigPath)
	if err != nil {
		return nil, err
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{
		clientset:  clientset,
		restConfig: restConfig,
		debug:      debug,
	}, nil
}

func loadRESTConfig(kubeconfigPath string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	rules.ExplicitPath = kubeconfigPath

	restConfig, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		if kubeconfigPath != "" {
			return nil, fmt.Errorf("failed to load kubeconfig %s: %w", kubeconfigPath, err)
		}
		return nil, fmt.Errorf("failed to load kubeconfig: %w", err)
	}
	return restConfig, nil
}

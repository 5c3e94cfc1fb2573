package k8s

import (
	"context"

	"k8s.io/client-go/kubernetes"
)

// Interface is the Kubernetes access the restore tool needs
type Interface interface {
	// Clientset exposes the API for reading the ConfigMap and Secret configuration
	Clientset() kubernetes.Interface

	PortForwardService(ctx context.Context, namespace, serviceName string, localPort, remotePort int) (stopChan chan struct{}, readyChan chan struct{}, err error)

	ScaleDownDeployments(ctx context.Context, namespace, labelSelector string) ([]DeploymentScale, error)
	ScaleUpDeployments(ctx context.Context, namespace string, deployments []DeploymentScale) error
}

var _ Interface = (*Client)(nil)

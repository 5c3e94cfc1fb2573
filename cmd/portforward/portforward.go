package portforward

import (
	"context"
	"fmt"

	"github.com/stackvista/es-restore/internal/k8s"
	"github.com/stackvista/es-restore/internal/logger"
)

// Conn contains the channels needed to manage a port-forward connection
type Conn struct {
	StopChan  chan struct{}
	ReadyChan <-chan struct{}
	LocalPort int
}

// URL is the local Elasticsearch endpoint served by the port-forward
func (c *Conn) URL() string {
	return fmt.Sprintf("http://localhost:%d", c.LocalPort)
}

// Close stops the port-forward
func (c *Conn) Close() {
	close(c.StopChan)
}

// SetupPortForward establishes a port-forward to a Kubernetes service and waits for it to be ready.
// The caller is responsible for calling Close when done.
func SetupPortForward(
	ctx context.Context,
	k8sClient k8s.Interface,
	namespace string,
	serviceName string,
	localPort int,
	remotePort int,
	log *logger.Logger,
) (*Conn, error) {
	log.Infof("Setting up port-forward to %s:%d in namespace %s...", serviceName, remotePort, namespace)

	stopChan, readyChan, err := k8sClient.PortForwardService(ctx, namespace, serviceName, localPort, remotePort)
	if err != nil {
		return nil, fmt.Errorf("failed to setup port-forward: %w", err)
	}

	select {
	case <-readyChan:
	case <-ctx.Done():
		close(stopChan)
		return nil, fmt.Errorf("port-forward to %s was not ready: %w", serviceName, ctx.Err())
	}

	log.Successf("Port-forward established successfully")

	return &Conn{
		StopChan:  stopChan,
		ReadyChan: readyChan,
		LocalPort: localPort,
	}, nil
}

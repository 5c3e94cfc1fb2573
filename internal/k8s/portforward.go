package k8s

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

// PortForwardService forwards localPort to a ready pod behind the service.
// remotePort is the service port; it is translated to the pod port the service targets.
// Closing the returned stop channel ends the forward; the ready channel closes once it listens.
func (c *Client) PortForwardService(ctx context.Context, namespace, serviceName string, localPort, remotePort int) (chan struct{}, chan struct{}, error) {
	svc, err := c.clientset.CoreV1().Services(namespace).Get(ctx, serviceName, metav1.GetOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get service %s: %w", serviceName, err)
	}
	if len(svc.Spec.Selector) == 0 {
		return nil, nil, fmt.Errorf("service %s has no pod selector", serviceName)
	}

	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labels.SelectorFromSet(svc.Spec.Selector).String(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list pods of service %s: %w", serviceName, err)
	}
	if len(pods.Items) == 0 {
		return nil, nil, fmt.Errorf("no pods found for service %s", serviceName)
	}

	pod := readyPod(pods.Items)
	if pod == nil {
		return nil, nil, fmt.Errorf("no ready pods found for service %s", serviceName)
	}

	return c.forwardPod(namespace, pod.Name, localPort, targetPort(svc, pod, remotePort))
}

func (c *Client) forwardPod(namespace, podName string, localPort, podPort int) (chan struct{}, chan struct{}, error) {
	if c.restConfig == nil {
		return nil, nil, fmt.Errorf("port-forward to pod %s requires a REST config", podName)
	}

	reqURL := c.clientset.CoreV1().RESTClient().Post().
		Namespace(namespace).
		Resource("pods").
		Name(podName).
		SubResource("portforward").
		URL()

	transport, upgrader, err := spdy.RoundTripperFor(c.restConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create round tripper: %w", err)
	}
	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, reqURL)

	var out, errOut io.Writer = io.Discard, io.Discard
	if c.debug {
		out, errOut = os.Stderr, os.Stderr
	}

	stopChan := make(chan struct{}, 1)
	readyChan := make(chan struct{})
	ports := []string{fmt.Sprintf("%d:%d", localPort, podPort)}

	fw, err := portforward.NewOnAddresses(dialer, []string{"localhost"}, ports, stopChan, readyChan, out, errOut)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create port forwarder: %w", err)
	}

	go func() {
		if err := fw.ForwardPorts(); err != nil {
			_, _ = fmt.Fprintf(errOut, "port-forward to %s/%s ended: %v\n", namespace, podName, err)
		}
	}()

	return stopChan, readyChan, nil
}

// readyPod returns the first running pod that passes its readiness checks
func readyPod(pods []corev1.Pod) *corev1.Pod {
	for i := range pods {
		pod := &pods[i]
		if pod.DeletionTimestamp != nil || pod.Status.Phase != corev1.PodRunning {
			continue
		}
		for _, cond := range pod.Status.Conditions {
			if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
				return pod
			}
		}
	}
	return nil
}

// targetPort maps a service port to the container port it routes to
func targetPort(svc *corev1.Service, pod *corev1.Pod, servicePort int) int {
	for _, port := range svc.Spec.Ports {
		if int(port.Port) != servicePort {
			continue
		}

		switch port.TargetPort.Type {
		case intstr.Int:
			if port.TargetPort.IntVal != 0 {
				return int(port.TargetPort.IntVal)
			}
		case intstr.String:
			for _, container := range pod.Spec.Containers {
				for _, cp := range container.Ports {
					if cp.Name == port.TargetPort.StrVal {
						return int(cp.ContainerPort)
					}
				}
			}
		}
	}
	return servicePort
}

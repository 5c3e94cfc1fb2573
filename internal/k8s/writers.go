package k8s

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/util/retry"
)

// OriginalReplicasAnnotation records the replica count of a writer while it is scaled down,
// so a restore interrupted before scale-up can be recovered by the next run.
const OriginalReplicasAnnotation = "es-restore.stackvista.io/original-replicas"

// DeploymentScale holds the name and original replica count of a deployment
type DeploymentScale struct {
	Name     string
	Replicas int32
}

// ScaleDownDeployments stops the deployments matching labelSelector so nothing recreates
// an index between its deletion and its restore.
//
// Deployments already at zero are skipped unless they carry OriginalReplicasAnnotation.
// On failure the deployments scaled so far are returned along with the error, so the
// caller can still bring them back.
func (c *Client) ScaleDownDeployments(ctx context.Context, namespace, labelSelector string) ([]DeploymentScale, error) {
	deployments, err := c.clientset.AppsV1().Deployments(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	scaled := []DeploymentScale{}
	for _, item := range deployments.Items {
		original, err := c.scaleDown(ctx, namespace, item.Name)
		if err != nil {
			return scaled, fmt.Errorf("failed to scale down deployment %s: %w", item.Name, err)
		}
		if original > 0 {
			scaled = append(scaled, DeploymentScale{Name: item.Name, Replicas: original})
		}
	}

	return scaled, nil
}

// scaleDown sets a deployment to zero replicas and returns the count to restore later
func (c *Client) scaleDown(ctx context.Context, namespace, name string) (int32, error) {
	var original int32
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		deployment, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return err
		}

		original = 0
		if deployment.Spec.Replicas != nil {
			original = *deployment.Spec.Replicas
		}
		if original == 0 {
			// left at zero by an interrupted restore
			if annotated, ok := deployment.Annotations[OriginalReplicasAnnotation]; ok {
				n, err := strconv.ParseInt(annotated, 10, 32)
				if err != nil {
					return fmt.Errorf("invalid %s annotation %q: %w", OriginalReplicasAnnotation, annotated, err)
				}
				original = int32(n)
			}
			return nil
		}

		if deployment.Annotations == nil {
			deployment.Annotations = map[string]string{}
		}
		deployment.Annotations[OriginalReplicasAnnotation] = strconv.Itoa(int(original))
		zero := int32(0)
		deployment.Spec.Replicas = &zero

		_, err = c.clientset.AppsV1().Deployments(namespace).Update(ctx, deployment, metav1.UpdateOptions{})
		return err
	})
	return original, err
}

// ScaleUpDeployments brings deployments back to the replica counts recorded by ScaleDownDeployments.
// Every deployment is attempted; the failures are joined into the returned error.
func (c *Client) ScaleUpDeployments(ctx context.Context, namespace string, deployments []DeploymentScale) error {
	var errs []error
	for _, scale := range deployments {
		err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
			deployment, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, scale.Name, metav1.GetOptions{})
			if err != nil {
				return err
			}

			replicas := scale.Replicas
			deployment.Spec.Replicas = &replicas
			delete(deployment.Annotations, OriginalReplicasAnnotation)

			_, err = c.clientset.AppsV1().Deployments(namespace).Update(ctx, deployment, metav1.UpdateOptions{})
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to scale up deployment %s: %w", scale.Name, err))
		}
	}

	return errors.Join(errs...)
}

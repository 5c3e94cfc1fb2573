package elasticsearch

import (
	"context"
	"fmt"

	"github.com/stackvista/es-restore/internal/k8s"
	"github.com/stackvista/es-restore/internal/logger"
	"github.com/stackvista/es-restore/internal/restore"
)

// restore runs the delete, wait, restore workflow for the requested index.
// Deployments matching the scale-down selector are stopped once the operator confirms
// and brought back when the workflow ends, whatever its outcome.
func (s *session) restore(ctx context.Context) error {
	opts := restore.Options{
		Repository:    s.cfg.Elasticsearch.Repository,
		SnapshotName:  s.cli.SnapshotName,
		Index:         s.cli.Index,
		PollInterval:  s.cfg.Restore.PollInterval,
		DeleteTimeout: s.cfg.Restore.DeleteTimeout,
	}

	var scaledDeployments []k8s.DeploymentScale
	defer func() {
		if len(scaledDeployments) > 0 {
			s.scaleUpDeployments(context.WithoutCancel(ctx), scaledDeployments)
		}
	}()

	confirm := restore.ConfirmFunc(func(prompt string) error {
		if err := confirmWithContext(ctx, s.env.Confirm, prompt); err != nil {
			return err
		}

		selector := s.cfg.Restore.ScaleDownLabelSelector
		if selector == "" {
			return nil
		}
		k8sClient, err := s.kubernetes()
		if err != nil {
			return err
		}
		scaledDeployments, err = scaleDownDeployments(ctx, k8sClient, s.cli.Namespace, selector, s.log)
		return err
	})

	var workflowOpts []restore.Option
	if s.env.Clock != nil {
		workflowOpts = append(workflowOpts, restore.WithClock(s.env.Clock))
	}

	workflow := restore.NewWorkflow(s.esClient, confirm, s.log, workflowOpts...)
	if _, err := workflow.Run(ctx, opts); err != nil {
		return err
	}
	return nil
}

// confirmWithContext stops waiting for an answer once ctx is done
func confirmWithContext(ctx context.Context, confirmer restore.Confirmer, prompt string) error {
	answer := make(chan error, 1)
	go func() {
		answer <- confirmer.Confirm(prompt)
	}()

	select {
	case err := <-answer:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", restore.ErrAborted, ctx.Err())
	}
}

// scaleDownDeployments stops the deployments matching the label selector.
// The deployments already stopped are returned even when a later one fails.
func scaleDownDeployments(ctx context.Context, k8sClient k8s.Interface, namespace, labelSelector string, log *logger.Logger) ([]k8s.DeploymentScale, error) {
	log.Infof("Scaling down deployments (selector: %s)...", labelSelector)

	scaledDeployments, err := k8sClient.ScaleDownDeployments(ctx, namespace, labelSelector)
	if err != nil {
		for _, dep := range scaledDeployments {
			log.Warningf("  - %s was stopped before the failure (replicas: %d -> 0)", dep.Name, dep.Replicas)
		}
		return scaledDeployments, fmt.Errorf("failed to scale down deployments: %w", err)
	}

	if len(scaledDeployments) == 0 {
		log.Infof("No deployments found to scale down")
	} else {
		log.Successf("Scaled down %d deployment(s):", len(scaledDeployments))
		for _, dep := range scaledDeployments {
			log.Infof("  - %s (replicas: %d -> 0)", dep.Name, dep.Replicas)
		}
	}

	return scaledDeployments, nil
}

// scaleUpDeployments restores the replica counts recorded by scaleDownDeployments
func (s *session) scaleUpDeployments(ctx context.Context, deployments []k8s.DeploymentScale) {
	s.log.Println()
	s.log.Infof("Scaling up deployments back to original replica counts...")

	k8sClient, err := s.kubernetes()
	if err != nil {
		s.log.Warningf("Failed to scale up deployments: %v", err)
		return
	}
	if err := k8sClient.ScaleUpDeployments(ctx, s.cli.Namespace, deployments); err != nil {
		s.log.Warningf("Failed to scale up deployments: %v", err)
		return
	}

	s.log.Successf("Scaled up %d deployment(s) successfully:", len(deployments))
	for _, dep := range deployments {
		s.log.Infof("  - %s (replicas: 0 -> %d)", dep.Name, dep.Replicas)
	}
}

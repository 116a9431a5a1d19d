// Package verify checks that the controller Deployment is present in the cluster.
package verify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks"
	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
)

const DefaultPollInterval = 2 * time.Second

var (
	ErrDeploymentNotFound = errors.New("controller Deployment not found")
	ErrDeploymentNotReady = errors.New("controller Deployment did not become ready")
)

type Status struct {
	Name              string
	Namespace         string
	Replicas          int32
	ReadyReplicas     int32
	AvailableReplicas int32
	Images            []string
}

func (s *Status) Ready() bool {
	return s.ReadyReplicas >= s.Replicas
}

type Verifier struct {
	K8sClient kubernetes.Interface
	Namespace string

	// WaitForReady, when positive, waits up to that long for all replicas to be ready.
	// Otherwise the Deployment existing is enough.
	WaitForReady time.Duration
	PollInterval time.Duration
}

func (m *Verifier) Verify(ctx context.Context) (*Status, error) {
	log.Println("Checking that Deployment " + m.Namespace + "/" + eks.ControllerName + " exists")
	status, err := m.status(ctx)
	if err != nil {
		return nil, err
	}
	if m.WaitForReady <= 0 || status.Ready() {
		return status, nil
	}

	log.Printf("Waiting up to %s for the controller to be ready (%d/%d replicas ready)", m.WaitForReady, status.ReadyReplicas, status.Replicas)
	interval := m.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	err = wait.PollUntilContextTimeout(ctx, interval, m.WaitForReady, false, func(ctx context.Context) (bool, error) {
		current, err := m.status(ctx)
		if err != nil {
			return false, err
		}
		status = current
		return current.Ready(), nil
	})
	if err != nil {
		if errors.Is(err, ErrDeploymentNotFound) {
			return nil, err
		}
		return status, fmt.Errorf("%w within %s (%d/%d replicas ready): %v", ErrDeploymentNotReady, m.WaitForReady, status.ReadyReplicas, status.Replicas, err)
	}
	return status, nil
}

func (m *Verifier) status(ctx context.Context) (*Status, error) {
	deployment, err := m.K8sClient.AppsV1().Deployments(m.Namespace).Get(ctx, eks.ControllerName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, fmt.Errorf("%w in namespace %s", ErrDeploymentNotFound, m.Namespace)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Deployment %s/%s: %w", m.Namespace, eks.ControllerName, err)
	}
	return statusOf(deployment), nil
}

func statusOf(deployment *appsv1.Deployment) *Status {
	status := &Status{
		Name:              deployment.Name,
		Namespace:         deployment.Namespace,
		Replicas:          1,
		ReadyReplicas:     deployment.Status.ReadyReplicas,
		AvailableReplicas: deployment.Status.AvailableReplicas,
	}
	if deployment.Spec.Replicas != nil {
		status.Replicas = *deployment.Spec.Replicas
	}
	for _, container := range deployment.Spec.Template.Spec.Containers {
		status.Images = append(status.Images, container.Image)
	}
	return status
}

// Package crds applies the controller's custom resource definitions to the cluster.
package crds

import (
	"context"
	"fmt"

	"github.com/datadog/eks-load-balancer-controller-setup/internal/runner"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/utils"
	log "github.com/sirupsen/logrus"
)

type Applier struct {
	Runner        runner.Runner
	KubectlBinary string
	Kubeconfig    string
	KubeContext   string
}

// Apply runs kubectl apply on a manifest file. Re-applying an unchanged file is a no-op.
func (m *Applier) Apply(ctx context.Context, manifestPath string) error {
	if !utils.FileExists(manifestPath) {
		return fmt.Errorf("unable to apply %s: file does not exist", manifestPath)
	}
	log.Println("Applying " + manifestPath)
	output, err := m.Runner.Run(ctx, m.kubectl(), KubectlApplyArgs(manifestPath, m.Kubeconfig, m.KubeContext)...)
	if err != nil {
		return fmt.Errorf("unable to apply %s: %w", manifestPath, err)
	}
	if output != "" {
		log.Debug(output)
	}
	return nil
}

func (m *Applier) kubectl() string {
	if m.KubectlBinary == "" {
		return "kubectl"
	}
	return m.KubectlBinary
}

// KubectlApplyArgs builds the arguments of "kubectl apply -f", forwarding the
// kubeconfig and context when they are set
func KubectlApplyArgs(manifestPath string, kubeconfig string, kubeContext string) []string {
	args := []string{"apply", "-f", manifestPath}
	if kubeconfig != "" {
		args = append(args, "--kubeconfig", kubeconfig)
	}
	if kubeContext != "" {
		args = append(args, "--context", kubeContext)
	}
	return args
}

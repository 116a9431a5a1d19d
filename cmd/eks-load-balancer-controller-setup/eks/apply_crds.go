package eks

import (
	"errors"

	"github.com/datadog/eks-load-balancer-controller-setup/internal/runner"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/crds"
	"github.com/spf13/cobra"
)

func buildApplyCRDsCommand() *cobra.Command {
	applyCRDsCommand := &cobra.Command{
		Use:                   "apply-crds [eks-cluster-name]",
		Example:               "eks-load-balancer-controller-setup eks apply-crds my-cluster --crds-manifest crds.yaml",
		Short:                 "Apply the controller CRD manifest with kubectl",
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doApplyCRDsCommand(cmd)
		},
	}

	return applyCRDsCommand
}

func doApplyCRDsCommand(cmd *cobra.Command) error {
	manifestPath := cfg.ResolvedCRDsManifest()
	if manifestPath == "" {
		return errors.New("no CRD manifest configured, use --crds-manifest or LB_CONTROLLER_CRDS_MANIFEST")
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	applier := &crds.Applier{
		Runner:        runner.NewExecRunner(cfg.Kubeconfig),
		KubectlBinary: cfg.KubectlBinary,
		Kubeconfig:    cfg.KubeconfigFile(),
		KubeContext:   cfg.KubeContext,
	}
	return applier.Apply(ctx, manifestPath)
}

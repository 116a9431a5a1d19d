package eks

import (
	"fmt"

	"github.com/datadog/eks-load-balancer-controller-setup/internal/utils"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/verify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func buildVerifyCommand() *cobra.Command {
	verifyCommand := &cobra.Command{
		Use:                   "verify [eks-cluster-name]",
		Example:               "eks-load-balancer-controller-setup eks verify my-cluster --wait-for-ready 2m",
		Short:                 "Check that the controller Deployment exists",
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doVerifyCommand(cmd)
		},
	}

	return verifyCommand
}

func doVerifyCommand(cmd *cobra.Command) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	kubeConfig, err := utils.KubeConfig(cfg.Kubeconfig, cfg.KubeContext)
	if err != nil {
		return err
	}
	k8sClient, err := utils.K8sClient(kubeConfig)
	if err != nil {
		return err
	}
	verifier := &verify.Verifier{K8sClient: k8sClient, Namespace: cfg.ResolvedNamespace(), WaitForReady: cfg.WaitForReady}
	status, err := verifier.Verify(ctx)
	if status != nil {
		printStatus(status)
	}
	return err
}

func printStatus(status *verify.Status) {
	t := newTable()
	t.AppendHeader(table.Row{"Deployment", "Ready", "Available", "Images"})
	t.AppendRow(table.Row{
		status.Namespace + "/" + status.Name,
		readiness(status.ReadyReplicas, status.Replicas),
		fmt.Sprintf("%d", status.AvailableReplicas),
		joinLines(status.Images),
	})
	t.Render()
}

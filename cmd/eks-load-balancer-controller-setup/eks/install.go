package eks

import (
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/workflow"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func buildInstallCommand() *cobra.Command {
	installCommand := &cobra.Command{
		Use:     "install [eks-cluster-name]",
		Example: "eks-load-balancer-controller-setup eks install my-cluster --image 602401143452.dkr.ecr.us-east-1.amazonaws.com/amazon/aws-load-balancer-controller",
		Short:   "Provision the IAM policy and service account, then install and verify the controller",
		Long: "install runs every step in order: it ensures the IAM policy and the IRSA service account exist, " +
			"applies the CRDs when configured, installs the controller with Helm and checks that its Deployment exists. " +
			"The first failing step stops the run; resources created by earlier steps are kept.",
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return doInstallCommand(cmd)
		},
	}

	return installCommand
}

func doInstallCommand(cmd *cobra.Command) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	clients, err := buildClients(ctx)
	if err != nil {
		return err
	}
	summary, err := (&workflow.Workflow{Config: cfg, Components: clients}).Run(ctx)
	printSummary(summary)
	return err
}

func printSummary(summary *workflow.Summary) {
	if summary == nil || summary.Cluster == nil {
		return
	}
	t := newTable()
	t.AppendHeader(table.Row{"Step", "Resource", "Result"})
	t.AppendRow(table.Row{workflow.StepPreflight, summary.Cluster.Name, "account " + summary.Cluster.AccountID + ", " + summary.Cluster.VpcID})
	if summary.Policy != nil {
		t.AppendRow(table.Row{workflow.StepPolicy, summary.Policy.Arn, outcome(summary.Policy.Created)})
	}
	if summary.ServiceAccount != nil {
		t.AppendRow(table.Row{workflow.StepServiceAccount, summary.ServiceAccount.Namespace + "/" + summary.ServiceAccount.Name, outcome(summary.ServiceAccount.Created)})
	}
	if summary.CRDsManifest != "" {
		t.AppendRow(table.Row{workflow.StepCRDs, summary.CRDsManifest, "applied"})
	}
	if summary.Install != nil {
		result := "installed with strategy " + summary.Install.Strategy
		if summary.Install.RenderedManifest != "" {
			result += " (" + summary.Install.RenderedManifest + ")"
		}
		t.AppendRow(table.Row{workflow.StepInstall, summary.Install.Namespace + "/" + summary.Install.Release, result})
	}
	if summary.Verify != nil {
		t.AppendRow(table.Row{workflow.StepVerify, summary.Verify.Namespace + "/" + summary.Verify.Name, readiness(summary.Verify.ReadyReplicas, summary.Verify.Replicas) + " replicas ready"})
	}
	t.Render()
}

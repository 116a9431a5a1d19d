package eks

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func buildEnsurePolicyCommand() *cobra.Command {
	ensurePolicyCommand := &cobra.Command{
		Use:                   "ensure-policy [eks-cluster-name]",
		Example:               "eks-load-balancer-controller-setup eks ensure-policy my-cluster",
		Short:                 "Create the controller IAM policy if it does not exist",
		Long:                  "ensure-policy looks for the customer-managed policy AWSLoadBalancerControllerIAMPolicy-<cluster> and creates it from the pinned policy document when it is missing. Existing policies are never updated.",
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.ValidateCluster()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return doEnsurePolicyCommand(cmd)
		},
	}

	return ensurePolicyCommand
}

func doEnsurePolicyCommand(cmd *cobra.Command) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	clients, err := buildClients(ctx)
	if err != nil {
		return err
	}
	info, err := clients.Inspector().Inspect(ctx, cfg.ClusterName)
	if err != nil {
		return err
	}
	result, err := clients.PolicyEnsurer(info).Ensure(ctx)
	if err != nil {
		return err
	}
	log.Println("IAM policy " + result.Arn + ": " + outcome(result.Created))
	return nil
}

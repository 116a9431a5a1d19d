package eks

import (
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func buildEnsureServiceAccountCommand() *cobra.Command {
	ensureServiceAccountCommand := &cobra.Command{
		Use:     "ensure-service-account [eks-cluster-name]",
		Example: "eks-load-balancer-controller-setup eks ensure-service-account my-cluster --service-account-naming fixed",
		Short:   "Create the controller service account bound to its IAM role if it does not exist",
		Long: "ensure-service-account creates the controller service account with eksctl, bound to the role " +
			"AmazonEKSLoadBalancerControllerRole-<cluster> with the controller IAM policy attached. " +
			"The policy must already exist, see ensure-policy. An existing service account is left untouched, " +
			"but a warning is printed when its IAM role cannot be assumed by it.",
		Args:                  cobra.MaximumNArgs(1),
		DisableFlagsInUseLine: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cfg.ValidateCluster()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return doEnsureServiceAccountCommand(cmd)
		},
	}

	return ensureServiceAccountCommand
}

func doEnsureServiceAccountCommand(cmd *cobra.Command) error {
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
	policyArn := eks.PolicyARN(info.Partition, info.AccountID, eks.PolicyName(info.Name))
	result, err := clients.ServiceAccountEnsurer(info, policyArn).Ensure(ctx)
	if err != nil {
		return err
	}
	log.Println("Service account " + result.Namespace + "/" + result.Name + " (role " + result.RoleArn + "): " + outcome(result.Created))
	return nil
}

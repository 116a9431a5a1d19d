package eks

import (
	"context"
	"errors"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/config"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/runner"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/utils"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/workflow"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Commands carrying this annotation work on local files only
const offlineAnnotation = "offline"

var ignoreEksHostnameCheck bool

// cfg holds the environment configuration, overridden by command-line flags
var cfg = &config.Config{}
var cfgErr error

func BuildEksSubcommand() *cobra.Command {
	loaded, err := config.Load()
	if err == nil {
		cfg = loaded
	}
	cfgErr = err

	eksCommand := &cobra.Command{
		Use:   "eks",
		Short: "Commands to set up the AWS Load Balancer Controller on your EKS cluster",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// cobra only runs the closest persistent pre-run
			if root := cmd.Root(); root.PersistentPreRun != nil {
				root.PersistentPreRun(cmd, args)
			}
			figure.NewFigure("lbc setup", "", true).Print()
			println()
			if cfgErr != nil {
				return cfgErr
			}
			if len(args) == 1 && cmd.Annotations[offlineAnnotation] == "" {
				cfg.ClusterName = args[0]
			}
			if cmd.Annotations[offlineAnnotation] != "" || ignoreEksHostnameCheck {
				return nil
			}
			kubeConfig, err := utils.KubeConfig(cfg.Kubeconfig, cfg.KubeContext)
			if err != nil {
				return err
			}
			if !utils.IsEKS(kubeConfig) {
				return errors.New("you do not seem to be connected to an EKS cluster. Connect to an EKS cluster and try again")
			}
			log.Println("Connected to " + kubeConfig.Host)
			return nil
		},
	}

	eksCommand.PersistentFlags().BoolVarP(&ignoreEksHostnameCheck, "skip-eks-hostname-check", "", false, "Don't check that the hostname of your current API server ends with .eks.amazonaws.com")
	addConfigFlags(eksCommand.PersistentFlags())

	eksCommand.AddCommand(buildInstallCommand())
	eksCommand.AddCommand(buildEnsurePolicyCommand())
	eksCommand.AddCommand(buildEnsureServiceAccountCommand())
	eksCommand.AddCommand(buildApplyCRDsCommand())
	eksCommand.AddCommand(buildPatchImageCommand())
	eksCommand.AddCommand(buildVerifyCommand())

	return eksCommand
}

// addConfigFlags binds flags to the configuration, using the environment values as defaults
func addConfigFlags(flags *pflag.FlagSet) {
	flags.StringVar(&cfg.ClusterName, "cluster-name", cfg.ClusterName, "Name of the EKS cluster (CLUSTER_NAME), also accepted as positional argument")
	flags.StringVar(&cfg.Region, "region", cfg.Region, "AWS region of the cluster (AWS_REGION)")
	flags.StringVar(&cfg.AccountID, "account-id", cfg.AccountID, "AWS account ID, looked up with STS when empty (AWS_ACCOUNT_ID)")
	flags.StringVar(&cfg.VpcID, "vpc-id", cfg.VpcID, "VPC of the cluster, looked up with EKS when empty (VPC_ID)")
	flags.StringVar(&cfg.ControllerImage, "image", cfg.ControllerImage, "Controller image repository, optionally with a tag (LB_CONTROLLER_IMAGE)")
	flags.StringVar(&cfg.ImageTag, "image-tag", cfg.ImageTag, "Controller image tag used when --image has none (LB_CONTROLLER_IMAGE_TAG)")
	flags.StringVar(&cfg.Namespace, "namespace", cfg.Namespace, "Namespace of the controller (LB_CONTROLLER_NAMESPACE)")
	flags.StringVar(&cfg.ServiceAccountNaming, "service-account-naming", cfg.ServiceAccountNaming, "Service account naming scheme: fixed or cluster-suffixed (LB_CONTROLLER_SA_NAMING)")
	flags.StringVar(&cfg.ServiceAccountName, "service-account-name", cfg.ServiceAccountName, "Service account name, overrides the naming scheme (LB_CONTROLLER_SA_NAME)")
	flags.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "Installation strategy: direct or render (LB_CONTROLLER_INSTALL_STRATEGY)")
	flags.StringVar(&cfg.ChartVersion, "chart-version", cfg.ChartVersion, "Version of the Helm chart (LB_CONTROLLER_CHART_VERSION)")
	flags.StringVar(&cfg.ChartRepository, "chart-repository", cfg.ChartRepository, "URL of the Helm chart repository (LB_CONTROLLER_CHART_REPOSITORY)")
	flags.StringSliceVar(&cfg.ValuesFiles, "values", cfg.ValuesFiles, "Additional Helm values files (LB_CONTROLLER_VALUES_FILES)")
	flags.StringVar(&cfg.CRDsManifest, "crds-manifest", cfg.CRDsManifest, "CRD manifest to apply before installing (LB_CONTROLLER_CRDS_MANIFEST)")
	flags.StringVar(&cfg.RenderedManifest, "rendered-manifest", cfg.RenderedManifest, "Where the render strategy writes the manifest (LB_CONTROLLER_RENDERED_MANIFEST)")
	flags.BoolVar(&cfg.StrictImagePatch, "strict-image-patch", cfg.StrictImagePatch, "Fail when the controller image cannot be set in the rendered manifest (LB_CONTROLLER_STRICT_IMAGE_PATCH)")
	flags.StringVar(&cfg.PolicyDocumentURL, "policy-url", cfg.PolicyDocumentURL, "URL of the IAM policy document (LB_CONTROLLER_POLICY_URL)")
	flags.StringVar(&cfg.PolicyDocumentFile, "policy-file", cfg.PolicyDocumentFile, "Local IAM policy document, used instead of --policy-url (LB_CONTROLLER_POLICY_FILE)")
	flags.StringVar(&cfg.Kubeconfig, "kubeconfig", cfg.Kubeconfig, "Path to the kubeconfig file (KUBECONFIG)")
	flags.StringVar(&cfg.KubeContext, "context", cfg.KubeContext, "Kubeconfig context to use (KUBE_CONTEXT)")
	flags.DurationVar(&cfg.HelmTimeout, "helm-timeout", cfg.HelmTimeout, "How long helm waits for the release (HELM_TIMEOUT)")
	flags.DurationVar(&cfg.WaitForReady, "wait-for-ready", cfg.WaitForReady, "Wait up to this long for the controller to be ready, 0 only checks it exists (LB_CONTROLLER_WAIT_FOR_READY)")
}

// buildClients connects to AWS and to the cluster
func buildClients(ctx context.Context) (*workflow.Clients, error) {
	awsClient, err := utils.AWSClient(ctx, cfg.Region)
	if err != nil {
		return nil, err
	}
	kubeConfig, err := utils.KubeConfig(cfg.Kubeconfig, cfg.KubeContext)
	if err != nil {
		return nil, err
	}
	k8sClient, err := utils.K8sClient(kubeConfig)
	if err != nil {
		return nil, err
	}
	return &workflow.Clients{
		AwsClient: awsClient,
		K8sClient: k8sClient,
		Runner:    runner.NewExecRunner(cfg.Kubeconfig),
		Config:    cfg,
	}, nil
}

// commandContext bounds a command by the slowest thing it may wait for
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), cfg.HelmTimeout+cfg.WaitForReady+10*time.Minute)
}

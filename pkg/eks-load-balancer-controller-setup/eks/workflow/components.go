package workflow

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/config"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/runner"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/cluster"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/crds"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/install"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/policy"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/serviceaccount"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/verify"
	"k8s.io/client-go/kubernetes"
)

type ClusterInspector interface {
	Inspect(ctx context.Context, clusterName string) (*cluster.ClusterInfo, error)
}

type PolicyEnsurer interface {
	Ensure(ctx context.Context) (*policy.Result, error)
}

type ServiceAccountEnsurer interface {
	Ensure(ctx context.Context) (*serviceaccount.Result, error)
}

type CRDApplier interface {
	Apply(ctx context.Context, manifestPath string) error
}

type ControllerInstaller interface {
	Install(ctx context.Context) (*install.Result, error)
}

type InstallationVerifier interface {
	Verify(ctx context.Context) (*verify.Status, error)
}

// Components builds each step once the results it depends on are known
type Components interface {
	Inspector() ClusterInspector
	PolicyEnsurer(info *cluster.ClusterInfo) PolicyEnsurer
	ServiceAccountEnsurer(info *cluster.ClusterInfo, policyArn string) ServiceAccountEnsurer
	CRDApplier() CRDApplier
	Installer(info *cluster.ClusterInfo) (ControllerInstaller, error)
	Verifier() InstallationVerifier
}

// Clients builds the real components from the AWS, Kubernetes and process clients
type Clients struct {
	AwsClient *aws.Config
	K8sClient kubernetes.Interface
	Runner    runner.Runner
	Config    *config.Config
}

func (c *Clients) Inspector() ClusterInspector {
	return cluster.NewInspector(c.AwsClient, c.Config.AccountID)
}

func (c *Clients) PolicyEnsurer(info *cluster.ClusterInfo) PolicyEnsurer {
	ensurer := policy.NewEnsurer(c.AwsClient, info.Name, info.AccountID)
	ensurer.Partition = info.Partition
	ensurer.DocumentURL = c.Config.PolicyDocumentURL
	ensurer.DocumentFile = c.Config.PolicyDocumentFile
	return ensurer
}

func (c *Clients) ServiceAccountEnsurer(info *cluster.ClusterInfo, policyArn string) ServiceAccountEnsurer {
	return &serviceaccount.Ensurer{
		K8sClient:    c.K8sClient,
		Runner:       c.Runner,
		IAM:          iam.NewFromConfig(*c.AwsClient),
		EksctlBinary: c.Config.EksctlBinary,
		Cluster:      info,
		Region:       c.Config.Region,
		Namespace:    c.Config.ResolvedNamespace(),
		Name:         c.Config.ResolvedServiceAccountName(),
		PolicyArn:    policyArn,
	}
}

func (c *Clients) CRDApplier() CRDApplier {
	return &crds.Applier{
		Runner:        c.Runner,
		KubectlBinary: c.Config.KubectlBinary,
		Kubeconfig:    c.Config.KubeconfigFile(),
		KubeContext:   c.Config.KubeContext,
	}
}

func (c *Clients) Installer(info *cluster.ClusterInfo) (ControllerInstaller, error) {
	values, err := ChartValues(c.Config, info)
	if err != nil {
		return nil, err
	}
	return install.NewInstaller(c.Config, c.Runner, *values), nil
}

func (c *Clients) Verifier() InstallationVerifier {
	return &verify.Verifier{
		K8sClient:    c.K8sClient,
		Namespace:    c.Config.ResolvedNamespace(),
		WaitForReady: c.Config.WaitForReady,
	}
}

// ChartValues computes the chart values from the configuration and the cluster.
// The VPC comes from the cluster unless configured. Image digests cannot be
// expressed as chart values, the render strategy patches them into the manifest
// instead.
func ChartValues(cfg *config.Config, info *cluster.ClusterInfo) (*install.ChartValues, error) {
	values := &install.ChartValues{
		ClusterName:        info.Name,
		Region:             cfg.Region,
		VpcID:              cfg.VpcID,
		ServiceAccountName: cfg.ResolvedServiceAccountName(),
	}
	if values.VpcID == "" {
		values.VpcID = info.VpcID
	}
	repository, tag, err := cfg.ImageRepositoryAndTag()
	switch {
	case err == nil:
		values.ImageRepository = repository
		values.ImageTag = tag
	case cfg.Strategy == config.StrategyRender:
		// the rendered manifest gets the full reference
	default:
		return nil, err
	}
	return values, nil
}

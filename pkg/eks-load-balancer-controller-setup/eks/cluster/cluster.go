// Package cluster gathers the information about the target EKS cluster that the
// other setup steps depend on.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	awseks "github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// MinSupportedK8sVersion is the oldest Kubernetes version the pinned controller release supports
const MinSupportedK8sVersion = "1.22"

var ErrNoOIDCIssuer = errors.New("cluster has no OIDC issuer, IAM roles for service accounts cannot be used")

type EKSAPI interface {
	DescribeCluster(ctx context.Context, params *awseks.DescribeClusterInput, optFns ...func(*awseks.Options)) (*awseks.DescribeClusterOutput, error)
}

type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

type ClusterInfo struct {
	Name              string
	AccountID         string
	Partition         string
	IssuerURL         string // with the https:// scheme, as returned by EKS
	VpcID             string
	KubernetesVersion string // e.g. "1.27"
}

// Issuer returns the issuer URL without its scheme, as used in IAM condition keys
func (c *ClusterInfo) Issuer() string {
	return strings.TrimPrefix(c.IssuerURL, "https://")
}

type Inspector struct {
	EKS EKSAPI
	STS STSAPI

	// AccountID skips the STS lookup when set
	AccountID string
}

func NewInspector(awsConfig *aws.Config, accountID string) *Inspector {
	return &Inspector{
		EKS:       awseks.NewFromConfig(*awsConfig),
		STS:       sts.NewFromConfig(*awsConfig),
		AccountID: accountID,
	}
}

func (m *Inspector) Inspect(ctx context.Context, clusterName string) (*ClusterInfo, error) {
	log.Println("Retrieving cluster information for " + clusterName)
	output, err := m.EKS.DescribeCluster(ctx, &awseks.DescribeClusterInput{Name: &clusterName})
	if err != nil {
		return nil, fmt.Errorf("unable to describe EKS cluster %s: %w", clusterName, err)
	}
	cluster := output.Cluster
	if cluster == nil {
		return nil, fmt.Errorf("EKS cluster %s returned no description", clusterName)
	}
	if cluster.Identity == nil || cluster.Identity.Oidc == nil || aws.ToString(cluster.Identity.Oidc.Issuer) == "" {
		return nil, fmt.Errorf("%s: %w", clusterName, ErrNoOIDCIssuer)
	}

	info := &ClusterInfo{
		Name:              clusterName,
		Partition:         "aws",
		IssuerURL:         aws.ToString(cluster.Identity.Oidc.Issuer),
		KubernetesVersion: aws.ToString(cluster.Version),
	}
	if cluster.ResourcesVpcConfig != nil {
		info.VpcID = aws.ToString(cluster.ResourcesVpcConfig.VpcId)
	}
	if parsedClusterArn, err := arn.Parse(aws.ToString(cluster.Arn)); err == nil {
		info.Partition = parsedClusterArn.Partition
	}

	accountID, err := m.resolveAccountID(ctx)
	if err != nil {
		return nil, err
	}
	info.AccountID = accountID

	if !SupportsController(info.KubernetesVersion) {
		log.Warnf("Cluster %s runs Kubernetes %s, the controller requires at least %s", clusterName, info.KubernetesVersion, MinSupportedK8sVersion)
	}
	log.Debugf("Cluster %s: account %s, VPC %s, issuer %s", clusterName, info.AccountID, info.VpcID, info.IssuerURL)
	return info, nil
}

func (m *Inspector) resolveAccountID(ctx context.Context) (string, error) {
	if m.AccountID != "" {
		return m.AccountID, nil
	}
	log.Println("Retrieving AWS account ID")
	identity, err := m.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("unable to retrieve the current AWS account ID: %w", err)
	}
	accountID := aws.ToString(identity.Account)
	if accountID == "" {
		return "", errors.New("unable to retrieve the current AWS account ID: empty response")
	}
	return accountID, nil
}

// SupportsController reports whether a Kubernetes version can run the controller.
// Unparseable versions are assumed to be supported.
func SupportsController(kubernetesVersion string) bool {
	currentVersion, err := version.NewVersion(kubernetesVersion)
	if err != nil {
		return true
	}
	return currentVersion.GreaterThanOrEqual(version.Must(version.NewVersion(MinSupportedK8sVersion)))
}

package eks

import (
	"github.com/aws/aws-sdk-go-v2/aws/arn"
)

const (
	// ControllerName is shared by the Helm release, the chart, the Deployment and its container
	ControllerName = "aws-load-balancer-controller"
	ChartName      = "eks/" + ControllerName
	ChartRepoName  = "eks"

	DefaultNamespace = "kube-system"

	// IRSARoleAnnotation is set by eksctl on service accounts bound to an IAM role
	IRSARoleAnnotation = "eks.amazonaws.com/role-arn"
	IRSAAudience       = "sts.amazonaws.com"

	policyNamePrefix = "AWSLoadBalancerControllerIAMPolicy-"
	roleNamePrefix   = "AmazonEKSLoadBalancerControllerRole-"
)

type ServiceAccountNaming string

const (
	ServiceAccountNamingFixed           ServiceAccountNaming = "fixed"
	ServiceAccountNamingClusterSuffixed ServiceAccountNaming = "cluster-suffixed"
)

var AvailableServiceAccountNamings = []string{
	string(ServiceAccountNamingFixed),
	string(ServiceAccountNamingClusterSuffixed),
}

// Existence is the answer of an existence query that did not fail
type Existence int

const (
	Absent Existence = iota
	Exists
)

func (e Existence) String() string {
	if e == Exists {
		return "exists"
	}
	return "absent"
}

func PolicyName(clusterName string) string {
	return policyNamePrefix + clusterName
}

func RoleName(clusterName string) string {
	return roleNamePrefix + clusterName
}

// PolicyARN builds the ARN of a customer-managed policy, partition defaults to "aws"
func PolicyARN(partition string, accountID string, policyName string) string {
	if partition == "" {
		partition = "aws"
	}
	return arn.ARN{
		Partition: partition,
		Service:   "iam",
		AccountID: accountID,
		Resource:  "policy/" + policyName,
	}.String()
}

func ServiceAccountName(naming ServiceAccountNaming, clusterName string) string {
	if naming == ServiceAccountNamingFixed {
		return ControllerName
	}
	return ControllerName + "-" + clusterName
}

// ServiceAccountSubject is the OIDC "sub" claim of a projected service account token
func ServiceAccountSubject(namespace string, name string) string {
	return "system:serviceaccount:" + namespace + ":" + name
}

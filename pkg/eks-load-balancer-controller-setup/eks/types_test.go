package eks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamingIsDerivedFromClusterName(t *testing.T) {
	scenarios := []struct {
		Name               string
		ClusterName        string
		ExpectedPolicyName string
		ExpectedRoleName   string
	}{
		{"simple cluster name", "prod", "AWSLoadBalancerControllerIAMPolicy-prod", "AmazonEKSLoadBalancerControllerRole-prod"},
		{"cluster name with dashes", "my-eks-cluster", "AWSLoadBalancerControllerIAMPolicy-my-eks-cluster", "AmazonEKSLoadBalancerControllerRole-my-eks-cluster"},
		{"empty cluster name", "", "AWSLoadBalancerControllerIAMPolicy-", "AmazonEKSLoadBalancerControllerRole-"},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			assert.Equal(t, scenario.ExpectedPolicyName, PolicyName(scenario.ClusterName))
			assert.Equal(t, scenario.ExpectedRoleName, RoleName(scenario.ClusterName))
			// calling twice yields the same result
			assert.Equal(t, PolicyName(scenario.ClusterName), PolicyName(scenario.ClusterName))
		})
	}
}

func TestPolicyARN(t *testing.T) {
	scenarios := []struct {
		Name        string
		Partition   string
		ExpectedArn string
	}{
		{"commercial partition", "aws", "arn:aws:iam::012345678901:policy/AWSLoadBalancerControllerIAMPolicy-prod"},
		{"china partition", "aws-cn", "arn:aws-cn:iam::012345678901:policy/AWSLoadBalancerControllerIAMPolicy-prod"},
		{"govcloud partition", "aws-us-gov", "arn:aws-us-gov:iam::012345678901:policy/AWSLoadBalancerControllerIAMPolicy-prod"},
		{"unknown partition falls back to aws", "", "arn:aws:iam::012345678901:policy/AWSLoadBalancerControllerIAMPolicy-prod"},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			assert.Equal(t, scenario.ExpectedArn, PolicyARN(scenario.Partition, "012345678901", PolicyName("prod")))
		})
	}
}

func TestServiceAccountName(t *testing.T) {
	assert.Equal(t, "aws-load-balancer-controller", ServiceAccountName(ServiceAccountNamingFixed, "prod"))
	assert.Equal(t, "aws-load-balancer-controller-prod", ServiceAccountName(ServiceAccountNamingClusterSuffixed, "prod"))
}

func TestServiceAccountSubject(t *testing.T) {
	assert.Equal(t, "system:serviceaccount:kube-system:my-sa", ServiceAccountSubject("kube-system", "my-sa"))
}

func TestExistenceString(t *testing.T) {
	assert.Equal(t, "exists", Exists.String())
	assert.Equal(t, "absent", Absent.String())
}

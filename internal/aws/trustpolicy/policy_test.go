package trustpolicy

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issuer = "oidc.eks.us-east-1.amazonaws.com/id/ABC123"
const providerArn = "arn:aws:iam::111122223333:oidc-provider/" + issuer

func irsaTrustPolicy(subjectOperator string, subject string) string {
	return `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Federated": "` + providerArn + `"},
      "Action": "sts:AssumeRoleWithWebIdentity",
      "Condition": {
        "` + subjectOperator + `": {"` + issuer + `:sub": "` + subject + `"},
        "StringEquals": {"` + issuer + `:aud": "sts.amazonaws.com"}
      }
    }
  ]
}`
}

func TestParse(t *testing.T) {
	scenarios := []struct {
		Name          string
		Document      string
		ExpectError   bool
		ExpectedCount int
	}{
		{Name: "list of statements", Document: irsaTrustPolicy("StringEquals", "system:serviceaccount:kube-system:x"), ExpectedCount: 1},
		{Name: "single statement object", Document: `{"Statement": {"Effect": "Allow", "Action": ["sts:AssumeRole"], "Principal": "*"}}`, ExpectedCount: 1},
		{Name: "url-encoded document", Document: url.QueryEscape(`{"Statement": [{"Effect": "Deny", "Action": "*", "Principal": "*"}]}`), ExpectedCount: 1},
		{Name: "invalid JSON", Document: `{"Statement": [`, ExpectError: true},
		{Name: "invalid effect", Document: `{"Statement": [{"Effect": "Maybe", "Action": "*", "Principal": "*"}]}`, ExpectError: true},
		{Name: "invalid principal", Document: `{"Statement": [{"Effect": "Allow", "Action": "*", "Principal": "someone"}]}`, ExpectError: true},
		{Name: "non-string action", Document: `{"Statement": [{"Effect": "Allow", "Action": 12, "Principal": "*"}]}`, ExpectError: true},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			policy, err := Parse(scenario.Document)
			if scenario.ExpectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, policy.Statements, scenario.ExpectedCount)
		})
	}
}

func TestAllowsServiceAccount(t *testing.T) {
	scenarios := []struct {
		Name     string
		Document string
		Subject  string
		Audience string
		Expected bool
	}{
		{
			Name:     "exact subject match",
			Document: irsaTrustPolicy("StringEquals", "system:serviceaccount:kube-system:aws-load-balancer-controller"),
			Subject:  "system:serviceaccount:kube-system:aws-load-balancer-controller",
			Audience: "sts.amazonaws.com",
			Expected: true,
		},
		{
			Name:     "different service account",
			Document: irsaTrustPolicy("StringEquals", "system:serviceaccount:kube-system:aws-load-balancer-controller"),
			Subject:  "system:serviceaccount:default:other",
			Audience: "sts.amazonaws.com",
			Expected: false,
		},
		{
			Name:     "wrong audience",
			Document: irsaTrustPolicy("StringEquals", "system:serviceaccount:kube-system:aws-load-balancer-controller"),
			Subject:  "system:serviceaccount:kube-system:aws-load-balancer-controller",
			Audience: "something-else",
			Expected: false,
		},
		{
			Name:     "wildcard subject in namespace",
			Document: irsaTrustPolicy("StringLike", "system:serviceaccount:kube-system:*"),
			Subject:  "system:serviceaccount:kube-system:aws-load-balancer-controller",
			Audience: "sts.amazonaws.com",
			Expected: true,
		},
		{
			Name:     "wildcard subject does not cross namespaces",
			Document: irsaTrustPolicy("StringLike", "system:serviceaccount:kube-system:*"),
			Subject:  "system:serviceaccount:default:aws-load-balancer-controller",
			Audience: "sts.amazonaws.com",
			Expected: false,
		},
		{
			Name:     "case insensitive subject match",
			Document: irsaTrustPolicy("StringEqualsIgnoreCase", "system:serviceaccount:kube-system:AWS-Load-Balancer-Controller"),
			Subject:  "system:serviceaccount:kube-system:aws-load-balancer-controller",
			Audience: "sts.amazonaws.com",
			Expected: true,
		},
		{
			Name:     "subject condition with set operator prefix",
			Document: irsaTrustPolicy("ForAnyValue:StringLike", "system:serviceaccount:kube-system:aws-*"),
			Subject:  "system:serviceaccount:kube-system:aws-load-balancer-controller",
			Audience: "sts.amazonaws.com",
			Expected: true,
		},
		{
			Name: "explicit deny wins",
			Document: `{"Statement": [
				{"Effect": "Allow", "Principal": {"Federated": "` + providerArn + `"}, "Action": "sts:*"},
				{"Effect": "Deny", "Principal": "*", "Action": "sts:AssumeRoleWithWebIdentity"}
			]}`,
			Subject:  "system:serviceaccount:kube-system:aws-load-balancer-controller",
			Audience: "sts.amazonaws.com",
			Expected: false,
		},
		{
			Name:     "trust for another principal type only",
			Document: `{"Statement": [{"Effect": "Allow", "Principal": {"Service": "ec2.amazonaws.com"}, "Action": "sts:AssumeRole"}]}`,
			Subject:  "system:serviceaccount:kube-system:aws-load-balancer-controller",
			Audience: "sts.amazonaws.com",
			Expected: false,
		},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			policy, err := Parse(scenario.Document)
			require.NoError(t, err)
			allowed := policy.AllowsServiceAccount(providerArn, "https://"+issuer, scenario.Subject, scenario.Audience)
			assert.Equal(t, scenario.Expected, allowed)
		})
	}
}

func TestOIDCProviderArn(t *testing.T) {
	assert.Equal(t, providerArn, OIDCProviderArn("aws", "111122223333", "https://"+issuer))
}

package trustpolicy

import (
	"fmt"
	"strings"
)

const AssumeRoleWithWebIdentity = "sts:AssumeRoleWithWebIdentity"

// AllowsServiceAccount reports whether the trust policy lets the Kubernetes
// service account identified by subject (system:serviceaccount:<ns>:<name>)
// assume the role through the cluster's OIDC provider.
func (p *Policy) AllowsServiceAccount(oidcProviderArn string, issuerURL string, subject string, audience string) bool {
	issuer := strings.TrimPrefix(strings.TrimPrefix(issuerURL, "https://"), "http://")
	return p.Evaluate(&Request{
		Action:    AssumeRoleWithWebIdentity,
		Principal: Principal{Type: PrincipalTypeFederated, ID: oidcProviderArn},
		ContextKeys: map[string]string{
			fmt.Sprintf("%s:sub", issuer): subject,
			fmt.Sprintf("%s:aud", issuer): audience,
		},
	}) == DecisionAllow
}

// OIDCProviderArn builds the ARN of the IAM OIDC provider registered for an issuer
func OIDCProviderArn(partition string, accountID string, issuerURL string) string {
	issuer := strings.TrimPrefix(strings.TrimPrefix(issuerURL, "https://"), "http://")
	return fmt.Sprintf("arn:%s:iam::%s:oidc-provider/%s", partition, accountID, issuer)
}

// Package serviceaccount makes sure the controller's Kubernetes service account
// exists and is bound to an IAM role through IAM Roles for Service Accounts (IRSA).
package serviceaccount

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/arn"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/smithy-go"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/aws/trustpolicy"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/runner"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/cluster"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

var ErrExistenceQueryFailed = errors.New("unable to determine whether the service account exists")

type IAMAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
}

type Result struct {
	Name      string
	Namespace string
	RoleArn   string
	Created   bool
}

type Ensurer struct {
	K8sClient kubernetes.Interface
	Runner    runner.Runner
	IAM       IAMAPI // optional, enables the trust policy check of existing service accounts

	EksctlBinary string
	Cluster      *cluster.ClusterInfo
	Region       string
	Namespace    string
	Name         string
	PolicyArn    string
}

// Exists answers whether the service account is present. Failures other than
// NotFound are returned as errors and are never reported as absence.
func (m *Ensurer) Exists(ctx context.Context) (eks.Existence, error) {
	_, err := m.get(ctx)
	switch {
	case err == nil:
		return eks.Exists, nil
	case apierrors.IsNotFound(err):
		return eks.Absent, nil
	default:
		return eks.Absent, fmt.Errorf("%w %s/%s: %w", ErrExistenceQueryFailed, m.Namespace, m.Name, err)
	}
}

func (m *Ensurer) Ensure(ctx context.Context) (*Result, error) {
	log.Println("Checking if service account " + m.Namespace + "/" + m.Name + " exists")
	existence, err := m.Exists(ctx)
	if err != nil {
		return nil, err
	}

	if existence == eks.Exists {
		log.Println("Service account " + m.Namespace + "/" + m.Name + " already exists, skipping creation")
		serviceAccount, err := m.get(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to retrieve service account %s/%s: %w", m.Namespace, m.Name, err)
		}
		roleArn := serviceAccount.Annotations[eks.IRSARoleAnnotation]
		m.checkRoleTrust(ctx, roleArn)
		return &Result{Name: m.Name, Namespace: m.Namespace, RoleArn: roleArn}, nil
	}

	roleName := eks.RoleName(m.Cluster.Name)
	log.Println("Creating service account " + m.Namespace + "/" + m.Name + " bound to IAM role " + roleName)
	if _, err := m.Runner.Run(ctx, m.eksctl(), m.createArgs(roleName)...); err != nil {
		return nil, fmt.Errorf("unable to create IAM service account %s/%s: %w", m.Namespace, m.Name, err)
	}
	roleArn := arn.ARN{Partition: m.partition(), Service: "iam", AccountID: m.Cluster.AccountID, Resource: "role/" + roleName}.String()
	return &Result{Name: m.Name, Namespace: m.Namespace, RoleArn: roleArn, Created: true}, nil
}

func (m *Ensurer) createArgs(roleName string) []string {
	return []string{
		"create", "iamserviceaccount",
		"--cluster=" + m.Cluster.Name,
		"--region=" + m.Region,
		"--namespace=" + m.Namespace,
		"--name=" + m.Name,
		"--role-name=" + roleName,
		"--attach-policy-arn=" + m.PolicyArn,
		"--override-existing-serviceaccounts",
		"--approve",
	}
}

// checkRoleTrust warns when the role bound to an existing service account cannot
// be assumed by it. Problems are reported, never returned.
func (m *Ensurer) checkRoleTrust(ctx context.Context, roleArn string) {
	if roleArn == "" {
		printWarning(fmt.Sprintf("Service account %s/%s has no %s annotation, the controller will not get AWS credentials", m.Namespace, m.Name, eks.IRSARoleAnnotation))
		return
	}
	if m.IAM == nil {
		return
	}
	parsedArn, err := arn.Parse(roleArn)
	if err != nil {
		log.Warnf("Service account %s/%s is annotated with an invalid role ARN %q", m.Namespace, m.Name, roleArn)
		return
	}
	// roles can have a path, the name is the last component
	roleName := path.Base(strings.TrimPrefix(parsedArn.Resource, "role/"))

	log.Debugf("Checking trust policy of IAM role %s", roleName)
	role, err := m.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: &roleName})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchEntity" {
			printWarning(fmt.Sprintf("IAM role %s bound to service account %s/%s does not exist", roleArn, m.Namespace, m.Name))
			return
		}
		log.Warnf("Unable to retrieve IAM role %s, skipping trust policy check: %v", roleArn, err)
		return
	}
	if role.Role == nil || role.Role.AssumeRolePolicyDocument == nil {
		return
	}

	trust, err := trustpolicy.Parse(aws.ToString(role.Role.AssumeRolePolicyDocument))
	if err != nil {
		log.Warnf("Could not parse the trust policy of %s, ignoring: %v", roleArn, err)
		return
	}
	providerArn := trustpolicy.OIDCProviderArn(m.partition(), m.Cluster.AccountID, m.Cluster.IssuerURL)
	subject := eks.ServiceAccountSubject(m.Namespace, m.Name)
	if !trust.AllowsServiceAccount(providerArn, m.Cluster.IssuerURL, subject, eks.IRSAAudience) {
		printWarning(fmt.Sprintf("IAM role %s cannot be assumed by %s through %s", roleArn, subject, providerArn))
	}
}

func (m *Ensurer) get(ctx context.Context) (*metav1.ObjectMeta, error) {
	serviceAccount, err := m.K8sClient.CoreV1().ServiceAccounts(m.Namespace).Get(ctx, m.Name, metav1.GetOptions{})
	if err != nil {
		return nil, err
	}
	return &serviceAccount.ObjectMeta, nil
}

func (m *Ensurer) eksctl() string {
	if m.EksctlBinary == "" {
		return "eksctl"
	}
	return m.EksctlBinary
}

func (m *Ensurer) partition() string {
	if m.Cluster.Partition == "" {
		return "aws"
	}
	return m.Cluster.Partition
}

func printWarning(message string) {
	log.Warn(color.YellowString(message))
}

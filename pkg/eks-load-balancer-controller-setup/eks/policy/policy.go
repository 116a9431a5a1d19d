// Package policy makes sure the IAM policy granting the controller its AWS
// permissions exists in the account.
package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidPolicyDocument = errors.New("policy document is not valid JSON")

type IAMAPI interface {
	iam.ListPoliciesAPIClient
	CreatePolicy(ctx context.Context, params *iam.CreatePolicyInput, optFns ...func(*iam.Options)) (*iam.CreatePolicyOutput, error)
}

type Result struct {
	Name    string
	Arn     string
	Created bool
}

type Ensurer struct {
	IAM        IAMAPI
	HTTPClient *http.Client

	ClusterName  string
	AccountID    string
	Partition    string
	DocumentURL  string
	DocumentFile string // read instead of downloading DocumentURL when set
}

func NewEnsurer(awsConfig *aws.Config, clusterName string, accountID string) *Ensurer {
	return &Ensurer{
		IAM:         iam.NewFromConfig(*awsConfig),
		HTTPClient:  http.DefaultClient,
		ClusterName: clusterName,
		AccountID:   accountID,
	}
}

// Ensure creates the controller policy unless a customer-managed policy with the
// exact same name already exists. Existing policies are never updated.
func (m *Ensurer) Ensure(ctx context.Context) (*Result, error) {
	policyName := eks.PolicyName(m.ClusterName)
	log.Println("Checking if IAM policy " + policyName + " exists")
	existingArn, err := m.find(ctx, policyName)
	if err != nil {
		return nil, err
	}
	if existingArn != "" {
		log.Println("IAM policy " + policyName + " already exists, skipping creation")
		return &Result{Name: policyName, Arn: existingArn}, nil
	}

	document, err := m.document(ctx)
	if err != nil {
		return nil, err
	}

	log.Println("Creating IAM policy " + policyName)
	output, err := m.IAM.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     &policyName,
		PolicyDocument: aws.String(string(document)),
		Description:    aws.String("Permissions of the AWS Load Balancer Controller of EKS cluster " + m.ClusterName),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create IAM policy %s: %w", policyName, err)
	}
	policyArn := eks.PolicyARN(m.Partition, m.AccountID, policyName)
	if output.Policy != nil && output.Policy.Arn != nil {
		policyArn = *output.Policy.Arn
	}
	return &Result{Name: policyName, Arn: policyArn, Created: true}, nil
}

// find returns the ARN of the customer-managed policy named policyName, or an
// empty string when there is none
func (m *Ensurer) find(ctx context.Context, policyName string) (string, error) {
	paginator := iam.NewListPoliciesPaginator(m.IAM, &iam.ListPoliciesInput{
		Scope: types.PolicyScopeTypeLocal,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return "", fmt.Errorf("unable to list IAM policies: %w", err)
		}
		for _, policy := range page.Policies {
			if aws.ToString(policy.PolicyName) == policyName {
				return aws.ToString(policy.Arn), nil
			}
		}
	}
	return "", nil
}

func (m *Ensurer) document(ctx context.Context) ([]byte, error) {
	var document []byte
	var err error
	if m.DocumentFile != "" {
		log.Println("Reading IAM policy document from " + m.DocumentFile)
		document, err = os.ReadFile(m.DocumentFile)
		if err != nil {
			return nil, fmt.Errorf("unable to read IAM policy document: %w", err)
		}
	} else {
		document, err = m.download(ctx)
		if err != nil {
			return nil, err
		}
	}
	if !json.Valid(document) {
		return nil, ErrInvalidPolicyDocument
	}
	return document, nil
}

func (m *Ensurer) download(ctx context.Context) ([]byte, error) {
	log.Println("Downloading IAM policy document from " + m.DocumentURL)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, m.DocumentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build request for %s: %w", m.DocumentURL, err)
	}
	client := m.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("unable to download IAM policy document: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("unable to download IAM policy document from %s: HTTP %d", m.DocumentURL, response.StatusCode)
	}
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read IAM policy document: %w", err)
	}
	return body, nil
}

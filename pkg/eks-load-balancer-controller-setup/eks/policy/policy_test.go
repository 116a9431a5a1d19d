package policy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `{"Version": "2012-10-17", "Statement": [{"Effect": "Allow", "Action": "elasticloadbalancing:*", "Resource": "*"}]}`

// fakeIAM serves ListPolicies from pages and records CreatePolicy calls
type fakeIAM struct {
	pages     [][]types.Policy
	listErr   error
	createErr error
	omitArn   bool
	created   []*iam.CreatePolicyInput
	scopes    []types.PolicyScopeType
}

func (f *fakeIAM) ListPolicies(_ context.Context, params *iam.ListPoliciesInput, _ ...func(*iam.Options)) (*iam.ListPoliciesOutput, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.scopes = append(f.scopes, params.Scope)
	index := 0
	if params.Marker != nil {
		index = len(*params.Marker)
	}
	output := &iam.ListPoliciesOutput{}
	if index < len(f.pages) {
		output.Policies = f.pages[index]
	}
	if index+1 < len(f.pages) {
		// the marker length encodes the next page index
		marker := ""
		for i := 0; i <= index; i++ {
			marker += "x"
		}
		output.Marker = aws.String(marker)
		output.IsTruncated = true
	}
	return output, nil
}

func (f *fakeIAM) CreatePolicy(_ context.Context, params *iam.CreatePolicyInput, _ ...func(*iam.Options)) (*iam.CreatePolicyOutput, error) {
	f.created = append(f.created, params)
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.omitArn {
		return &iam.CreatePolicyOutput{}, nil
	}
	return &iam.CreatePolicyOutput{Policy: &types.Policy{
		PolicyName: params.PolicyName,
		Arn:        aws.String("arn:aws:iam::111122223333:policy/" + *params.PolicyName),
	}}, nil
}

func policyEntry(name string) types.Policy {
	return types.Policy{PolicyName: aws.String(name), Arn: aws.String("arn:aws:iam::111122223333:policy/" + name)}
}

func serveDocument(t *testing.T, status int, body string) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEnsure(t *testing.T) {
	scenarios := []struct {
		Name           string
		Pages          [][]types.Policy
		Status         int
		Body           string
		ExpectedErr    error
		ExpectError    bool
		ExpectedResult *Result
		ExpectedCreate int
	}{
		{
			Name:           "policy already exists",
			Pages:          [][]types.Policy{{policyEntry("AWSLoadBalancerControllerIAMPolicy-demo")}},
			ExpectedResult: &Result{Name: "AWSLoadBalancerControllerIAMPolicy-demo", Arn: "arn:aws:iam::111122223333:policy/AWSLoadBalancerControllerIAMPolicy-demo"},
			ExpectedCreate: 0,
		},
		{
			Name: "policy found on a later page",
			Pages: [][]types.Policy{
				{policyEntry("other")},
				{policyEntry("AWSLoadBalancerControllerIAMPolicy-demo")},
			},
			ExpectedResult: &Result{Name: "AWSLoadBalancerControllerIAMPolicy-demo", Arn: "arn:aws:iam::111122223333:policy/AWSLoadBalancerControllerIAMPolicy-demo"},
			ExpectedCreate: 0,
		},
		{
			Name:           "similar names are not a match",
			Pages:          [][]types.Policy{{policyEntry("AWSLoadBalancerControllerIAMPolicy-demo-2"), policyEntry("AWSLoadBalancerControllerIAMPolicy")}},
			Status:         http.StatusOK,
			Body:           sampleDocument,
			ExpectedResult: &Result{Name: "AWSLoadBalancerControllerIAMPolicy-demo", Arn: "arn:aws:iam::111122223333:policy/AWSLoadBalancerControllerIAMPolicy-demo", Created: true},
			ExpectedCreate: 1,
		},
		{
			Name:        "download fails",
			Status:      http.StatusNotFound,
			Body:        "404: Not Found",
			ExpectError: true,
		},
		{
			Name:        "document is not JSON",
			Status:      http.StatusOK,
			Body:        "<html></html>",
			ExpectedErr: ErrInvalidPolicyDocument,
		},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			server := serveDocument(t, scenario.Status, scenario.Body)
			iamClient := &fakeIAM{pages: scenario.Pages}
			ensurer := &Ensurer{
				IAM:         iamClient,
				HTTPClient:  server.Client(),
				ClusterName: "demo",
				AccountID:   "111122223333",
				DocumentURL: server.URL,
			}

			result, err := ensurer.Ensure(context.Background())
			if scenario.ExpectedErr != nil {
				assert.ErrorIs(t, err, scenario.ExpectedErr)
				assert.Empty(t, iamClient.created)
				return
			}
			if scenario.ExpectError {
				assert.Error(t, err)
				assert.Empty(t, iamClient.created)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, scenario.ExpectedResult, result)
			assert.Len(t, iamClient.created, scenario.ExpectedCreate)
			for _, scope := range iamClient.scopes {
				assert.Equal(t, types.PolicyScopeTypeLocal, scope)
			}
			if scenario.ExpectedCreate > 0 {
				assert.JSONEq(t, sampleDocument, *iamClient.created[0].PolicyDocument)
			}
		})
	}
}

func TestEnsureIsIdempotent(t *testing.T) {
	server := serveDocument(t, http.StatusOK, sampleDocument)
	iamClient := &fakeIAM{}
	ensurer := &Ensurer{IAM: iamClient, HTTPClient: server.Client(), ClusterName: "demo", AccountID: "111122223333", DocumentURL: server.URL}

	first, err := ensurer.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Created)

	// the second run sees the policy created by the first one
	iamClient.pages = [][]types.Policy{{policyEntry(first.Name)}}
	second, err := ensurer.Ensure(context.Background())
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Arn, second.Arn)
	assert.Len(t, iamClient.created, 1)
}

func TestEnsureFromLocalFile(t *testing.T) {
	documentFile := filepath.Join(t.TempDir(), "iam_policy.json")
	require.NoError(t, os.WriteFile(documentFile, []byte(sampleDocument), 0o600))
	iamClient := &fakeIAM{}
	ensurer := &Ensurer{IAM: iamClient, ClusterName: "demo", AccountID: "111122223333", DocumentURL: "http://127.0.0.1:1/unreachable", DocumentFile: documentFile}

	result, err := ensurer.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Created)
	require.Len(t, iamClient.created, 1)
	assert.Equal(t, "AWSLoadBalancerControllerIAMPolicy-demo", *iamClient.created[0].PolicyName)
}

func TestEnsureAPIErrors(t *testing.T) {
	server := serveDocument(t, http.StatusOK, sampleDocument)

	listFailing := &fakeIAM{listErr: errors.New("AccessDenied")}
	_, err := (&Ensurer{IAM: listFailing, HTTPClient: server.Client(), ClusterName: "demo", DocumentURL: server.URL}).Ensure(context.Background())
	assert.ErrorContains(t, err, "unable to list IAM policies")
	assert.Empty(t, listFailing.created)

	createFailing := &fakeIAM{createErr: errors.New("EntityAlreadyExists")}
	_, err = (&Ensurer{IAM: createFailing, HTTPClient: server.Client(), ClusterName: "demo", DocumentURL: server.URL}).Ensure(context.Background())
	assert.ErrorContains(t, err, "unable to create IAM policy AWSLoadBalancerControllerIAMPolicy-demo")
}

func TestEnsureBuildsArnInClusterPartition(t *testing.T) {
	server := serveDocument(t, http.StatusOK, sampleDocument)
	iamClient := &fakeIAM{omitArn: true}
	ensurer := &Ensurer{IAM: iamClient, HTTPClient: server.Client(), ClusterName: "demo", AccountID: "111122223333", Partition: "aws-cn", DocumentURL: server.URL}

	result, err := ensurer.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "arn:aws-cn:iam::111122223333:policy/AWSLoadBalancerControllerIAMPolicy-demo", result.Arn)
}

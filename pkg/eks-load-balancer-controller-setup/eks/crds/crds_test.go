package crds

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/datadog/eks-load-balancer-controller-setup/internal/runner"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/runner/runnertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T) string {
	manifestPath := filepath.Join(t.TempDir(), "crds.yaml")
	require.NoError(t, os.WriteFile(manifestPath, []byte("apiVersion: apiextensions.k8s.io/v1\nkind: CustomResourceDefinition\n"), 0o600))
	return manifestPath
}

func TestApply(t *testing.T) {
	scenarios := []struct {
		Name         string
		Kubeconfig   string
		KubeContext  string
		ExpectedArgs func(path string) []string
	}{
		{
			Name:         "default kubeconfig",
			ExpectedArgs: func(path string) []string { return []string{"apply", "-f", path} },
		},
		{
			Name:        "explicit kubeconfig and context",
			Kubeconfig:  "/tmp/kubeconfig",
			KubeContext: "demo",
			ExpectedArgs: func(path string) []string {
				return []string{"apply", "-f", path, "--kubeconfig", "/tmp/kubeconfig", "--context", "demo"}
			},
		},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			manifestPath := writeManifest(t)
			recorder := &runnertest.Recorder{}
			applier := &Applier{Runner: recorder, KubectlBinary: "kubectl", Kubeconfig: scenario.Kubeconfig, KubeContext: scenario.KubeContext}

			require.NoError(t, applier.Apply(context.Background(), manifestPath))
			require.Len(t, recorder.Calls, 1)
			assert.Equal(t, "kubectl", recorder.Calls[0].Name)
			assert.Equal(t, scenario.ExpectedArgs(manifestPath), recorder.Calls[0].Args)
		})
	}
}

func TestApplyMissingFile(t *testing.T) {
	recorder := &runnertest.Recorder{}
	applier := &Applier{Runner: recorder}

	err := applier.Apply(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "does not exist")
	assert.Empty(t, recorder.Calls)
}

func TestApplyCommandFailure(t *testing.T) {
	recorder := &runnertest.Recorder{Results: []runnertest.Result{{
		Prefix: "kubectl apply",
		Err:    &runner.CommandError{Name: "kubectl", Args: []string{"apply"}, ExitCode: 1, Stderr: "error validating data"},
	}}}
	applier := &Applier{Runner: recorder}

	err := applier.Apply(context.Background(), writeManifest(t))
	assert.True(t, runner.IsCommandError(err))
	assert.ErrorContains(t, err, "error validating data")
}

package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/rest"
)

func TestIsEKS(t *testing.T) {
	scenarios := []struct {
		Name     string
		Host     string
		Expected bool
	}{
		{"EKS endpoint", "https://0123456789ABCDEF.gr7.us-east-1.eks.amazonaws.com", true},
		{"EKS endpoint with port", "https://0123456789ABCDEF.gr7.us-east-1.eks.amazonaws.com:443", true},
		{"local cluster", "https://127.0.0.1:6443", false},
		{"lookalike domain", "https://eks.amazonaws.com.attacker.com", false},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			assert.Equal(t, scenario.Expected, IsEKS(&rest.Config{Host: scenario.Host}))
		})
	}
}

func TestKubeConfigUsesExplicitPathAndContext(t *testing.T) {
	kubeconfig := `apiVersion: v1
kind: Config
clusters:
- name: one
  cluster:
    server: https://one.gr7.us-east-1.eks.amazonaws.com
- name: two
  cluster:
    server: https://127.0.0.1:6443
contexts:
- name: one
  context: {cluster: one, user: me}
- name: two
  context: {cluster: two, user: me}
current-context: one
users:
- name: me
  user: {token: abc}
`
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(kubeconfig), 0o600))

	config, err := KubeConfig(path, "")
	require.NoError(t, err)
	assert.True(t, IsEKS(config))

	config, err = KubeConfig(path, "two")
	require.NoError(t, err)
	assert.Equal(t, "https://127.0.0.1:6443", config.Host)
	assert.False(t, IsEKS(config))
}

func TestKubeConfigMergesFileList(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first")
	second := filepath.Join(dir, "second")
	require.NoError(t, os.WriteFile(first, []byte(`apiVersion: v1
kind: Config
clusters:
- name: one
  cluster:
    server: https://one.gr7.us-east-1.eks.amazonaws.com
contexts:
- name: one
  context: {cluster: one, user: me}
current-context: one
users:
- name: me
  user: {token: abc}
`), 0o600))
	require.NoError(t, os.WriteFile(second, []byte(`apiVersion: v1
kind: Config
clusters:
- name: two
  cluster:
    server: https://127.0.0.1:6443
contexts:
- name: two
  context: {cluster: two, user: me}
`), 0o600))
	t.Setenv("KUBECONFIG", first+string(filepath.ListSeparator)+second)

	config, err := KubeConfig("", "two")
	require.NoError(t, err)
	assert.Equal(t, "https://127.0.0.1:6443", config.Host)

	config, err = KubeConfig(first+string(filepath.ListSeparator)+second, "")
	require.NoError(t, err)
	assert.True(t, IsEKS(config))
}

func TestGetKubeConfigPathPrefersEnvironment(t *testing.T) {
	t.Setenv("KUBECONFIG", "/some/where/config")
	assert.Equal(t, "/some/where/config", GetKubeConfigPath())
}

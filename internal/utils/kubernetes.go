package utils

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

const eksAPIServerSuffix = ".eks.amazonaws.com"

// KubeConfig builds a REST config from a kubeconfig path and context, falling back
// to GetKubeConfigPath and then to in-cluster authentication. The path may be a
// KUBECONFIG-style list of files, merged in order.
func KubeConfig(kubeconfigPath string, kubeContext string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		kubeconfigPath = GetKubeConfigPath()
	}
	if kubeconfigPath == "" {
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("unable to build in-cluster kube config: %w", err)
		}
		return config, nil
	}

	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if paths := filepath.SplitList(kubeconfigPath); len(paths) > 1 {
		loadingRules.Precedence = paths
	} else {
		loadingRules.ExplicitPath = kubeconfigPath
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("unable to build kube config: %w", err)
	}
	return config, nil
}

func K8sClient(config *rest.Config) (*kubernetes.Clientset, error) {
	k8sClient, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("unable to create kube client: %w", err)
	}
	return k8sClient, nil
}

func GetKubeConfigPath() string {
	// if KUBECONFIG is set, use it
	if kubeConfigEnvPath := os.Getenv("KUBECONFIG"); kubeConfigEnvPath != "" {
		return kubeConfigEnvPath
	}

	// Otherwise, use $HOME/.kube/config if it exists
	if kubeConfigFilePath := filepath.Join(homedir.HomeDir(), ".kube/config"); FileExists(kubeConfigFilePath) {
		return kubeConfigFilePath
	}

	// Otherwise, return an empty string so that KubeConfig falls back to in-cluster auth
	return ""
}

// IsEKS reports whether the API server of the config is an EKS endpoint
func IsEKS(config *rest.Config) bool {
	host := config.Host
	if parsed, err := url.Parse(config.Host); err == nil && parsed.Hostname() != "" {
		host = parsed.Hostname()
	}
	return strings.HasSuffix(strings.ToLower(host), eksAPIServerSuffix)
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Package config holds the configuration of a controller setup run. Values are
// read once from the process environment (and an optional .env file), may be
// overridden by command-line flags, and are validated before any step runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/joho/godotenv"
	"golang.org/x/exp/slices"
)

// Installation strategies
const (
	StrategyDirect = "direct"
	StrategyRender = "render"
)

var AvailableStrategies = []string{StrategyDirect, StrategyRender}

const (
	DefaultPolicyDocumentURL = "https://raw.githubusercontent.com/kubernetes-sigs/aws-load-balancer-controller/v2.5.4/docs/install/iam_policy.json"
	DefaultCRDsManifest      = "crds.yaml"
	// tag published by the private ECR mirrors of the controller image
	DefaultImageTag = "aws-alb-controller-v2.5.4"
	dotEnvFile      = ".env"
)

var (
	ErrMissingClusterName          = errors.New("cluster name is required (CLUSTER_NAME)")
	ErrMissingRegion               = errors.New("AWS region is required (AWS_REGION)")
	ErrMissingControllerImage      = errors.New("controller image is required (LB_CONTROLLER_IMAGE)")
	ErrInvalidControllerImage      = errors.New("controller image is not a valid image reference")
	ErrInvalidStrategy             = errors.New("invalid installation strategy")
	ErrInvalidServiceAccountNaming = errors.New("invalid service account naming scheme")
	ErrInvalidTimeout              = errors.New("timeouts must not be negative")
	ErrDigestNotSupported          = errors.New("image digests cannot be passed as a chart image tag, use a tag or the render strategy")
)

type Config struct {
	ClusterName     string `env:"CLUSTER_NAME"`
	Region          string `env:"AWS_REGION"`
	ControllerImage string `env:"LB_CONTROLLER_IMAGE"`
	ImageTag        string `env:"LB_CONTROLLER_IMAGE_TAG" envDefault:"aws-alb-controller-v2.5.4"`
	AccountID       string `env:"AWS_ACCOUNT_ID"`
	VpcID           string `env:"VPC_ID"`

	Namespace            string `env:"LB_CONTROLLER_NAMESPACE" envDefault:"kube-system"`
	ServiceAccountNaming string `env:"LB_CONTROLLER_SA_NAMING" envDefault:"cluster-suffixed"`
	ServiceAccountName   string `env:"LB_CONTROLLER_SA_NAME"`

	Strategy         string   `env:"LB_CONTROLLER_INSTALL_STRATEGY" envDefault:"direct"`
	ChartVersion     string   `env:"LB_CONTROLLER_CHART_VERSION" envDefault:"1.5.5"`
	ChartRepository  string   `env:"LB_CONTROLLER_CHART_REPOSITORY" envDefault:"https://aws.github.io/eks-charts"`
	ValuesFiles      []string `env:"LB_CONTROLLER_VALUES_FILES" envSeparator:","`
	CRDsManifest     string   `env:"LB_CONTROLLER_CRDS_MANIFEST"`
	RenderedManifest string   `env:"LB_CONTROLLER_RENDERED_MANIFEST" envDefault:"aws-load-balancer-controller.yaml"`
	StrictImagePatch bool     `env:"LB_CONTROLLER_STRICT_IMAGE_PATCH"`

	PolicyDocumentURL  string `env:"LB_CONTROLLER_POLICY_URL" envDefault:"https://raw.githubusercontent.com/kubernetes-sigs/aws-load-balancer-controller/v2.5.4/docs/install/iam_policy.json"`
	PolicyDocumentFile string `env:"LB_CONTROLLER_POLICY_FILE"`

	Kubeconfig    string `env:"KUBECONFIG"`
	KubeContext   string `env:"KUBE_CONTEXT"`
	HelmBinary    string `env:"HELM_BINARY" envDefault:"helm"`
	KubectlBinary string `env:"KUBECTL_BINARY" envDefault:"kubectl"`
	EksctlBinary  string `env:"EKSCTL_BINARY" envDefault:"eksctl"`

	HelmTimeout  time.Duration `env:"HELM_TIMEOUT" envDefault:"5m"`
	WaitForReady time.Duration `env:"LB_CONTROLLER_WAIT_FOR_READY" envDefault:"0s"`
}

// Load reads the configuration from the environment. A .env file in the working
// directory is loaded first; variables already set in the process take precedence.
func Load() (*Config, error) {
	if _, err := os.Stat(dotEnvFile); err == nil {
		if err := godotenv.Load(dotEnvFile); err != nil {
			return nil, fmt.Errorf("unable to load %s: %w", dotEnvFile, err)
		}
	}
	return Parse()
}

// Parse reads the configuration from the process environment only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration from environment: %w", err)
	}
	return cfg, nil
}

// Validate returns every problem found in the configuration, joined into one error
func (c *Config) Validate() error {
	errs := c.clusterErrors()
	if c.ControllerImage == "" {
		errs = append(errs, ErrMissingControllerImage)
	} else if _, err := name.ParseReference(c.ImageReference()); err != nil {
		errs = append(errs, fmt.Errorf("%w %q: %v", ErrInvalidControllerImage, c.ControllerImage, err))
	}
	if !slices.Contains(AvailableStrategies, c.Strategy) {
		errs = append(errs, fmt.Errorf("%w %q, supported strategies: %s", ErrInvalidStrategy, c.Strategy, strings.Join(AvailableStrategies, ", ")))
	}
	return errors.Join(errs...)
}

// ValidateCluster only checks what the IAM and service account steps need, the
// controller image and installation settings are not required.
func (c *Config) ValidateCluster() error {
	return errors.Join(c.clusterErrors()...)
}

func (c *Config) clusterErrors() []error {
	var errs []error
	if c.ClusterName == "" {
		errs = append(errs, ErrMissingClusterName)
	}
	if c.Region == "" {
		errs = append(errs, ErrMissingRegion)
	}
	if !slices.Contains(eks.AvailableServiceAccountNamings, c.ServiceAccountNaming) {
		errs = append(errs, fmt.Errorf("%w %q, supported schemes: %s", ErrInvalidServiceAccountNaming, c.ServiceAccountNaming, strings.Join(eks.AvailableServiceAccountNamings, ", ")))
	}
	if c.HelmTimeout < 0 || c.WaitForReady < 0 {
		errs = append(errs, ErrInvalidTimeout)
	}
	return errs
}

// ImageReference returns the controller image with ImageTag appended when the
// configured image carries neither a tag nor a digest.
func (c *Config) ImageReference() string {
	if c.ControllerImage == "" || hasTagOrDigest(c.ControllerImage) || c.ImageTag == "" {
		return c.ControllerImage
	}
	return c.ControllerImage + ":" + c.ImageTag
}

// ImageRepositoryAndTag splits the image reference into the chart's
// image.repository and image.tag values.
func (c *Config) ImageRepositoryAndTag() (string, string, error) {
	ref, err := name.ParseReference(c.ImageReference())
	if err != nil {
		return "", "", fmt.Errorf("%w %q: %v", ErrInvalidControllerImage, c.ControllerImage, err)
	}
	tag, ok := ref.(name.Tag)
	if !ok {
		return "", "", ErrDigestNotSupported
	}
	// keep the repository as written, go-containerregistry would add index.docker.io/library/
	repository := strings.TrimSuffix(c.ImageReference(), ":"+tag.TagStr())
	return repository, tag.TagStr(), nil
}

func (c *Config) ResolvedServiceAccountName() string {
	if c.ServiceAccountName != "" {
		return c.ServiceAccountName
	}
	return eks.ServiceAccountName(eks.ServiceAccountNaming(c.ServiceAccountNaming), c.ClusterName)
}

// ResolvedCRDsManifest returns the CRD manifest to apply, or an empty string when
// no CRDs should be applied.
func (c *Config) ResolvedCRDsManifest() string {
	if c.CRDsManifest == "" && c.Strategy == StrategyRender {
		return DefaultCRDsManifest
	}
	return c.CRDsManifest
}

// KubeconfigFile returns the kubeconfig to pass to --kubeconfig flags. A list of
// files is not a valid flag value, it only reaches commands through KUBECONFIG.
func (c *Config) KubeconfigFile() string {
	if len(filepath.SplitList(c.Kubeconfig)) > 1 {
		return ""
	}
	return c.Kubeconfig
}

func (c *Config) ResolvedNamespace() string {
	if c.Namespace == "" {
		return eks.DefaultNamespace
	}
	return c.Namespace
}

// hasTagOrDigest reports whether the last path component of an image reference
// carries a tag or a digest. Registry ports ("host:5000/repo") are not tags.
func hasTagOrDigest(image string) bool {
	if strings.Contains(image, "@") {
		return true
	}
	lastComponent := image[strings.LastIndex(image, "/")+1:]
	return strings.Contains(lastComponent, ":")
}

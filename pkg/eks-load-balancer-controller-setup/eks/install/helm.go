package install

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datadog/eks-load-balancer-controller-setup/internal/runner"
	"github.com/hashicorp/go-version"
	log "github.com/sirupsen/logrus"
)

// MinHelmVersion is the first helm release with OCI support enabled by default
const MinHelmVersion = "3.8.0"

var ErrHelmTooOld = errors.New("helm is too old")

// Helm drives the helm binary
type Helm struct {
	Runner      runner.Runner
	Binary      string
	Kubeconfig  string
	KubeContext string
}

type Release struct {
	Name       string
	Chart      string
	Namespace  string
	Version    string
	ValuesFile string
	Timeout    time.Duration
}

func (h *Helm) Version(ctx context.Context) (*version.Version, error) {
	output, err := h.Runner.Run(ctx, h.binary(), "version", "--template", "{{.Version}}")
	if err != nil {
		return nil, fmt.Errorf("unable to determine helm version: %w", err)
	}
	helmVersion, err := version.NewVersion(strings.TrimSpace(output))
	if err != nil {
		return nil, fmt.Errorf("unable to parse helm version %q: %w", output, err)
	}
	return helmVersion, nil
}

func (h *Helm) CheckVersion(ctx context.Context) error {
	helmVersion, err := h.Version(ctx)
	if err != nil {
		return err
	}
	log.Debugf("Using helm %s", helmVersion.Original())
	if helmVersion.LessThan(version.Must(version.NewVersion(MinHelmVersion))) {
		return fmt.Errorf("%w: found %s, %s or later is required", ErrHelmTooOld, helmVersion.Original(), MinHelmVersion)
	}
	return nil
}

// EnsureRepository registers (or re-registers) a chart repository and refreshes its index
func (h *Helm) EnsureRepository(ctx context.Context, name string, url string) error {
	log.Println("Adding Helm repository " + name + " (" + url + ")")
	if _, err := h.Runner.Run(ctx, h.binary(), "repo", "add", name, url, "--force-update"); err != nil {
		return fmt.Errorf("unable to add Helm repository %s: %w", name, err)
	}
	if _, err := h.Runner.Run(ctx, h.binary(), "repo", "update", name); err != nil {
		return fmt.Errorf("unable to update Helm repository %s: %w", name, err)
	}
	return nil
}

// UpgradeInstall installs the release, or upgrades it when it already exists, and
// waits for its resources to become ready
func (h *Helm) UpgradeInstall(ctx context.Context, release *Release) error {
	args := append([]string{"upgrade", "--install"}, h.releaseArgs(release)...)
	args = append(args, "--wait", "--timeout", release.Timeout.String())
	if _, err := h.Runner.Run(ctx, h.binary(), args...); err != nil {
		return fmt.Errorf("unable to install Helm release %s: %w", release.Name, err)
	}
	return nil
}

// Template renders the release manifests without touching the cluster
func (h *Helm) Template(ctx context.Context, release *Release) (string, error) {
	args := append([]string{"template"}, h.releaseArgs(release)...)
	output, err := h.Runner.Run(ctx, h.binary(), args...)
	if err != nil {
		return "", fmt.Errorf("unable to render Helm release %s: %w", release.Name, err)
	}
	return output, nil
}

func (h *Helm) releaseArgs(release *Release) []string {
	args := []string{release.Name, release.Chart, "--namespace", release.Namespace}
	if release.Version != "" {
		args = append(args, "--version", release.Version)
	}
	if release.ValuesFile != "" {
		args = append(args, "--values", release.ValuesFile)
	}
	if h.Kubeconfig != "" {
		args = append(args, "--kubeconfig", h.Kubeconfig)
	}
	if h.KubeContext != "" {
		args = append(args, "--kube-context", h.KubeContext)
	}
	return args
}

func (h *Helm) binary() string {
	if h.Binary == "" {
		return "helm"
	}
	return h.Binary
}

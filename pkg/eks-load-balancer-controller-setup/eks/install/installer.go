// Package install installs the AWS Load Balancer Controller Helm chart, either
// directly or by rendering it to a manifest that is patched and then applied.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/datadog/eks-load-balancer-controller-setup/internal/config"
	"github.com/datadog/eks-load-balancer-controller-setup/internal/runner"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/crds"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/manifest"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
)

var ErrUnknownStrategy = errors.New("unknown installation strategy")

type Result struct {
	Strategy         string
	Release          string
	Namespace        string
	RenderedManifest string                // render strategy only
	ImagePatch       *manifest.PatchResult // render strategy only, nil when the image could not be patched
}

type Installer struct {
	Helm   *Helm
	Runner runner.Runner

	Strategy         string
	Namespace        string
	ChartRepository  string
	ChartVersion     string
	ValuesFiles      []string
	Values           ChartValues
	Image            string // full image reference, used by the render strategy
	RenderedManifest string
	StrictImagePatch bool
	Timeout          time.Duration

	KubectlBinary string
	Kubeconfig    string
	KubeContext   string
}

func NewInstaller(cfg *config.Config, r runner.Runner, values ChartValues) *Installer {
	return &Installer{
		Helm: &Helm{
			Runner:      r,
			Binary:      cfg.HelmBinary,
			Kubeconfig:  cfg.KubeconfigFile(),
			KubeContext: cfg.KubeContext,
		},
		Runner:           r,
		Strategy:         cfg.Strategy,
		Namespace:        cfg.ResolvedNamespace(),
		ChartRepository:  cfg.ChartRepository,
		ChartVersion:     cfg.ChartVersion,
		ValuesFiles:      cfg.ValuesFiles,
		Values:           values,
		Image:            cfg.ImageReference(),
		RenderedManifest: cfg.RenderedManifest,
		StrictImagePatch: cfg.StrictImagePatch,
		Timeout:          cfg.HelmTimeout,
		KubectlBinary:    cfg.KubectlBinary,
		Kubeconfig:       cfg.KubeconfigFile(),
		KubeContext:      cfg.KubeContext,
	}
}

func (m *Installer) Install(ctx context.Context) (*Result, error) {
	if m.Strategy != config.StrategyDirect && m.Strategy != config.StrategyRender {
		return nil, fmt.Errorf("%w %q", ErrUnknownStrategy, m.Strategy)
	}
	if err := m.Helm.CheckVersion(ctx); err != nil {
		return nil, err
	}
	if err := m.Helm.EnsureRepository(ctx, eks.ChartRepoName, m.ChartRepository); err != nil {
		return nil, err
	}

	values, err := MergeValues(m.ValuesFiles, &m.Values)
	if err != nil {
		return nil, err
	}
	valuesFile, err := WriteValuesFile(values)
	if err != nil {
		return nil, err
	}
	defer os.Remove(valuesFile)

	release := &Release{
		Name:       eks.ControllerName,
		Chart:      eks.ChartName,
		Namespace:  m.Namespace,
		Version:    m.ChartVersion,
		ValuesFile: valuesFile,
		Timeout:    m.Timeout,
	}
	result := &Result{Strategy: m.Strategy, Release: release.Name, Namespace: release.Namespace}

	if m.Strategy == config.StrategyDirect {
		log.Println("Installing Helm release " + release.Name + " in namespace " + release.Namespace)
		if err := m.Helm.UpgradeInstall(ctx, release); err != nil {
			return nil, err
		}
		return result, nil
	}

	result.RenderedManifest = m.RenderedManifest
	patch, err := m.render(ctx, release)
	if err != nil {
		return nil, err
	}
	result.ImagePatch = patch
	return result, nil
}

func (m *Installer) render(ctx context.Context, release *Release) (*manifest.PatchResult, error) {
	log.Println("Rendering Helm release " + release.Name + " to " + m.RenderedManifest)
	rendered, err := m.Helm.Template(ctx, release)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(m.RenderedManifest, []byte(rendered+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("unable to write rendered manifest %s: %w", m.RenderedManifest, err)
	}

	log.Println("Setting controller image to " + m.Image)
	patch, err := manifest.PatchImageFile(m.RenderedManifest, eks.ControllerName, m.Image)
	if err != nil {
		if !errors.Is(err, manifest.ErrDeploymentNotFound) && !errors.Is(err, manifest.ErrContainerNotFound) {
			return nil, err
		}
		if m.StrictImagePatch {
			return nil, fmt.Errorf("unable to set controller image in %s: %w", m.RenderedManifest, err)
		}
		log.Warn(color.YellowString("Controller image was not changed in %s: %v", m.RenderedManifest, err))
		patch = nil
	} else if !patch.Changed {
		log.Println("Rendered manifest already uses " + m.Image)
	}

	applier := &crds.Applier{Runner: m.Runner, KubectlBinary: m.KubectlBinary, Kubeconfig: m.Kubeconfig, KubeContext: m.KubeContext}
	if err := applier.Apply(ctx, m.RenderedManifest); err != nil {
		return nil, err
	}
	return patch, nil
}

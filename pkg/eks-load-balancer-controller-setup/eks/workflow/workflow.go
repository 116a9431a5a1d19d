// Package workflow runs the controller setup steps in order, stopping at the first failure.
package workflow

import (
	"context"
	"fmt"

	"github.com/datadog/eks-load-balancer-controller-setup/internal/config"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/cluster"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/install"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/policy"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/serviceaccount"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/verify"
	log "github.com/sirupsen/logrus"
)

const (
	StepPreflight      = "preflight"
	StepPolicy         = "IAM policy"
	StepServiceAccount = "service account"
	StepCRDs           = "CRDs"
	StepInstall        = "install"
	StepVerify         = "verify"
)

// StepError is returned when a step fails. Later steps did not run, and nothing
// earlier steps created was rolled back.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Summary holds the result of every step that ran
type Summary struct {
	Steps          []string
	Cluster        *cluster.ClusterInfo
	Policy         *policy.Result
	ServiceAccount *serviceaccount.Result
	CRDsManifest   string
	Install        *install.Result
	Verify         *verify.Status
}

type Workflow struct {
	Config     *config.Config
	Components Components
}

func (m *Workflow) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	cfg := m.Config

	err := m.step(summary, StepPreflight, func() (err error) {
		summary.Cluster, err = m.Components.Inspector().Inspect(ctx, cfg.ClusterName)
		return err
	})
	if err != nil {
		return summary, err
	}

	err = m.step(summary, StepPolicy, func() (err error) {
		summary.Policy, err = m.Components.PolicyEnsurer(summary.Cluster).Ensure(ctx)
		return err
	})
	if err != nil {
		return summary, err
	}

	err = m.step(summary, StepServiceAccount, func() (err error) {
		summary.ServiceAccount, err = m.Components.ServiceAccountEnsurer(summary.Cluster, summary.Policy.Arn).Ensure(ctx)
		return err
	})
	if err != nil {
		return summary, err
	}

	if crdsManifest := cfg.ResolvedCRDsManifest(); crdsManifest != "" {
		err = m.step(summary, StepCRDs, func() error {
			summary.CRDsManifest = crdsManifest
			return m.Components.CRDApplier().Apply(ctx, crdsManifest)
		})
		if err != nil {
			return summary, err
		}
	} else {
		log.Debug("No CRD manifest configured, skipping")
	}

	err = m.step(summary, StepInstall, func() error {
		installer, err := m.Components.Installer(summary.Cluster)
		if err != nil {
			return err
		}
		summary.Install, err = installer.Install(ctx)
		return err
	})
	if err != nil {
		return summary, err
	}

	err = m.step(summary, StepVerify, func() (err error) {
		summary.Verify, err = m.Components.Verifier().Verify(ctx)
		return err
	})
	if err != nil {
		return summary, err
	}

	log.Println("AWS Load Balancer Controller is installed on cluster " + cfg.ClusterName)
	return summary, nil
}

func (m *Workflow) step(summary *Summary, name string, run func() error) error {
	log.Println("Step: " + name)
	summary.Steps = append(summary.Steps, name)
	if err := run(); err != nil {
		return &StepError{Step: name, Err: err}
	}
	return nil
}

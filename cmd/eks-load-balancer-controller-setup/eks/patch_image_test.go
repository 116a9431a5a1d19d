package eks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/datadog/eks-load-balancer-controller-setup/internal/config"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deploymentManifest = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: aws-load-balancer-controller
spec:
  template:
    spec:
      containers:
        - name: aws-load-balancer-controller
          image: public.ecr.aws/eks/aws-load-balancer-controller:v2.5.4
`

func withConfig(t *testing.T, c *config.Config) {
	previous := cfg
	cfg = c
	t.Cleanup(func() { cfg = previous })
}

func TestPatchImageCommand(t *testing.T) {
	scenarios := []struct {
		Name        string
		Manifest    string
		Strict      bool
		Image       string
		ExpectedErr error
		ExpectImage string
	}{
		{Name: "image is set", Manifest: deploymentManifest, Image: "my-registry/lbc", ExpectImage: "image: my-registry/lbc:v2.6.0"},
		{Name: "missing Deployment is only a warning", Manifest: "kind: ConfigMap\n"},
		{Name: "missing Deployment fails in strict mode", Manifest: "kind: ConfigMap\n", Strict: true, ExpectedErr: manifest.ErrDeploymentNotFound},
		{Name: "no image configured", Manifest: deploymentManifest, Image: "-", ExpectedErr: config.ErrMissingControllerImage},
	}

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			image := scenario.Image
			switch image {
			case "":
				image = "my-registry/lbc"
			case "-":
				image = ""
			}
			withConfig(t, &config.Config{ControllerImage: image, ImageTag: "v2.6.0", StrictImagePatch: scenario.Strict})
			manifestPath := filepath.Join(t.TempDir(), "rendered.yaml")
			require.NoError(t, os.WriteFile(manifestPath, []byte(scenario.Manifest), 0o600))

			err := doPatchImageCommand(manifestPath)
			if scenario.ExpectedErr != nil {
				assert.ErrorIs(t, err, scenario.ExpectedErr)
				return
			}
			require.NoError(t, err)
			content, err := os.ReadFile(manifestPath)
			require.NoError(t, err)
			if scenario.ExpectImage != "" {
				assert.Contains(t, string(content), scenario.ExpectImage)
			} else {
				assert.Equal(t, scenario.Manifest, string(content))
			}
		})
	}
}

func TestEksSubcommands(t *testing.T) {
	eksCommand := BuildEksSubcommand()

	var names []string
	for _, command := range eksCommand.Commands() {
		names = append(names, command.Name())
	}
	assert.ElementsMatch(t, []string{"install", "ensure-policy", "ensure-service-account", "apply-crds", "patch-image", "verify"}, names)
	assert.NotNil(t, eksCommand.PersistentFlags().Lookup("skip-eks-hostname-check"))
	assert.NotNil(t, eksCommand.PersistentFlags().Lookup("strategy"))
}

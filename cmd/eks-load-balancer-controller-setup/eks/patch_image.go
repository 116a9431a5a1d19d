package eks

import (
	"errors"

	"github.com/datadog/eks-load-balancer-controller-setup/internal/config"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks"
	"github.com/datadog/eks-load-balancer-controller-setup/pkg/eks-load-balancer-controller-setup/eks/manifest"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func buildPatchImageCommand() *cobra.Command {
	patchImageCommand := &cobra.Command{
		Use:                   "patch-image <manifest-file>",
		Example:               "eks-load-balancer-controller-setup eks patch-image aws-load-balancer-controller.yaml --image my-registry/lbc:v2.5.4",
		Short:                 "Set the controller image in a rendered manifest",
		Long:                  "patch-image rewrites the image of the aws-load-balancer-controller container in the first Deployment of a rendered manifest. It works offline and never contacts the cluster.",
		Args:                  cobra.ExactArgs(1),
		DisableFlagsInUseLine: true,
		Annotations:           map[string]string{offlineAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return doPatchImageCommand(args[0])
		},
	}

	return patchImageCommand
}

func doPatchImageCommand(manifestPath string) error {
	image := cfg.ImageReference()
	if image == "" {
		return config.ErrMissingControllerImage
	}
	result, err := manifest.PatchImageFile(manifestPath, eks.ControllerName, image)
	if errors.Is(err, manifest.ErrDeploymentNotFound) || errors.Is(err, manifest.ErrContainerNotFound) {
		if cfg.StrictImagePatch {
			return err
		}
		log.Warn(color.YellowString("%s was not changed: %v", manifestPath, err))
		return nil
	}
	if err != nil {
		return err
	}
	if !result.Changed {
		log.Println(manifestPath + " already uses " + image)
		return nil
	}
	log.Printf("Deployment %s: container %s image changed from %s to %s", result.Deployment, result.Container, result.PreviousImage, result.Image)
	return nil
}

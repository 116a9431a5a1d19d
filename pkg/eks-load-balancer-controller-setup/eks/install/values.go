package install

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ChartValues are the values computed from the configuration and cluster
type ChartValues struct {
	ClusterName        string
	Region             string
	VpcID              string
	ServiceAccountName string
	ImageRepository    string
	ImageTag           string
}

func (v *ChartValues) toMap() map[string]any {
	values := map[string]any{
		"clusterName": v.ClusterName,
		"region":      v.Region,
		"serviceAccount": map[string]any{
			"create": false,
			"name":   v.ServiceAccountName,
		},
	}
	if v.VpcID != "" {
		values["vpcId"] = v.VpcID
	}
	image := map[string]any{}
	if v.ImageRepository != "" {
		image["repository"] = v.ImageRepository
	}
	if v.ImageTag != "" {
		image["tag"] = v.ImageTag
	}
	if len(image) > 0 {
		values["image"] = image
	}
	return values
}

// MergeValues merges the values files in order, later files winning, and then
// the computed values, which win over every file
func MergeValues(filenames []string, computed *ChartValues) (map[string]any, error) {
	mergedValues := make(map[string]any)
	for _, filename := range filenames {
		if filename == "" {
			continue
		}
		content, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("unable to read values file %s: %w", filename, err)
		}
		currentMap := make(map[string]any)
		if err := yaml.Unmarshal(content, &currentMap); err != nil {
			return nil, fmt.Errorf("unable to decode values file %s: %w", filename, err)
		}
		if err := mergo.Merge(&mergedValues, currentMap, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("unable to merge values from %s: %w", filename, err)
		}
	}
	if err := mergo.Merge(&mergedValues, computed.toMap(), mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("unable to merge computed values: %w", err)
	}
	return mergedValues, nil
}

// WriteValuesFile writes values to a new temporary file and returns its path.
// The caller removes the file.
func WriteValuesFile(values map[string]any) (string, error) {
	file, err := os.CreateTemp("", "lbc-values-*.yaml")
	if err != nil {
		return "", fmt.Errorf("unable to create values file: %w", err)
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(values); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("unable to write values file: %w", err)
	}
	if err := encoder.Close(); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("unable to write values file: %w", err)
	}
	return file.Name(), nil
}

// Package manifest rewrites rendered Kubernetes manifests.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrDeploymentNotFound = errors.New("no Deployment found in manifest")
	ErrContainerNotFound  = errors.New("container not found in Deployment")
)

type PatchResult struct {
	Deployment    string
	Container     string
	PreviousImage string
	Image         string
	Changed       bool
}

// PatchImage sets the image of the container named containerName in the first
// Deployment of a multi-document YAML stream. Other documents, and the order of
// all documents, are kept. When no such Deployment or container exists, the input
// is returned unchanged along with ErrDeploymentNotFound or ErrContainerNotFound.
func PatchImage(data []byte, containerName string, image string) ([]byte, *PatchResult, error) {
	documents, err := decodeDocuments(data)
	if err != nil {
		return nil, nil, err
	}

	deployment := findDeployment(documents)
	if deployment == nil {
		return data, nil, ErrDeploymentNotFound
	}
	result := &PatchResult{
		Deployment: scalarValue(lookup(deployment, "metadata", "name")),
		Container:  containerName,
		Image:      image,
	}

	container := findContainer(deployment, containerName)
	if container == nil {
		return data, nil, fmt.Errorf("%w: %s has no container named %s", ErrContainerNotFound, result.Deployment, containerName)
	}

	imageNode := lookup(container, "image")
	if imageNode != nil {
		result.PreviousImage = imageNode.Value
		if imageNode.Value == image {
			return data, result, nil
		}
		imageNode.Kind = yaml.ScalarNode
		imageNode.Tag = "!!str"
		imageNode.Value = image
	} else {
		container.Content = append(container.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "image"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: image},
		)
	}
	result.Changed = true

	patched, err := encodeDocuments(documents)
	if err != nil {
		return nil, nil, err
	}
	return patched, result, nil
}

// PatchImageFile patches a manifest file in place. The file is only written when
// the image actually changed.
func PatchImageFile(path string, containerName string, image string) (*PatchResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read manifest %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read manifest %s: %w", path, err)
	}

	patched, result, err := PatchImage(data, containerName, image)
	if err != nil {
		return result, err
	}
	if !result.Changed {
		return result, nil
	}
	if err := os.WriteFile(path, patched, info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("unable to write manifest %s: %w", path, err)
	}
	return result, nil
}

func decodeDocuments(data []byte) ([]*yaml.Node, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	var documents []*yaml.Node
	for {
		document := &yaml.Node{}
		err := decoder.Decode(document)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to parse manifest: %w", err)
		}
		documents = append(documents, document)
	}
	return documents, nil
}

func encodeDocuments(documents []*yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	for _, document := range documents {
		if err := encoder.Encode(document); err != nil {
			return nil, fmt.Errorf("unable to encode manifest: %w", err)
		}
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("unable to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// isEmpty matches documents that only hold comments or an explicit null
func isEmpty(document *yaml.Node) bool {
	if len(document.Content) == 0 {
		return true
	}
	root := document.Content[0]
	return root.Kind == yaml.ScalarNode && root.Tag == "!!null"
}

func findDeployment(documents []*yaml.Node) *yaml.Node {
	for _, document := range documents {
		if isEmpty(document) {
			continue
		}
		root := document.Content[0]
		if root.Kind == yaml.MappingNode && scalarValue(lookup(root, "kind")) == "Deployment" {
			return root
		}
	}
	return nil
}

func findContainer(deployment *yaml.Node, containerName string) *yaml.Node {
	containers := lookup(deployment, "spec", "template", "spec", "containers")
	if containers == nil || containers.Kind != yaml.SequenceNode {
		return nil
	}
	for _, container := range containers.Content {
		if container.Kind == yaml.MappingNode && scalarValue(lookup(container, "name")) == containerName {
			return container
		}
	}
	return nil
}

// lookup follows a path of mapping keys and returns the value node, or nil
func lookup(node *yaml.Node, path ...string) *yaml.Node {
	current := node
	for _, key := range path {
		if current == nil || current.Kind != yaml.MappingNode {
			return nil
		}
		var next *yaml.Node
		// mapping content alternates keys and values
		for i := 0; i+1 < len(current.Content); i += 2 {
			if current.Content[i].Value == key {
				next = current.Content[i+1]
				break
			}
		}
		current = next
	}
	return current
}

func scalarValue(node *yaml.Node) string {
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return node.Value
}

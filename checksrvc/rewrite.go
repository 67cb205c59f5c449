package checksrvc

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RewriteSecrets replaces previously captured secret values and repository
// URIs inside a YAML build-plan document with the freshly generated ones of
// the imported exercise. Replacement is exact-substring over scalar string
// nodes; structure, comments and anchors survive the round trip.
func RewriteSecrets(planDoc []byte, replacements map[string]string) ([]byte, error) {
	if len(replacements) == 0 {
		return planDoc, nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal(planDoc, &root); err != nil {
		return nil, fmt.Errorf("failed to parse build plan document: %w", err)
	}
	rewriteNode(&root, replacements)
	out, err := yaml.Marshal(&root)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize build plan document: %w", err)
	}
	return out, nil
}

func rewriteNode(node *yaml.Node, replacements map[string]string) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!str" {
		for old, replacement := range replacements {
			if old != "" && strings.Contains(node.Value, old) {
				node.Value = strings.ReplaceAll(node.Value, old, replacement)
			}
		}
	}
	for _, child := range node.Content {
		rewriteNode(child, replacements)
	}
}

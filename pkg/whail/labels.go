package whail

import "maps"

// LabelConfig defines labels to apply to created resources.
// All labels are optional - if a map is nil, no labels are applied.
type LabelConfig struct {
	// Default labels applied to every resource type.
	Default map[string]string

	// Container-specific labels (merged with Default)
	Container map[string]string
}

// MergeLabels merges multiple label maps, with later maps overriding earlier ones.
// Returns a new map containing all labels.
func MergeLabels(labelMaps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range labelMaps {
		maps.Copy(result, m)
	}
	return result
}

// ContainerLabels returns the merged labels for containers.
func (c *LabelConfig) ContainerLabels(extra ...map[string]string) map[string]string {
	all := append([]map[string]string{c.Default, c.Container}, extra...)
	return MergeLabels(all...)
}

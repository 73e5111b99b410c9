// Package docker adapts the Docker SDK to the harness: a narrow API surface,
// label conventions for resources the harness creates, and error taxonomy.
package docker

import "github.com/docker/docker/api/types/filters"

// LabelDomain is the reverse-DNS prefix shared by every harness label.
const LabelDomain = "dev.svcharness"

// Harness label keys for managed resources.
const (
	// LabelPrefix is the prefix for all harness labels.
	LabelPrefix = LabelDomain + "."

	// LabelManaged marks a resource as created by the harness.
	LabelManaged = LabelPrefix + "managed"

	// LabelTest marks a resource as created by a test run.
	LabelTest = LabelPrefix + "test"

	// LabelTestName identifies the test function that created a resource.
	LabelTestName = LabelPrefix + "test.name"

	// LabelRunID stores the run identifier of the container spec.
	LabelRunID = LabelPrefix + "run-id"

	// LabelImage stores the image reference a container was started from.
	LabelImage = LabelPrefix + "image"
)

// ManagedLabelValue is the value stored under LabelManaged and LabelTest.
const ManagedLabelValue = "true"

// ManagedLabels returns the base label set stamped on every harness resource.
func ManagedLabels() map[string]string {
	return map[string]string{LabelManaged: ManagedLabelValue}
}

// TestLabels returns labels identifying a resource created by the named test.
func TestLabels(testName string) map[string]string {
	labels := map[string]string{
		LabelManaged: ManagedLabelValue,
		LabelTest:    ManagedLabelValue,
	}
	if testName != "" {
		labels[LabelTestName] = testName
	}
	return labels
}

// MergeLabels merges label maps left to right; later maps win.
func MergeLabels(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// ManagedFilter returns a filter matching resources carrying LabelManaged.
func ManagedFilter() filters.Args {
	return filters.NewArgs(filters.Arg("label", LabelManaged+"="+ManagedLabelValue))
}

// TestFilter returns a filter matching resources created by test runs.
func TestFilter() filters.Args {
	return filters.NewArgs(filters.Arg("label", LabelTest+"="+ManagedLabelValue))
}

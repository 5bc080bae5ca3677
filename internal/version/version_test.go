package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringIncludesBuildInfo(t *testing.T) {
	Version, Commit = "1.2.3", "abc123"
	defer func() { Version, Commit = "dev", "unknown" }()

	out := String()
	assert.Contains(t, out, "dealsniper 1.2.3")
	assert.Contains(t, out, "commit: abc123")
	assert.Contains(t, out, "go: ")
}

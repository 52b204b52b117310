package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	v, c, d := Info()
	assert.Equal(t, Version, v)
	assert.Equal(t, GitCommit, c)
	assert.Equal(t, BuildDate, d)
}

func TestString(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	Version = "1.2.3"
	assert.Equal(t, "1.2.3 (commit: "+GitCommit+", built: "+BuildDate+")", String())
}

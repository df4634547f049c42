package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserAgent(t *testing.T) {
	v, c := Version, Commit
	t.Cleanup(func() { Version, Commit = v, c })

	Version, Commit = "v1.2.0", ""
	assert.Equal(t, "restfetch/v1.2.0", UserAgent())

	Commit = "abc1234"
	assert.Equal(t, "restfetch/v1.2.0 (abc1234)", UserAgent())
	assert.Equal(t, "abc1234", Info()["commit"])
}

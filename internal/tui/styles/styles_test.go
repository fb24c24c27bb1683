package styles

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressBar(t *testing.T) {
	bar := ProgressBar(50, 10)
	assert.Equal(t, 5, strings.Count(bar, "━"))
	assert.Equal(t, 5, strings.Count(bar, "─"))

	assert.Equal(t, 10, strings.Count(ProgressBar(250, 10), "━"))
}

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReal(t *testing.T) {
	before := time.Now()
	now := Real{}.Now()
	assert.False(t, now.Before(before))
	assert.GreaterOrEqual(t, Real{}.Since(before), time.Duration(0))
}

func TestOrReal(t *testing.T) {
	assert.Equal(t, Real{}, OrReal(nil))

	var c Clock = Real{}
	assert.Equal(t, c, OrReal(c))
}

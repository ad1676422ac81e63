package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelaxReturns(t *testing.T) {
	for i := 0; i < 1000; i++ {
		Relax()
	}
}

func TestPinNegativeIsNoop(t *testing.T) {
	assert.NoError(t, Pin(-1))
}

package operator

import (
	"testing"

	"github.com/notargets/gomodes/element"
	"github.com/notargets/gomodes/impedance"
)

func lineRule(t *testing.T, n int) ([]float64, []float64) {
	t.Helper()
	return element.LineRule(n, 0, 1)
}

func impedanceDerivative() impedance.Option { return impedance.WithFrequencyDerivatives() }

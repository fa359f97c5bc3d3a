package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, "efie", c.Operator.Kind)
	assert.Equal(t, "rwg", c.Operator.Basis)
	assert.Equal(t, 3, c.Operator.QuadratureOrder)
	assert.Equal(t, 2, c.Operator.SingularTerms)
	assert.Equal(t, 2, c.Solver.NumModes)
	assert.Equal(t, "max element", c.Solver.Weight)
	assert.Equal(t, "text", c.Logging.Format)
}

func TestLoadTOML(t *testing.T) {
	path := write(t, "sim.toml", `
[operator]
kind = "pmchwt"
quadrature_order = 4

[solver]
num_modes = 3
weight = "rayleigh_symmetric"

[sweep]
workers = 2

[logging]
level = "debug"
format = "json"
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pmchwt", c.Operator.Kind)
	assert.Equal(t, 4, c.Operator.QuadratureOrder)
	assert.Equal(t, 2, c.Operator.SingularTerms) // default
	assert.Equal(t, 3, c.Solver.NumModes)
	assert.Equal(t, 50, c.Solver.MaxIter)
	assert.Equal(t, 2, c.Sweep.Workers)
	assert.Equal(t, "json", c.Logging.Format)
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "sim.yml", `
operator:
  kind: ctf
  basis: loop_star
  singularity_accuracy: 1.0e-6
solver:
  max_iter: 20
  lambda_tol: 1.0e-10
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ctf", c.Operator.Kind)
	assert.Equal(t, "loop_star", c.Operator.Basis)
	assert.InDelta(t, 1e-6, c.Operator.SingularityAccuracy, 1e-20)
	assert.Equal(t, 20, c.Solver.MaxIter)
	assert.InDelta(t, 1e-10, c.Solver.LambdaTol, 1e-24)

	_, err = Load(write(t, "bad.yaml", "solver:\n  iterations: 4\n"))
	assert.Error(t, err)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = Load(write(t, "sim.json", "{}"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Load(write(t, "sim.toml", "[operator]\nkind = \"mom\"\n"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	_, err = Load(write(t, "sim.toml", "[operator]\nquadrature_order = 40\n[logging]\nformat = \"xml\"\n"))
	require.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "quadrature_order")
	assert.Contains(t, err.Error(), "logging.format")

	_, err = Load(write(t, "sim.toml", "[operator]\nbasis = \"rooftop\"\n"))
	require.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "operator.basis")

	_, err = Load(write(t, "sim.toml", "[operator\n"))
	assert.Error(t, err)
}

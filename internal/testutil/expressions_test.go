package testutil

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/slim/internal/slim"
)

func TestAffine_FreshButEqual(t *testing.T) {
	a, b := Affine(3), Affine(3)
	assert.NotSame(t, a, b)
	AssertExpressionEqual(t, a, b)
	assert.False(t, slim.ExpressionEqual(a, Affine(4)))
}

func TestAffine_IsClosed(t *testing.T) {
	assert.Empty(t, slim.GlobalParameters(Affine(2)))
	assert.True(t, slim.TypeEqual(IntFunc, slim.TypeOf(Affine(2))))
}

type recorder struct {
	testing.TB
	failures []string
}

func (r *recorder) Helper() {}

func (r *recorder) Errorf(format string, args ...any) {
	r.failures = append(r.failures, fmt.Sprintf(format, args...))
}

func TestAssertExpressionEqual_Reports(t *testing.T) {
	probe := &recorder{TB: t}
	AssertExpressionEqual(probe, Affine(1), Affine(1))
	require.Empty(t, probe.failures)

	AssertExpressionEqual(probe, Affine(1), Affine(2))
	require.Len(t, probe.failures, 1)
	assert.Contains(t, probe.failures[0], "expressions differ")
}

package pyerr_test

import (
	"testing"

	"github.com/pyglass/pyglass/pyerr"
	"github.com/stretchr/testify/assert"
)

func TestWithOnNilAccumulator(t *testing.T) {
	var errs *pyerr.Errors
	assert.False(t, errs.HasError())
	assert.Empty(t, errs.Errors())

	errs = errs.With(pyerr.New(pyerr.NewMroConflict{Class: "C", Detail: "cycle"}))
	assert.True(t, errs.HasError())
	assert.Len(t, errs.Errors(), 1)
	assert.Equal(t, pyerr.MroConflict, errs.Errors()[0].Code())
}

func TestMergeAccumulators(t *testing.T) {
	a := (*pyerr.Errors)(nil).With(pyerr.New(pyerr.NewNoSuchAttribute{Base: "Foo", Attribute: "x"}))
	b := (*pyerr.Errors)(nil).With(pyerr.New(pyerr.NewConstructionFailed{Class: "Foo", Reason: "bad args"}))

	merged := a.Merge(b)
	assert.Len(t, merged.Errors(), 2)

	assert.Same(t, a, a.Merge(nil))
	assert.Same(t, b, (*pyerr.Errors)(nil).Merge(b))
}

func TestFormatCarriesCode(t *testing.T) {
	err := pyerr.New(pyerr.NewNoSuchAttribute{Base: "Foo", Attribute: "x"})
	formatted := pyerr.FormatWithCode(err)
	assert.Contains(t, formatted, "(E002)")
	assert.Contains(t, formatted, "'Foo' has no attribute 'x'")
}

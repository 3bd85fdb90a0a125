package prismerr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prismlabs/prism/pkg/prismerr"
)

func TestUnitErrorWrapsAndUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := prismerr.NewUnitError("downloading page image", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "downloading page image")
	assert.Contains(t, err.Error(), "connection refused")

	var unitErr *prismerr.UnitError
	assert.True(t, errors.As(err, &unitErr))
}

func TestFatalUnitErrorWrapsAndUnwraps(t *testing.T) {
	cause := errors.New("unsupported format")
	err := prismerr.NewFatalUnitError("validating format", cause)

	assert.ErrorIs(t, err, cause)

	var fatalErr *prismerr.FatalUnitError
	assert.True(t, errors.As(err, &fatalErr))

	var unitErr *prismerr.UnitError
	assert.False(t, errors.As(err, &unitErr), "a FatalUnitError must not also match UnitError")
}

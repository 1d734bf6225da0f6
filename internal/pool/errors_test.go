package pool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrapAndKind(t *testing.T) {
	cause := errors.New("boom")
	err := newError("mypool", KindConnectFailed, cause)

	assert.ErrorIs(t, err, cause)

	var perr *Error
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, KindConnectFailed, perr.Kind)
	assert.Contains(t, err.Error(), "mypool")
	assert.Contains(t, err.Error(), "connect_failed")
}

func TestErrorWithoutCause(t *testing.T) {
	err := newError("mypool", KindRedirectionRequired, nil)
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, "pool mypool: redirection_required", err.Error())
}

package errors_test

import (
	"errors"
	"testing"

	interrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/stretchr/testify/require"
)

var errClass = errors.New("class")

func TestWrapf(t *testing.T) {
	require.Nil(t, interrors.Wrapf(nil, "ctx"))

	cause := errors.New("boom")
	err := interrors.Wrapf(cause, "loading %s", "key")
	require.EqualError(t, err, "loading key: boom")
	require.True(t, errors.Is(err, cause))
}

func TestClassify(t *testing.T) {
	require.Nil(t, interrors.Classify(errClass, nil))

	cause := errors.New("dial tcp: refused")
	err := interrors.Classify(errClass, cause)
	require.True(t, errors.Is(err, errClass))
	require.True(t, errors.Is(err, cause))

	// already classified errors are returned as is
	require.Same(t, err, interrors.Classify(errClass, err))
}

type statusError struct{ code int }

func (e *statusError) Error() string { return "status" }

func TestAs(t *testing.T) {
	err := interrors.Wrapf(&statusError{code: 503}, "calling api")
	se, ok := interrors.As[*statusError](err)
	require.True(t, ok)
	require.Equal(t, 503, se.code)

	_, ok = interrors.As[*statusError](errors.New("plain"))
	require.False(t, ok)
}

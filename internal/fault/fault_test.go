package fault

import (
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNotFound_Wrapped(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", NotFound("view", "/missing/"))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(fmt.Errorf("other")))
	assert.Equal(t, "view not found: /missing/", NotFound("view", "/missing/").Error())
}

func TestRequestError_DefaultStatus(t *testing.T) {
	re := &RequestError{Msg: "Invalid GET request"}
	assert.Equal(t, http.StatusBadRequest, re.StatusCode())

	err := Request(http.StatusMethodNotAllowed, "Invalid method %s", "PUT")
	var got *RequestError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, http.StatusMethodNotAllowed, got.StatusCode())
	assert.Contains(t, got.Error(), "Invalid method PUT")
}

func TestFatalInit(t *testing.T) {
	assert.NoError(t, FatalInit("config", nil))

	err := FatalInit("config", fmt.Errorf("no such file"))
	assert.Equal(t, "Init error! : config (reason : no such file)", err.Error())

	// Already fatal errors are not double wrapped.
	assert.Same(t, err, FatalInit("outer", err))
}

func TestStackTrace(t *testing.T) {
	plain := fmt.Errorf("boom")
	assert.Equal(t, "boom", StackTrace(plain))

	withStack := pkgerrors.WithStack(plain)
	trace := StackTrace(fmt.Errorf("controller: %w", withStack))
	assert.Contains(t, trace, "controller: boom")
	assert.Contains(t, trace, "TestStackTrace")
	assert.Empty(t, StackTrace(nil))
}

func TestIsParse(t *testing.T) {
	err := fmt.Errorf("view: %w", &ParseError{File: "a.html", Msg: "Wrong YAML header for view"})
	assert.True(t, IsParse(err))
	assert.Contains(t, err.Error(), "a.html: Wrong YAML header for view")
}

package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindForbidden, KindOf(Forbidden("nope")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", Conflict("email already registered"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "email already registered", MessageOf(err))
}

func TestInvalidTransitionNamesStatusAndAction(t *testing.T) {
	err := InvalidTransition("approved", "reject")
	assert.Equal(t, KindInvalidTransition, KindOf(err))
	assert.Contains(t, err.Message, "approved")
	assert.Contains(t, err.Message, "reject")
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("db down")
	err := Internal(inner)
	assert.ErrorIs(t, err, inner)
}

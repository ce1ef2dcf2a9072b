package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("loading plan: %w", ErrStorageUnavailable.Wrap(errors.New("connection refused")))

	assert.ErrorIs(t, wrapped, ErrStorageUnavailable)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, "STORAGE_UNAVAILABLE", CodeOf(wrapped))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{"plain", NewDomainError("X", "boom"), "boom"},
		{"wrapped", NewDomainError("X", "boom").Wrap(errors.New("cause")), "boom: cause"},
		{"custom message", ErrInvalidInput.WithMessage("bad plan"), "bad plan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestDomainError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := ErrStorageUnavailable.Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.Nil(t, ErrStorageUnavailable.Err, "Wrap must not mutate the sentinel")
}

package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeAndReasonLookup(t *testing.T) {
	blocked := WithReason(CodeStageBlocked, "required_documents_present", "documents missing")

	t.Run("outermost code wins", func(t *testing.T) {
		wrapped := Wrap(blocked, CodeInternal, "advance failed")
		assert.Equal(t, CodeInternal, CodeOf(wrapped))
		assert.True(t, HasCode(wrapped, CodeStageBlocked))
		assert.Equal(t, "required_documents_present", ReasonOf(wrapped))
	})

	t.Run("survives fmt wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("tx: %w", blocked)
		assert.Equal(t, CodeStageBlocked, CodeOf(wrapped))
		assert.True(t, HasCode(wrapped, CodeStageBlocked))
	})

	t.Run("plain errors are internal with no reason", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.False(t, HasCode(err, CodeInternal))
		assert.Empty(t, ReasonOf(err))
	})

	t.Run("wrap nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "unused"))
	})
}

func TestErrorString(t *testing.T) {
	cause := errors.New("connection reset")
	err := &Error{Code: CodeQuotaExceeded, Reason: "vendor", Message: "vendor limit reached", Err: cause}
	assert.Equal(t, "quota_exceeded: vendor limit reached (vendor): connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

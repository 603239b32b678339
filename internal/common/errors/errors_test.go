package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithItemIndex(t *testing.T) {
	t.Run("tags a plain error as node operation error", func(t *testing.T) {
		tagged := WithItemIndex(fmt.Errorf("socket closed"), 3)

		assert.Equal(t, ErrCodeNodeOperation, tagged.Code)
		assert.Equal(t, []int{3}, tagged.ItemIndices)
		assert.EqualError(t, stderrors.Unwrap(tagged), "socket closed")
	})

	t.Run("merges without mutating the original", func(t *testing.T) {
		original := NewParseError("data", fmt.Errorf("unexpected end of JSON input"))
		original.ItemIndices = []int{4}

		tagged := WithItemIndex(original, 1)

		assert.Equal(t, []int{1, 4}, tagged.ItemIndices)
		assert.Equal(t, []int{4}, original.ItemIndices)
		assert.Equal(t, ErrCodeParse, tagged.Code)
	})

	t.Run("does not duplicate an index", func(t *testing.T) {
		original := NewInvalidParameterError("template is required")
		original.ItemIndices = []int{2}

		assert.Equal(t, []int{2}, WithItemIndex(original, 2).ItemIndices)
	})

	t.Run("finds a wrapped standard error", func(t *testing.T) {
		wrapped := fmt.Errorf("render: %w", NewUpstreamRequestError(502, "bad gateway", nil))

		tagged := WithItemIndex(wrapped, 0)

		assert.Equal(t, ErrCodeUpstreamRequest, tagged.Code)
		assert.Equal(t, 502, tagged.Metadata["statusCode"])
	})
}

func TestStandardError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("item 0: %w", NewParseError("metadata", fmt.Errorf("invalid character")))

	assert.True(t, stderrors.Is(err, &StandardError{Code: ErrCodeParse}))
	assert.False(t, stderrors.Is(err, &StandardError{Code: ErrCodeUpstreamRequest}))
	assert.Equal(t, ErrCodeParse, CodeOf(err))
	assert.Equal(t, ErrCodeInternal, CodeOf(fmt.Errorf("plain")))
}

func TestUpstreamRequestError_Details(t *testing.T) {
	withStatus := NewUpstreamRequestError(422, `{"error":"unknown template"}`, nil)
	assert.Equal(t, `status 422: {"error":"unknown template"}`, withStatus.Details)
	assert.True(t, withStatus.Retryable)

	transport := NewUpstreamRequestError(0, "", fmt.Errorf("dial tcp: connection refused"))
	assert.Equal(t, "dial tcp: connection refused", transport.Details)
	assert.Nil(t, transport.Metadata)
}

func TestConvertToBPMNError(t *testing.T) {
	stdErr := WithItemIndex(NewParseError("data", fmt.Errorf("bad")), 5)

	bpmnErr := ConvertToBPMNError(stdErr)

	assert.Equal(t, "OUTPUTROCKS_PARSE_ERROR", bpmnErr.Code)
	assert.Equal(t, 0, bpmnErr.Retries)

	vars := bpmnErr.ToErrorVariables()
	require.Contains(t, vars, "itemIndex")
	assert.Equal(t, 5, vars["itemIndex"])
	assert.Equal(t, "PARSE_ERROR", vars["originalErrorCode"])
}

func TestGetRetryCount(t *testing.T) {
	assert.Equal(t, 3, GetRetryCount(ErrCodeWaitingStoreFailed))
	assert.Equal(t, 1, GetRetryCount(ErrCodeInternal))
	assert.Equal(t, 0, GetRetryCount(ErrCodeUpstreamRequest))
	assert.Equal(t, 3, GetRetryCount(ErrCodeEngineUnavailable))
	assert.Equal(t, 0, GetRetryCount(ErrCodeEngineRejected))
	assert.False(t, IsRetryableErrorCode(ErrCodeParse))
}

func TestNewEngineError(t *testing.T) {
	cause := fmt.Errorf("rpc error: code = Unavailable")

	transient := NewEngineError("publish message", cause, true)
	assert.Equal(t, ErrCodeEngineUnavailable, transient.Code)
	assert.True(t, transient.Retryable)
	assert.ErrorIs(t, transient, cause)

	rejected := NewEngineError("create instance", fmt.Errorf("not found"), false)
	assert.Equal(t, ErrCodeEngineRejected, rejected.Code)
	assert.False(t, rejected.Retryable)
	assert.Contains(t, rejected.Message, "create instance")
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeAuthMismatch:        "AUTH",
		ErrCodeCredentialNotFound:  "CREDENTIAL",
		ErrCodeUpstreamRequest:     "UPSTREAM",
		ErrCodeParse:               "VALIDATION",
		ErrCodeInvalidDelivery:     "VALIDATION",
		ErrCodeWaitingStoreFailed:  "WAITING",
		ErrCodeExecutionNotWaiting: "WAITING",
		ErrCodeEngineUnavailable:   "ENGINE",
		ErrCodeInternal:            "OTHER",
	}
	for code, want := range tests {
		assert.Equal(t, want, GetErrorCategory(code), string(code))
	}
}

package errors

import (
	stderrors "errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeUpload, "noop"))
}

func TestWrapPreservesCauseAndStack(t *testing.T) {
	inner := New(ErrorTypeConnection, "dial tcp")
	require.NotEmpty(t, inner.Stack)

	outer := Wrap(inner, ErrorTypeExtraction, "failed to fetch chunk")
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, stderrors.Is(outer, inner))
	assert.Equal(t, "extraction: failed to fetch chunk: connection: dial tcp", outer.Error())
}

func TestIsType(t *testing.T) {
	err := Wrap(io.EOF, ErrorTypeUpload, "put failed")

	assert.True(t, IsType(err, ErrorTypeUpload))
	assert.False(t, IsType(err, ErrorTypeExtraction))
	assert.False(t, IsType(io.EOF, ErrorTypeUpload))
}

func TestHasTypeWalksJoinedErrors(t *testing.T) {
	extraction := New(ErrorTypeExtraction, "cursor closed")
	aggregate := New(ErrorTypeAggregate, "2 chunks failed")
	combined := multierr.Append(extraction, aggregate)

	assert.True(t, HasType(combined, ErrorTypeExtraction))
	assert.True(t, HasType(combined, ErrorTypeAggregate))
	assert.False(t, HasType(combined, ErrorTypeConfig))
}

type chunkFailures []error

func (c chunkFailures) Error() string        { return "chunks failed" }
func (c chunkFailures) ErrorType() ErrorType { return ErrorTypeAggregate }
func (c chunkFailures) Unwrap() []error      { return c }

func TestHasTypeRecognisesTypedErrors(t *testing.T) {
	failures := chunkFailures{Wrap(io.ErrUnexpectedEOF, ErrorTypeUpload, "put failed")}
	combined := multierr.Append(New(ErrorTypeExtraction, "cursor closed"), failures)

	assert.True(t, HasType(failures, ErrorTypeAggregate))
	assert.True(t, HasType(failures, ErrorTypeUpload))
	assert.True(t, HasType(combined, ErrorTypeAggregate))
	assert.False(t, IsType(failures, ErrorTypeAggregate))
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeTransform, "record %d has no id", 7)
	assert.Equal(t, "transform: record 7 has no id", err.Error())
}

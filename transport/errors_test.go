package transport_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"

	"github.com/nodalrpc/nodal/transport"
)

func TestClassifyErrorMapsContextErrors(t *testing.T) {
	assert.Equal(t, codes.Canceled, transport.ClassifyError(context.Canceled).Code())
	assert.Equal(t, codes.DeadlineExceeded, transport.ClassifyError(context.DeadlineExceeded).Code())
}

func TestClassifyErrorMapsConnectionReset(t *testing.T) {
	s := transport.ClassifyError(errors.New("connection reset by peer"))
	assert.Equal(t, codes.Unavailable, s.Code())
}

func TestClassifyErrorFallsBackToUnknown(t *testing.T) {
	s := transport.ClassifyError(errors.New("something bizarre"))
	assert.Equal(t, codes.Unknown, s.Code())
}

func TestClassifyErrorOKOnNil(t *testing.T) {
	s := transport.ClassifyError(nil)
	assert.Equal(t, codes.OK, s.Code())
}

package ddiclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransportErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := &TransportError{Endpoint: "https://host/v1", Attempts: 3, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "3 attempts")
}

func TestUnexpectedPayloadUnwrap(t *testing.T) {
	inner := errors.New("unexpected end of JSON input")
	err := &UnexpectedPayload{Endpoint: "https://host/v1", Err: inner}

	assert.ErrorIs(t, err, inner)
}

func TestClientErrorMessage(t *testing.T) {
	err := &ClientError{Endpoint: "https://host/v1", StatusCode: 404}
	assert.Contains(t, err.Error(), "404")
}

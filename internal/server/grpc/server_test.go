package grpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

func TestToStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"nil", nil, codes.OK},
		{"conflict", errorbank.Conflict("taken"), codes.Aborted},
		{"invalid transition", errorbank.InvalidTransition("not paid"), codes.FailedPrecondition},
		{"not found wrapped", errors.Join(errors.New("ctx"), errorbank.NotFound("missing")), codes.NotFound},
		{"plain error", errors.New("boom"), codes.Internal},
		{"existing status", status.Error(codes.Unavailable, "down"), codes.Unavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, status.Code(ToStatus(tc.err)))
		})
	}
}

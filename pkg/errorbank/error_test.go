package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestKindMappings(t *testing.T) {
	cases := []struct {
		err  *AppError
		http int
		grpc codes.Code
	}{
		{Validation("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{InvalidTransition("nope"), http.StatusConflict, codes.FailedPrecondition},
		{PricingUnavailable("no plan"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Conflict("raced"), http.StatusConflict, codes.Aborted},
		{NotFound("missing"), http.StatusNotFound, codes.NotFound},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.http, tc.err.StatusCode())
			assert.Equal(t, tc.grpc, tc.err.GRPCCode())
		})
	}
}

func TestIsSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("confirm: %w", InvalidTransition("already confirmed"))
	assert.True(t, Is(err, KindInvalidTransition))
	assert.False(t, Is(err, KindConflict))
	assert.False(t, Is(errors.New("plain"), KindInternal))
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("socket closed")
	appErr := From(cause)
	assert.Equal(t, KindInternal, appErr.Kind())
	assert.ErrorIs(t, appErr, cause)
	assert.Nil(t, From(nil))

	details := NotFound("order not found", WithDetail("order_id", 4)).Details()
	assert.Equal(t, 4, details["order_id"])
}

package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromResponse_PayloadShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		status  int
		body    string
		code    string
		message string
	}{
		{"nested", 400, `{"error":{"code":"CODE_EXPIRED","message":"code expired"}}`, "CODE_EXPIRED", "code expired"},
		{"string", 400, `{"error":"code already used"}`, "BAD_REQUEST", "code already used"},
		{"message", 409, `{"message":"email taken"}`, "CONFLICT", "email taken"},
		{"empty", 500, ``, "UPSTREAM_ERROR", GenericMessage},
		{"html", 502, `<html>bad gateway</html>`, "UPSTREAM_ERROR", GenericMessage},
		{"blank message", 401, `{"error":"  "}`, "UNAUTHORIZED", GenericMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de := FromResponse(tc.status, []byte(tc.body))
			require.Equal(t, tc.code, de.Code)
			require.Equal(t, tc.message, de.Message)
			require.Equal(t, tc.status, de.HTTPStatus)
		})
	}
}

func TestClassification(t *testing.T) {
	t.Parallel()

	netErr := NetworkError("GET /api/me", errors.New("connection refused"))
	require.True(t, IsNetwork(netErr))
	require.True(t, IsNetwork(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	require.False(t, IsNetwork(nil))
	require.False(t, IsNetwork(FromResponse(http.StatusBadRequest, nil)))

	require.True(t, IsUnauthenticated(FromResponse(http.StatusUnauthorized, nil)))
	require.True(t, IsUnauthenticated(fmt.Errorf("me: %w", FromResponse(http.StatusForbidden, nil))))
	require.False(t, IsUnauthenticated(FromResponse(http.StatusInternalServerError, nil)))
	require.False(t, IsUnauthenticated(netErr))
}

func TestUserMessageAndToDomainError(t *testing.T) {
	t.Parallel()

	require.Equal(t, "code expired", UserMessage(FromResponse(400, []byte(`{"error":"code expired"}`))))
	require.Contains(t, UserMessage(NetworkError("x", errors.New("dial"))), "could not be reached")
	require.Equal(t, GenericMessage, UserMessage(errors.New("boom")))

	require.Equal(t, http.StatusBadGateway, ToDomainError(NetworkError("x", errors.New("dial"))).HTTPStatus)
	require.Equal(t, "INTERNAL_ERROR", ToDomainError(errors.New("boom")).Code)
	require.Nil(t, ToDomainError(nil))
}

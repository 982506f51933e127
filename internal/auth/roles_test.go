package auth

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Behnamfe76/ticket-portal/internal/domain"
)

func TestHasAnyRole(t *testing.T) {
	t.Parallel()
	owner := &domain.User{Role: domain.RoleHotelOwner}
	customer := &domain.User{Role: domain.RoleCustomer}

	require.True(t, HasAnyRole(owner, domain.RoleAdmin, domain.RoleHotelOwner))
	require.False(t, HasAnyRole(customer, domain.RoleAdmin))
	require.True(t, HasAnyRole(customer))
	require.False(t, HasAnyRole(nil))

	require.True(t, IsStaff(owner))
	require.False(t, IsStaff(customer))
}

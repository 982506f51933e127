package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUser_HasRole(t *testing.T) {
	t.Parallel()

	var nilUser *User
	require.False(t, nilUser.HasRole(RoleAdmin))

	u := &User{Role: RoleCustomer, Roles: []RoleRecord{{ID: "r1", Name: RoleHotelOwner}}}
	require.True(t, u.HasRole(RoleCustomer))
	require.True(t, u.HasRole(RoleHotelOwner))
	require.False(t, u.HasRole(RoleAdmin))
}

package auth

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"otakuhub/pkg/models"
)

func TestSafeMethod(t *testing.T) {
	require.True(t, SafeMethod(http.MethodGet))
	require.True(t, SafeMethod(http.MethodHead))
	require.True(t, SafeMethod(http.MethodOptions))
	require.False(t, SafeMethod(http.MethodPost))
	require.False(t, SafeMethod(http.MethodPatch))
	require.False(t, SafeMethod(http.MethodDelete))
}

func TestCanMutate(t *testing.T) {
	require.False(t, CanMutate(nil))
	require.True(t, CanMutate(&models.User{ID: "a"}))
}

func TestCanMutateOwned(t *testing.T) {
	owner := &models.User{ID: "a"}
	other := &models.User{ID: "b"}
	admin := &models.User{ID: "c", IsSuperuser: true}

	require.False(t, CanMutateOwned(nil, "a"))
	require.True(t, CanMutateOwned(owner, "a"))
	require.False(t, CanMutateOwned(other, "a"))
	require.True(t, CanMutateOwned(admin, "a"))

	// empty owner never matches a plain user
	require.False(t, CanMutateOwned(&models.User{ID: ""}, ""))
}

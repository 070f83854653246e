package eaip

import (
	"context"
	"testing"

	"eaipviewer/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestValidateAdmin(t *testing.T) {
	portal := newFakePortal(t)
	client := loggedInClient(t, portal, telemetry.NewRecorder())

	check, err := client.ValidateAdmin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 200, check.Code)
	require.Equal(t, "not an administrator", check.Message)
	require.JSONEq(t, "false", string(check.Data))
	require.Equal(t, 1, portal.Logins())
}

func TestValidateAdminAfterExpiry(t *testing.T) {
	portal := newFakePortal(t)
	client := loggedInClient(t, portal, telemetry.NewRecorder())
	portal.expireSession()

	check, err := client.ValidateAdmin(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 200, check.Code)
	require.Equal(t, 2, portal.Logins())
	require.Equal(t, 2, count(portal.Events(), "admin"))
}

func TestPublications(t *testing.T) {
	portal := newFakePortal(t)
	client := loggedInClient(t, portal, telemetry.NewRecorder())

	data, err := client.Publications(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, countEntries(data))
	require.Equal(t, 2, countEntries([]byte(`{"data":[1,2]}`)))
	require.Zero(t, countEntries([]byte(`"text"`)))
}

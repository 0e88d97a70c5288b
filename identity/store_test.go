package identity_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mdouchement/actuatord/identity"
	"github.com/stretchr/testify/require"
)

func TestMissing(t *testing.T) {
	s, err := identity.Open(filepath.Join(t.TempDir(), "identity.yml"))
	require.NoError(t, err)

	_, err = s.DeviceID()
	require.ErrorIs(t, err, identity.ErrMissing)
}

func TestUnknownIsMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yml")
	require.NoError(t, os.WriteFile(path, []byte("robot:\n  DEVICE_ID: unknown\n"), 0o644))

	s, err := identity.Open(path)
	require.NoError(t, err)

	_, err = s.DeviceID()
	require.ErrorIs(t, err, identity.ErrMissing)
}

func TestInvalidStoredIdentity(t *testing.T) {
	for _, id := range []string{"ALL", "'DEV:1'", "'DEV 1'"} {
		t.Run(id, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "identity.yml")
			require.NoError(t, os.WriteFile(path, []byte("robot:\n  DEVICE_ID: "+id+"\n"), 0o644))

			s, err := identity.Open(path)
			require.NoError(t, err)

			_, err = s.DeviceID()
			require.ErrorIs(t, err, identity.ErrInvalid)
		})
	}
}

func TestProvision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "identity.yml")

	s, err := identity.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("other", "KEY", "value"))
	require.NoError(t, s.Provision("SR_01"))

	s, err = identity.Open(path)
	require.NoError(t, err)

	id, err := s.DeviceID()
	require.NoError(t, err)
	require.Equal(t, "SR_01", id)

	v, ok := s.Get("other", "KEY")
	require.True(t, ok)
	require.Equal(t, "value", v)
}

func TestValidate(t *testing.T) {
	require.NoError(t, identity.Validate("DEV1"))
	require.ErrorIs(t, identity.Validate(""), identity.ErrMissing)
	require.Error(t, identity.Validate("DEV:1"))
	require.Error(t, identity.Validate("DEV 1"))
	require.Error(t, identity.Validate("ALL"))
}

func TestEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity.yml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := identity.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Provision("DEV2"))
}

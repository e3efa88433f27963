package memory

import (
	"context"
	"testing"

	"github.com/MrEthical07/authservice"
	"github.com/MrEthical07/authservice/password"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.New(password.Params{
		MemoryKB:    8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	require.NoError(t, err)
	return h
}

func testRealm(t *testing.T) *Realm {
	t.Helper()
	realm, err := NewBuilder(testHasher(t)).
		Role("developer", "do_actual_work").
		Role("manager", "play_golf", "say_buzzwords").
		Role("morris_dancer", "dance").
		User("tim", "sausages", "morris_dancer", "developer").
		User("bob", "hispassword", "developer", "manager").
		Build()
	require.NoError(t, err)
	return realm
}

func TestVerifyResolvesRolesAndPermissions(t *testing.T) {
	realm := testRealm(t)

	p, err := realm.Verify(context.Background(), authservice.Credentials{"username": "tim", "password": "sausages"})
	require.NoError(t, err)
	assert.Equal(t, "tim", p.ID())
	assert.Equal(t, []string{"developer", "morris_dancer"}, p.Roles())
	assert.Equal(t, []string{"dance", "do_actual_work"}, p.Permissions())
	assert.False(t, p.HasRole("manager"))

	p, err = realm.Verify(context.Background(), authservice.Credentials{"username": "bob", "password": "hispassword"})
	require.NoError(t, err)
	assert.Equal(t, []string{"do_actual_work", "play_golf", "say_buzzwords"}, p.Permissions())
}

func TestVerifyRejectsBadCredentials(t *testing.T) {
	realm := testRealm(t)

	cases := map[string]authservice.Credentials{
		"wrong password":   {"username": "tim", "password": "wrongpassword"},
		"unknown user":     {"username": "alice", "password": "sausages"},
		"missing password": {"username": "tim"},
		"missing username": {"password": "sausages"},
		"non-string":       {"username": "tim", "password": 42},
		"empty":            {},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := realm.Verify(context.Background(), creds)
			require.ErrorIs(t, err, authservice.ErrInvalidCredentials)
		})
	}
}

func TestBuildRejectsUnknownRole(t *testing.T) {
	_, err := NewBuilder(testHasher(t)).
		Role("developer").
		User("tim", "sausages", "developer", "astronaut").
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "astronaut")
}

func TestBuildRejectsDuplicateUser(t *testing.T) {
	_, err := NewBuilder(testHasher(t)).
		Role("developer").
		User("tim", "sausages", "developer").
		User("tim", "other", "developer").
		Build()
	require.Error(t, err)
}

func TestBuildRequiresHasher(t *testing.T) {
	_, err := NewBuilder(nil).Role("developer").Build()
	require.Error(t, err)
}

func TestUserWithHash(t *testing.T) {
	h := testHasher(t)
	hash, err := h.Hash("wibble")
	require.NoError(t, err)

	realm, err := NewBuilder(h).Role("viewer").UserWithHash("tim", hash, "viewer").Build()
	require.NoError(t, err)

	_, err = realm.Verify(context.Background(), authservice.Credentials{"username": "tim", "password": "wibble"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tim"}, realm.Users())
}

func TestVerifyHonoursCancelledContext(t *testing.T) {
	realm := testRealm(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := realm.Verify(ctx, authservice.Credentials{"username": "tim", "password": "sausages"})
	require.ErrorIs(t, err, context.Canceled)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace/internal/domain"
	"marketplace/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjustScoresKeepsOverallInSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.makeAdmin(t, f.register(t, "gandalf"))
	u := f.register(t, "pippin")

	got, err := f.users.AdjustScores(ctx, admin, u.ID, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, 10, got.GameScore)
	assert.Equal(t, 3, got.ActivityScore)
	assert.Equal(t, 13, got.OverallScore)

	got, err = f.users.AdjustScores(ctx, admin, u.ID, -4, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, got.GameScore)
	assert.Equal(t, 4, got.ActivityScore)
	assert.Equal(t, 10, got.OverallScore)

	_, err = f.users.AdjustScores(ctx, admin, 9999, 1, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = f.users.AdjustScores(ctx, claimsOf(u), u.ID, 1, 1)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.makeAdmin(t, f.register(t, "gandalf"))
	merry := f.register(t, "merry")
	pippin := f.register(t, "pippin")

	city := "Buckland"
	got, err := f.users.UpdateProfile(ctx, claimsOf(merry), merry.ID, ProfilePatch{AddressCity: &city})
	require.NoError(t, err)
	assert.Equal(t, city, got.AddressCity)
	assert.Equal(t, "merry", got.Username)

	_, err = f.users.UpdateProfile(ctx, claimsOf(pippin), merry.ID, ProfilePatch{AddressCity: &city})
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	taken := "pippin"
	_, err = f.users.UpdateProfile(ctx, claimsOf(merry), merry.ID, ProfilePatch{Username: &taken})
	assert.True(t, errors.Is(err, domain.ErrDuplicateIdentity))

	// Usernames and emails share one namespace
	shadow := "pippin@example.com"
	_, err = f.users.UpdateProfile(ctx, claimsOf(merry), merry.ID, ProfilePatch{Username: &shadow})
	assert.True(t, errors.Is(err, domain.ErrDuplicateIdentity))

	email := "meriadoc@example.com"
	got, err = f.users.UpdateProfile(ctx, admin, merry.ID, ProfilePatch{Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, got.Email)

	password := "new-secret"
	_, err = f.users.UpdateProfile(ctx, claimsOf(merry), merry.ID, ProfilePatch{Password: &password})
	require.NoError(t, err)
	_, err = f.auth.Authenticate(ctx, "merry", "new-secret")
	assert.NoError(t, err)
}

func TestListUsersIsAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.makeAdmin(t, f.register(t, "gandalf"))
	u := f.register(t, "sam")

	users, total, err := f.users.List(ctx, admin, utils.NewPage(1, 1))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, users, 1)
	assert.Equal(t, "gandalf", users[0].Username)

	_, _, err = f.users.List(ctx, claimsOf(u), utils.NewPage(1, 10))
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestUserLookupsAreCachedAndInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	f.users.Cache = utils.NewCache(rdb, time.Minute)

	admin := f.makeAdmin(t, f.register(t, "gandalf"))
	u := f.register(t, "sam")

	got, err := f.users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "sam", got.Username)
	assert.True(t, mr.Exists(utils.UserKey(u.ID)))
	assert.NotContains(t, mr.Dump(), "$2a$", "password hash must not be cached")

	_, err = f.users.AdjustScores(ctx, admin, u.ID, 5, 0)
	require.NoError(t, err)
	assert.False(t, mr.Exists(utils.UserKey(u.ID)))

	got, err = f.users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.OverallScore)
}

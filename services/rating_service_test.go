package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/photoshare/models"
)

func TestRatePost(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "alice", models.RoleUser)
	fan := env.addUser(t, "bobby", models.RoleUser)
	critic := env.addUser(t, "carol", models.RoleUser)
	post := env.addPost(t, owner, "sunset")

	_, err := env.ratings.Average(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.ratings.Rate(ctx, ActorOf(owner), post.ID, 5)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.ratings.Rate(ctx, ActorOf(fan), post.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.ratings.Rate(ctx, ActorOf(fan), post.ID, 6)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.ratings.Rate(ctx, ActorOf(fan), 9999, 3)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.ratings.Rate(ctx, ActorOf(fan), post.ID, 2)
	require.NoError(t, err)
	r, err := env.ratings.Rate(ctx, ActorOf(fan), post.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Score)
	_, err = env.ratings.Rate(ctx, ActorOf(critic), post.ID, 1)
	require.NoError(t, err)

	sum, err := env.ratings.Average(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Count)
	assert.InDelta(t, 2.5, sum.Average, 0.001)
}

func TestDeleteRatingRequiresModerator(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "alice", models.RoleUser)
	fan := env.addUser(t, "bobby", models.RoleUser)
	mod := env.addUser(t, "molly", models.RoleModerator)
	post := env.addPost(t, owner, "sunset")
	r, err := env.ratings.Rate(ctx, ActorOf(fan), post.ID, 3)
	require.NoError(t, err)

	assert.ErrorIs(t, env.ratings.Delete(ctx, ActorOf(fan), r.ID), ErrForbidden)
	require.NoError(t, env.ratings.Delete(ctx, ActorOf(mod), r.ID))
	assert.ErrorIs(t, env.ratings.Delete(ctx, ActorOf(mod), r.ID), ErrNotFound)
}

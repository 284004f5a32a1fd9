package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/photoshare/models"
)

func TestResolveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.tags.Resolve(env.db, []string{"a", "b"})
	require.NoError(t, err)
	second, err := env.tags.Resolve(env.db, []string{"B", "a", "a"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, tagNames(first))
	assert.ElementsMatch(t, first, second)
	assert.Equal(t, int64(2), count(t, env.db, &models.Tag{}, ""))

	empty, err := env.tags.Resolve(env.db, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = env.tags.Resolve(env.db, []string{"a", "b", "c", "d", "e", "f"})
	assert.ErrorIs(t, err, ErrTooManyTags)
}

func TestListTagsWithCounts(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addUser(t, "alice", models.RoleUser)
	env.addPost(t, owner, "one", "sky", "sea")
	env.addPost(t, owner, "two", "sky")
	_, err := env.tags.Resolve(env.db, []string{"unused"})
	require.NoError(t, err)

	list, err := env.tags.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "sky", list[0].Name)
	assert.Equal(t, int64(2), list[0].Posts)
	assert.Equal(t, "sea", list[1].Name)
	assert.Equal(t, int64(1), list[1].Posts)
	assert.Equal(t, "unused", list[2].Name)
	assert.Zero(t, list[2].Posts)
}

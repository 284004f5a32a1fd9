package services

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/transform"
)

func tagNames(tags []models.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, t.Name)
	}
	return out
}

func TestCreatePostReusesTags(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addUser(t, "alice", models.RoleUser)
	require.NoError(t, env.db.Create(&models.Tag{Name: "a"}).Error)

	post := env.addPost(t, owner, "sunset", "A", "b", " a ")

	assert.ElementsMatch(t, []string{"a", "b"}, tagNames(post.Tags))
	assert.Equal(t, int64(2), count(t, env.db, &models.Tag{}, ""))
	assert.Equal(t, owner.ID, post.User.ID)
	assert.True(t, env.host.Has(post.ImagePublicID))
	assert.Contains(t, post.Image, "http://img.test/posts/")
}

func TestCreatePostTooManyTags(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addUser(t, "alice", models.RoleUser)

	_, err := env.posts.Create(context.Background(), ActorOf(owner), CreatePostInput{
		Title:    "x",
		Tags:     []string{"a", "b", "c", "d", "e", "f"},
		FileName: "photo.png",
		File:     bytes.NewReader(pngBytes(t, 8, 8)),
	})
	assert.ErrorIs(t, err, ErrTooManyTags)
	assert.Equal(t, 0, env.host.Len())
	assert.Equal(t, int64(0), count(t, env.db, &models.Post{}, ""))
	assert.Equal(t, int64(0), count(t, env.db, &models.Tag{}, ""))

	// duplicates collapse before counting
	env.addPost(t, owner, "ok", "a", "A", "b", "c", "d", "e")
}

func TestCreatePostValidation(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addUser(t, "alice", models.RoleUser)
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreatePostInput
	}{
		{"not an image", CreatePostInput{Title: "x", FileName: "notes.txt", File: bytes.NewReader([]byte("hi"))}},
		{"text named as jpg", CreatePostInput{Title: "x", FileName: "photo.jpg", File: bytes.NewReader([]byte("plain text, not a picture"))}},
		{"svg", CreatePostInput{Title: "x", FileName: "photo.svg", File: bytes.NewReader([]byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(1)</script></svg>`))}},
		{"missing file", CreatePostInput{Title: "x", FileName: "photo.png"}},
		{"empty title", CreatePostInput{Title: "  ", FileName: "photo.png", File: bytes.NewReader(pngBytes(t, 4, 4))}},
		{"bad tag", CreatePostInput{Title: "x", Tags: []string{"no spaces"}, FileName: "photo.png", File: bytes.NewReader(pngBytes(t, 4, 4))}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.posts.Create(ctx, ActorOf(owner), tt.in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Equal(t, 0, env.host.Len())
}

func TestCreatePostNamesObjectAfterContent(t *testing.T) {
	env := newTestEnv(t)
	owner := env.addUser(t, "alice", models.RoleUser)

	post, err := env.posts.Create(context.Background(), ActorOf(owner), CreatePostInput{
		Title:    "mislabelled",
		FileName: "photo.gif",
		File:     bytes.NewReader(pngBytes(t, 8, 8)),
		Size:     -1,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(post.ImagePublicID, ".png"), post.ImagePublicID)
	assert.True(t, env.host.Has(post.ImagePublicID))
}

func TestTransformUnreadableOriginalIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "alice", models.RoleUser)
	post := env.addPost(t, owner, "sunset")

	_, err := env.host.Upload(ctx, post.ImagePublicID, strings.NewReader("corrupted"), -1, "image/png")
	require.NoError(t, err)

	_, err = env.posts.Transform(ctx, ActorOf(owner), post.ID, transform.Params{Kind: transform.KindRounded, Radius: 4})
	assert.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, transform.ErrUnsupportedImage)
}

func TestUpdateDescriptionOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "alice", models.RoleUser)
	other := env.addUser(t, "bobby", models.RoleUser)
	mod := env.addUser(t, "molly", models.RoleModerator)
	post := env.addPost(t, owner, "sunset")

	_, err := env.posts.UpdateDescription(ctx, ActorOf(other), post.ID, "hijack")
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := env.posts.UpdateDescription(ctx, ActorOf(owner), post.ID, "<b>golden</b> hour")
	require.NoError(t, err)
	assert.Equal(t, "golden hour", updated.Description)

	updated, err = env.posts.UpdateDescription(ctx, ActorOf(mod), post.ID, "moderated")
	require.NoError(t, err)
	assert.Equal(t, "moderated", updated.Description)

	_, err = env.posts.UpdateDescription(ctx, ActorOf(owner), 9999, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeletePostRemovesAssociations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "alice", models.RoleUser)
	fan := env.addUser(t, "bobby", models.RoleUser)
	post := env.addPost(t, owner, "sunset", "sky", "sea")
	keep := env.addPost(t, owner, "forest", "sky")

	_, err := env.comments.Create(ctx, ActorOf(fan), post.ID, "nice")
	require.NoError(t, err)
	_, err = env.ratings.Rate(ctx, ActorOf(fan), post.ID, 5)
	require.NoError(t, err)
	_, err = env.posts.Transform(ctx, ActorOf(owner), post.ID, transform.Params{Kind: transform.KindCrop, Width: 16, Height: 16})
	require.NoError(t, err)
	post, err = env.posts.GenerateQR(ctx, ActorOf(owner), post.ID)
	require.NoError(t, err)
	ids := post.PublicIDs()
	require.Len(t, ids, 3)

	assert.ErrorIs(t, env.posts.Delete(ctx, ActorOf(fan), post.ID), ErrForbidden)
	require.NoError(t, env.posts.Delete(ctx, ActorOf(owner), post.ID))

	_, err = env.posts.Get(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(0), count(t, env.db, &models.Comment{}, "post_id = ?", post.ID))
	assert.Equal(t, int64(0), count(t, env.db, &models.Rating{}, "post_id = ?", post.ID))
	var links int64
	require.NoError(t, env.db.Table("post_tags").Where("post_id = ?", post.ID).Count(&links).Error)
	assert.Zero(t, links)
	assert.Equal(t, int64(2), count(t, env.db, &models.Tag{}, ""))
	for _, id := range ids {
		assert.False(t, env.host.Has(id), id)
	}
	assert.True(t, env.host.Has(keep.ImagePublicID))
}

func TestDeletePostQueuesOrphansWhenHostFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "alice", models.RoleUser)
	post := env.addPost(t, owner, "sunset")

	env.host.down = true
	require.NoError(t, env.posts.Delete(ctx, ActorOf(owner), post.ID))
	assert.Equal(t, int64(1), count(t, env.db, &models.OrphanAsset{}, "public_id = ?", post.ImagePublicID))

	reaper := NewAssetReaper(env.db, env.host, env.posts.logger, 10)
	n, err := reaper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	var orphan models.OrphanAsset
	require.NoError(t, env.db.First(&orphan).Error)
	assert.Equal(t, 1, orphan.Attempts)
	assert.Contains(t, orphan.LastError, "unavailable")

	env.host.down = false
	n, err = reaper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, env.host.Has(post.ImagePublicID))
	assert.Equal(t, int64(0), count(t, env.db, &models.OrphanAsset{}, ""))
}

func TestTransformReplacesPreviousResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "alice", models.RoleUser)
	other := env.addUser(t, "bobby", models.RoleUser)
	post := env.addPost(t, owner, "sunset")

	_, err := env.posts.Transform(ctx, ActorOf(other), post.ID, transform.Params{Kind: transform.KindCrop, Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = env.posts.Transform(ctx, ActorOf(owner), post.ID, transform.Params{Kind: transform.KindCrop})
	assert.ErrorIs(t, err, ErrValidation)

	first, err := env.posts.Transform(ctx, ActorOf(owner), post.ID, transform.Params{Kind: transform.KindCrop, Width: 20, Height: 10})
	require.NoError(t, err)
	require.NotEmpty(t, first.TransformedImage)
	var spec transform.Params
	require.NoError(t, json.Unmarshal([]byte(first.TransformSpec), &spec))
	assert.Equal(t, transform.KindCrop, spec.Kind)

	rc, err := env.host.Open(ctx, first.TransformedPublicID)
	require.NoError(t, err)
	img, err := transform.Decode(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 10, img.Bounds().Dy())

	withQR, err := env.posts.GenerateQR(ctx, ActorOf(owner), post.ID)
	require.NoError(t, err)

	second, err := env.posts.Transform(ctx, ActorOf(owner), post.ID, transform.Params{Kind: transform.KindRounded, Radius: 8})
	require.NoError(t, err)
	assert.NotEqual(t, first.TransformedPublicID, second.TransformedPublicID)
	assert.False(t, env.host.Has(first.TransformedPublicID))
	assert.False(t, env.host.Has(withQR.QRPublicID))
	assert.Empty(t, second.TransformedImageQR)
	assert.True(t, env.host.Has(post.ImagePublicID))
}

func TestQRRequiresTransformedImage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "alice", models.RoleUser)
	post := env.addPost(t, owner, "sunset")

	_, err := env.posts.GenerateQR(ctx, ActorOf(owner), post.ID)
	assert.ErrorIs(t, err, ErrNoTransformedImage)
	_, err = env.posts.TransformedLinks(ctx, post.ID)
	assert.ErrorIs(t, err, ErrNoTransformedImage)

	_, err = env.posts.Transform(ctx, ActorOf(owner), post.ID, transform.Params{Kind: transform.KindImprove, Mode: "auto"})
	require.NoError(t, err)
	withQR, err := env.posts.GenerateQR(ctx, ActorOf(owner), post.ID)
	require.NoError(t, err)
	assert.True(t, env.host.Has(withQR.QRPublicID))

	links, err := env.posts.TransformedLinks(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, withQR.TransformedImage, links.TransformedImage)
	assert.Equal(t, withQR.TransformedImageQR, links.TransformedImageQR)
}

func TestSearchPosts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.addUser(t, "alice", models.RoleUser)
	bobby := env.addUser(t, "bobby", models.RoleUser)
	env.addPost(t, alice, "mountain lake", "nature")
	env.addPost(t, alice, "city lights", "urban")
	env.addPost(t, bobby, "lake house", "urban", "nature")

	page, err := env.posts.Search(ctx, SearchQuery{Keyword: "lake"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)

	page, err = env.posts.Search(ctx, SearchQuery{Tag: "Urban", Sort: "id"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "city lights", page.Items[0].Title)
	assert.Equal(t, "lake house", page.Items[1].Title)

	page, err = env.posts.Search(ctx, SearchQuery{Keyword: "lake", Tag: "urban"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	page, err = env.posts.Search(ctx, SearchQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 1)

	page, err = env.posts.ListByUser(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	_, err = env.posts.ListByUser(ctx, 9999, 1, 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

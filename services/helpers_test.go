package services

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/storage"
	"github.com/cppla/photoshare/transform"
	"github.com/cppla/photoshare/utils"
)

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendConfirmation(email, username, token string) {
	m.Called(email, username, token)
}

// flakyHost fails deletions while down is set.
type flakyHost struct {
	*storage.MemoryHost
	down bool
}

func (h *flakyHost) Delete(ctx context.Context, publicID string) error {
	if h.down {
		return errors.New("image host unavailable")
	}
	return h.MemoryHost.Delete(ctx, publicID)
}

type testEnv struct {
	db        *gorm.DB
	host      *flakyHost
	mailer    *mockMailer
	tokens    *TokenService
	blacklist *utils.TokenBlacklist
	auth      *AuthService
	users     *UserService
	posts     *PostService
	comments  *CommentService
	ratings   *RatingService
	tags      *TagService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared&_foreign_keys=on"),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent), TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	for _, m := range models.All() {
		require.NoError(t, db.AutoMigrate(m))
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	log := zap.NewNop()
	host := &flakyHost{MemoryHost: storage.NewMemoryHost("http://img.test")}
	mailer := &mockMailer{}
	mailer.On("SendConfirmation", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()
	tokens := NewTokenService("test-secret", 30*time.Minute, 7*24*time.Hour, 24*time.Hour)
	blacklist := utils.NewTokenBlacklist(nil)

	return &testEnv{
		db:        db,
		host:      host,
		mailer:    mailer,
		tokens:    tokens,
		blacklist: blacklist,
		auth:      NewAuthService(db, tokens, blacklist, mailer, log),
		users:     NewUserService(db, host, log),
		posts:     NewPostService(db, host, log),
		comments:  NewCommentService(db, log),
		ratings:   NewRatingService(db),
		tags:      NewTagService(db),
	}
}

// addUser inserts a confirmed, active user with password "secret123".
func (e *testEnv) addUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	hash, err := utils.HashPassword("secret123")
	require.NoError(t, err)
	u := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Role:         role,
		Confirmed:    true,
		Active:       true,
	}
	require.NoError(t, e.db.Create(&u).Error)
	return &u
}

func (e *testEnv) addPost(t *testing.T, owner *models.User, title string, tags ...string) *models.Post {
	t.Helper()
	post, err := e.posts.Create(context.Background(), ActorOf(owner), CreatePostInput{
		Title:    title,
		Tags:     tags,
		FileName: "photo.png",
		File:     bytes.NewReader(pngBytes(t, 64, 48)),
		Size:     -1,
	})
	require.NoError(t, err)
	return post
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	b, err := transform.EncodePNG(imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 40, A: 255}))
	require.NoError(t, err)
	return b
}

func count(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

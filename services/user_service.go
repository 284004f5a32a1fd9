package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/photoshare/models"
	"github.com/cppla/photoshare/storage"
	"github.com/cppla/photoshare/transform"
)

// UserService manages profiles, roles and account status.
type UserService struct {
	db     *gorm.DB
	host   storage.ImageHost
	assets *assetReleaser
	logger *zap.Logger
}

// NewUserService creates a UserService.
func NewUserService(db *gorm.DB, host storage.ImageHost, logger *zap.Logger) *UserService {
	return &UserService{
		db:     db,
		host:   host,
		assets: &assetReleaser{db: db, host: host, logger: logger},
		logger: logger,
	}
}

// Profile is a user with the number of posts they published.
type Profile struct {
	models.User
	PostCount int64 `json:"post_count"`
}

// UserUpdate holds optional profile changes; nil fields stay untouched.
type UserUpdate struct {
	Username *string
	Email    *string
}

// Profile loads a user by id.
func (s *UserService) Profile(ctx context.Context, id uint) (*Profile, error) {
	return s.profile(ctx, s.db.WithContext(ctx).Where("id = ?", id))
}

// ByUsername loads a user by username.
func (s *UserService) ByUsername(ctx context.Context, username string) (*Profile, error) {
	return s.profile(ctx, s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)))
}

func (s *UserService) profile(ctx context.Context, q *gorm.DB) (*Profile, error) {
	user, err := first(q)
	if err != nil {
		return nil, err
	}
	p := Profile{User: *user}
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", user.ID).Count(&p.PostCount).Error; err != nil {
		return nil, fmt.Errorf("count posts: %w", err)
	}
	return &p, nil
}

// Update changes username and/or email of a user the actor may modify.
func (s *UserService) Update(ctx context.Context, actor Actor, targetID uint, in UserUpdate) (*models.User, error) {
	if err := CanModify(actor, targetID); err != nil {
		return nil, err
	}
	user, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Username != nil {
		updates["username"] = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*in.Email))
	}
	if len(updates) == 0 {
		return user, nil
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.User{}).Where("id <> ?", targetID)
		switch {
		case in.Username != nil && in.Email != nil:
			q = q.Where("(username = ? OR email = ?)", updates["username"], updates["email"])
		case in.Username != nil:
			q = q.Where("username = ?", updates["username"])
		default:
			q = q.Where("email = ?", updates["email"])
		}
		var taken int64
		if err := q.Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrConflict
		}
		return tx.Model(user).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, ErrConflict) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("update user %d: %w", targetID, err)
	}
	s.invalidateAuthorOf(ctx, targetID)
	return s.load(ctx, targetID)
}

// UpdateRole assigns a role. Admin only, and never on oneself.
func (s *UserService) UpdateRole(ctx context.Context, actor Actor, targetID uint, role models.Role) (*models.User, error) {
	if err := AdminOnly.Authorize(actor.Role); err != nil {
		return nil, err
	}
	if actor.ID == targetID {
		return nil, ErrSelfOperation
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	user, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("role", role).Error; err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	s.logger.Info("role changed", zap.Uint("user_id", targetID), zap.String("role", string(role)), zap.Uint("actor_id", actor.ID))
	return s.load(ctx, targetID)
}

// ToggleActive bans or unbans a user. Banning drops the stored refresh token.
func (s *UserService) ToggleActive(ctx context.Context, actor Actor, targetID uint) (*models.User, error) {
	if err := AdminOnly.Authorize(actor.Role); err != nil {
		return nil, err
	}
	if actor.ID == targetID {
		return nil, ErrSelfOperation
	}
	user, err := s.load(ctx, targetID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"active": !user.Active}
	if user.Active {
		updates["refresh_token"] = nil
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", targetID).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("toggle user status: %w", err)
	}
	s.logger.Info("user status changed", zap.Uint("user_id", targetID), zap.Bool("active", !user.Active), zap.Uint("actor_id", actor.ID))
	return s.load(ctx, targetID)
}

// Delete removes a user with their posts, comments and ratings. Admins and moderators only.
func (s *UserService) Delete(ctx context.Context, actor Actor, targetID uint) error {
	if err := AdminOrModerator.Authorize(actor.Role); err != nil {
		return err
	}
	if actor.ID == targetID {
		return ErrSelfOperation
	}
	user, err := s.load(ctx, targetID)
	if err != nil {
		return err
	}

	var posts []models.Post
	if err := s.db.WithContext(ctx).Where("user_id = ?", targetID).Find(&posts).Error; err != nil {
		return fmt.Errorf("load posts of user %d: %w", targetID, err)
	}
	postIDs := make([]uint, 0, len(posts))
	publicIDs := []string{user.AvatarPublicID}
	for i := range posts {
		postIDs = append(postIDs, posts[i].ID)
		publicIDs = append(publicIDs, posts[i].PublicIDs()...)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deletePostRows(tx, postIDs); err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", targetID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", targetID).Delete(&models.Rating{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, targetID).Error
	})
	if err != nil {
		return fmt.Errorf("delete user %d: %w", targetID, err)
	}

	invalidatePostCache(postIDs...)
	s.assets.release(ctx, "user_deleted", publicIDs...)
	s.logger.Info("user deleted", zap.Uint("user_id", targetID), zap.Int("posts", len(postIDs)), zap.Uint("actor_id", actor.ID))
	return nil
}

// UpdateAvatar uploads a new avatar for the actor and releases the previous one.
func (s *UserService) UpdateAvatar(ctx context.Context, actor Actor, fileName string, r io.Reader, size int64) (*models.User, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: an image file is required", ErrValidation)
	}
	info, file, err := transform.Inspect(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	user, err := s.load(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	asset, err := s.host.Upload(ctx, storage.ObjectName("avatars", actor.ID, info.Ext()), file, size, info.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}
	old := user.AvatarPublicID
	if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"avatar":           asset.URL,
		"avatar_public_id": asset.PublicID,
	}).Error; err != nil {
		s.assets.release(ctx, "avatar_failed", asset.PublicID)
		return nil, fmt.Errorf("save avatar: %w", err)
	}
	s.assets.release(ctx, "avatar_replaced", old)
	s.invalidateAuthorOf(ctx, actor.ID)
	return s.load(ctx, actor.ID)
}

// invalidateAuthorOf drops cached posts that embed the user as author.
func (s *UserService) invalidateAuthorOf(ctx context.Context, userID uint) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Post{}).Where("user_id = ?", userID).Pluck("id", &ids).Error; err != nil {
		s.logger.Warn("failed to list posts for cache invalidation", zap.Uint("user_id", userID), zap.Error(err))
	}
	invalidatePostCache(ids...)
}

func (s *UserService) load(ctx context.Context, id uint) (*models.User, error) {
	return first(s.db.WithContext(ctx).Where("id = ?", id))
}

func first(q *gorm.DB) (*models.User, error) {
	var user models.User
	if err := q.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &user, nil
}

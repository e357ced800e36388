package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
	"github.com/pageza/foodgram/backend/pkg/logger"
)

const avatarPrefix = "users/avatars"

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// ValidUsername reports whether name matches the allowed pattern and is not reserved
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name) && !strings.EqualFold(name, "me")
}

type UserService struct {
	db      *gorm.DB
	images  *ImageService
	present *presenter
}

func NewUserService(db *gorm.DB, images *ImageService) *UserService {
	return &UserService{
		db:      db,
		images:  images,
		present: newPresenter(db, images),
	}
}

func (s *UserService) Register(ctx context.Context, req *types.RegisterRequest) (*models.User, error) {
	return s.create(ctx, req, false)
}

// CreateAdmin registers a user allowed to modify any recipe
func (s *UserService) CreateAdmin(ctx context.Context, req *types.RegisterRequest) (*models.User, error) {
	return s.create(ctx, req, true)
}

func (s *UserService) create(ctx context.Context, req *types.RegisterRequest, admin bool) (*models.User, error) {
	if !ValidUsername(req.Username) {
		return nil, fieldError("username", "Enter a valid username.")
	}
	if err := passwordTooLong("password", req.Password); err != nil {
		return nil, err
	}

	verr := NewValidationError()
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = ?", strings.ToLower(req.Email)).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if count > 0 {
		verr.Add("email", "A user with that email already exists.")
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if count > 0 {
		verr.Add("username", "A user with that username already exists.")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        req.Email,
		Username:     req.Username,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		IsAdmin:      admin,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fieldError("username", "A user with that username or email already exists.")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

func (s *UserService) ListUsers(ctx context.Context, viewer uint, page, limit int) ([]types.UserResponse, int64, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Offset(offset(page, limit)).Limit(limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	out, err := s.present.users(ctx, viewer, users)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (s *UserService) GetUser(ctx context.Context, viewer, id uint) (*types.UserResponse, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	out, err := s.present.users(ctx, viewer, []models.User{*user})
	if err != nil {
		return nil, err
	}
	return &out[0], nil
}

func (s *UserService) SetPassword(ctx context.Context, userID uint, current, next string) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !CheckPassword(user.PasswordHash, current) {
		return fieldError("current_password", "Invalid password.")
	}
	if err := passwordTooLong("new_password", next); err != nil {
		return err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", hash).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// SetAvatar stores a new avatar and returns its public URL
func (s *UserService) SetAvatar(ctx context.Context, userID uint, dataURI string) (string, error) {
	if strings.TrimSpace(dataURI) == "" {
		return "", fieldError("avatar", msgRequired)
	}
	user, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}

	key, err := s.images.SaveDataURI(ctx, "avatar", avatarPrefix, dataURI)
	if err != nil {
		return "", err
	}
	if err := s.db.WithContext(ctx).Model(user).Update("avatar", key).Error; err != nil {
		s.dropImage(ctx, key)
		return "", fmt.Errorf("failed to update avatar: %w", err)
	}
	s.dropImage(ctx, user.Avatar)
	return s.images.URL(key), nil
}

func (s *UserService) DeleteAvatar(ctx context.Context, userID uint) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if user.Avatar == "" {
		return notPresent("Avatar is not set.")
	}
	if err := s.db.WithContext(ctx).Model(user).Update("avatar", "").Error; err != nil {
		return fmt.Errorf("failed to clear avatar: %w", err)
	}
	s.dropImage(ctx, user.Avatar)
	return nil
}

// Subscribe makes userID follow authorID. Self-follow is rejected before the
// duplicate check.
func (s *UserService) Subscribe(ctx context.Context, userID, authorID uint, recipesLimit int) (*types.SubscriptionResponse, error) {
	author, err := s.load(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if userID == authorID {
		return nil, ErrSelfFollow
	}

	const dupMsg = "You are already subscribed to this author."
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Follower{}).Where("user_id = ? AND author_id = ?", userID, authorID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}
	if count > 0 {
		return nil, conflict(dupMsg)
	}
	edge := models.Follower{UserID: userID, AuthorID: authorID}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&edge).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, conflict(dupMsg)
		}
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	return s.subscription(ctx, author, recipesLimit)
}

func (s *UserService) Unsubscribe(ctx context.Context, userID, authorID uint) error {
	if _, err := s.load(ctx, authorID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND author_id = ?", userID, authorID).Delete(&models.Follower{})
	if res.Error != nil {
		return fmt.Errorf("failed to unsubscribe: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notPresent("You are not subscribed to this author.")
	}
	return nil
}

// Subscriptions lists the authors userID follows
func (s *UserService) Subscriptions(ctx context.Context, userID uint, page, limit, recipesLimit int) ([]types.SubscriptionResponse, int64, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	followed := s.db.Model(&models.Follower{}).Select("author_id").Where("user_id = ?", userID)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id IN (?)", followed).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	var authors []models.User
	err := s.db.WithContext(ctx).Where("id IN (?)", followed).
		Order("username").Offset(offset(page, limit)).Limit(limit).
		Find(&authors).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	out := make([]types.SubscriptionResponse, 0, len(authors))
	for i := range authors {
		sub, err := s.subscription(ctx, &authors[i], recipesLimit)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *sub)
	}
	return out, total, nil
}

// subscription renders a followed author; is_subscribed is true by construction.
func (s *UserService) subscription(ctx context.Context, author *models.User, recipesLimit int) (*types.SubscriptionResponse, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Recipe{}).Where("author_id = ?", author.ID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count recipes: %w", err)
	}

	q := s.db.WithContext(ctx).Where("author_id = ?", author.ID).Order("pub_date DESC, id DESC")
	if recipesLimit > 0 {
		q = q.Limit(recipesLimit)
	}
	var recipes []models.Recipe
	if err := q.Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}

	short := make([]types.RecipeShortResponse, len(recipes))
	for i := range recipes {
		short[i] = s.present.recipeShort(&recipes[i])
	}
	return &types.SubscriptionResponse{
		UserResponse: s.present.user(author, true),
		Recipes:      short,
		RecipesCount: count,
	}, nil
}

func (s *UserService) load(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "user")
	}
	return &user, nil
}

func (s *UserService) dropImage(ctx context.Context, key string) {
	if err := s.images.Delete(ctx, key); err != nil {
		logger.Warn(ctx).Err(err).Str("key", key).Msg("failed to remove stored image")
	}
}

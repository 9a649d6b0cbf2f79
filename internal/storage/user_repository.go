package storage

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"circle-go/internal/models"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	GetBasicInfoByIDs(ctx context.Context, ids []uint) ([]*models.UserBasicInfo, error)
	ListRecommended(ctx context.Context, userID uint, excludeIDs []uint, limit int) ([]*models.UserBasicInfo, error)
}

// gormUserRepository implements UserRepository using GORM.
type gormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM-based UserRepository.
func NewGormUserRepository(db *gorm.DB) UserRepository {
	return &gormUserRepository{db: db}
}

// Create creates a new user record; a taken email or username yields ErrDuplicateUser.
func (r *gormUserRepository) Create(ctx context.Context, user *models.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error, ErrDuplicateUser)
}

// GetByID retrieves a user by their ID. Soft-deleted users are not found.
func (r *gormUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, ErrUserNotFound)
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email.
func (r *gormUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFoundOr(err, ErrUserNotFound)
	}
	return &user, nil
}

// GetByUsername retrieves a user by their handle.
func (r *gormUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, notFoundOr(err, ErrUserNotFound)
	}
	return &user, nil
}

// Update writes the profile columns of an existing user. The credential
// hash, email and handle are not touched here.
func (r *gormUserRepository) Update(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return gorm.ErrMissingWhereClause
	}
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Select("full_name", "bio", "location", "focus_tag", "track_tag", "avatar_url", "is_onboarded").
		Updates(user)
	if res.Error != nil {
		return unavailable(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetBasicInfoByIDs retrieves public profiles for ids, in the order given.
// Unknown ids are skipped.
func (r *gormUserRepository) GetBasicInfoByIDs(ctx context.Context, ids []uint) ([]*models.UserBasicInfo, error) {
	if len(ids) == 0 {
		return []*models.UserBasicInfo{}, nil
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, unavailable(err)
	}

	byID := make(map[uint]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	infos := make([]*models.UserBasicInfo, 0, len(users))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			infos = append(infos, u.BasicInfo())
		}
	}
	return infos, nil
}

// ListRecommended returns onboarded users other than userID and excludeIDs.
func (r *gormUserRepository) ListRecommended(ctx context.Context, userID uint, excludeIDs []uint, limit int) ([]*models.UserBasicInfo, error) {
	q := r.db.WithContext(ctx).
		Where("id <> ? AND is_onboarded = ?", userID, true)
	if len(excludeIDs) > 0 {
		// NOT IN with an empty list would render as NOT IN (NULL) and match nothing
		q = q.Where("id NOT IN ?", excludeIDs)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var users []models.User
	if err := q.Order("id").Find(&users).Error; err != nil {
		return nil, unavailable(err)
	}
	infos := make([]*models.UserBasicInfo, 0, len(users))
	for i := range users {
		infos = append(infos, users[i].BasicInfo())
	}
	return infos, nil
}

func notFoundOr(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return unavailable(err)
}

package services

import (
	"context"
	"fmt"
	"strings"

	"circle-go/internal/models"
	"circle-go/internal/storage"
)

// recommendedLimit caps the recommendation list.
const recommendedLimit = 50

// OnboardingInput is the profile a user fills in after signing up.
type OnboardingInput struct {
	FullName  string `json:"fullName"`
	Bio       string `json:"bio"`
	FocusTag  string `json:"focusTag"`
	TrackTag  string `json:"trackTag"`
	Location  string `json:"location"`
	AvatarURL string `json:"avatarUrl"`
}

// missingFields lists the required fields left blank.
func (in OnboardingInput) missingFields() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"fullName", in.FullName},
		{"bio", in.Bio},
		{"focusTag", in.FocusTag},
		{"trackTag", in.TrackTag},
		{"location", in.Location},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// UserService covers profiles, onboarding and friend lists.
type UserService interface {
	GetUserProfile(ctx context.Context, userID uint) (*models.User, error)
	Onboard(ctx context.Context, userID uint, in OnboardingInput) (*models.User, error)
	GetFriends(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error)
	GetRecommendedUsers(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error)
}

// userService implements UserService.
type userService struct {
	userRepo storage.UserRepository
	store    storage.RelationshipStore
}

// NewUserService creates a UserService.
func NewUserService(userRepo storage.UserRepository, store storage.RelationshipStore) UserService {
	return &userService{userRepo: userRepo, store: store}
}

// GetUserProfile returns the user without the password hash.
func (s *userService) GetUserProfile(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", userID, err)
	}
	return user.Sanitized(), nil
}

// Onboard stores the profile and marks the user as onboarded. An empty
// AvatarURL keeps the current avatar.
func (s *userService) Onboard(ctx context.Context, userID uint, in OnboardingInput) (*models.User, error) {
	if missing := in.missingFields(); len(missing) > 0 {
		return nil, validationError("missing fields: " + strings.Join(missing, ", "))
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("onboard user %d: %w", userID, err)
	}

	user.FullName = strings.TrimSpace(in.FullName)
	user.Bio = strings.TrimSpace(in.Bio)
	user.FocusTag = strings.TrimSpace(in.FocusTag)
	user.TrackTag = strings.TrimSpace(in.TrackTag)
	user.Location = strings.TrimSpace(in.Location)
	if avatar := strings.TrimSpace(in.AvatarURL); avatar != "" {
		user.AvatarURL = avatar
	}
	user.IsOnboarded = true

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile of user %d: %w", userID, err)
	}
	return user.Sanitized(), nil
}

// GetFriends returns the friends of userID, oldest friendship first.
func (s *userService) GetFriends(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error) {
	ids, err := s.store.FriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends of user %d: %w", userID, err)
	}
	infos, err := s.userRepo.GetBasicInfoByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load friend profiles for user %d: %w", userID, err)
	}
	return infos, nil
}

// GetRecommendedUsers returns onboarded users who are neither userID nor
// already friends with them.
func (s *userService) GetRecommendedUsers(ctx context.Context, userID uint) ([]*models.UserBasicInfo, error) {
	friendIDs, err := s.store.FriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends of user %d: %w", userID, err)
	}
	users, err := s.userRepo.ListRecommended(ctx, userID, friendIDs, recommendedLimit)
	if err != nil {
		return nil, fmt.Errorf("list recommended users for %d: %w", userID, err)
	}
	return users, nil
}

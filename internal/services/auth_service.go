package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"circle-go/internal/auth"
	"circle-go/internal/config"
	"circle-go/internal/models"
	"circle-go/internal/storage"
)

var (
	ErrUserAlreadyExists  = errors.New("email or username already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = storage.ErrUserNotFound
	// ErrValidation matches input errors; their messages are safe to show.
	ErrValidation = errors.New("invalid input")
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SignupInput carries the fields of a new account.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Username string `json:"username"`
}

// AuthService handles signup, login and handle availability.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (token string, user *models.User, err error)
	Login(ctx context.Context, email, password string) (token string, user *models.User, err error)
	IsUsernameAvailable(ctx context.Context, username string) (bool, error)
}

// authService implements AuthService.
type authService struct {
	userRepo storage.UserRepository
	cfg      config.AuthConfig
	now      func() time.Time
	avatar   func() string
	log      *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(userRepo storage.UserRepository, cfg config.AuthConfig, log *slog.Logger) AuthService {
	return &authService{
		userRepo: userRepo,
		cfg:      cfg,
		now:      time.Now,
		avatar:   randomAvatarURL,
		log:      log,
	}
}

func randomAvatarURL() string {
	return fmt.Sprintf("https://avatar.iran.liara.run/public/%d.png", rand.Intn(100)+1)
}

// inputError is a client-facing validation message that matches ErrValidation.
type inputError struct{ msg string }

func (e *inputError) Error() string { return e.msg }
func (e *inputError) Unwrap() error { return ErrValidation }

func validationError(msg string) error {
	return &inputError{msg: msg}
}

// Signup validates the input, creates the account and returns a session token for it.
func (s *authService) Signup(ctx context.Context, in SignupInput) (string, *models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)

	if in.Email == "" || in.Password == "" || in.FullName == "" || in.Username == "" {
		return "", nil, validationError("please fill all the fields")
	}
	if len(in.Password) < minPasswordLength {
		return "", nil, validationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if !emailPattern.MatchString(in.Email) {
		return "", nil, validationError("please enter a valid email")
	}

	hashedPassword, err := auth.HashPassword(in.Password)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	newUser := &models.User{
		Email:        in.Email,
		Username:     in.Username,
		FullName:     in.FullName,
		PasswordHash: hashedPassword,
		AvatarURL:    s.avatar(),
	}
	// the unique indexes decide duplicates, so concurrent signups can't both win
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, storage.ErrDuplicateUser) {
			return "", nil, ErrUserAlreadyExists
		}
		return "", nil, fmt.Errorf("create user: %w", err)
	}

	token, err := auth.GenerateToken(newUser.ID, s.cfg, s.now())
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	s.log.Info("user signed up", "user_id", newUser.ID)
	return token, newUser.Sanitized(), nil
}

// Login checks email and password. Unknown email and wrong password are
// the same error.
func (s *authService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", nil, validationError("all fields are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	} else if err != nil {
		return "", nil, fmt.Errorf("find user by email: %w", err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", nil, ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, s.cfg, s.now())
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return token, user.Sanitized(), nil
}

func (s *authService) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return false, validationError("username is required")
	}
	_, err := s.userRepo.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, storage.ErrUserNotFound):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("check username: %w", err)
	default:
		return false, nil
	}
}

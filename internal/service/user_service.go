package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/algogenius-api/internal/dto"
	"github.com/noah-isme/algogenius-api/internal/models"
	"github.com/noah-isme/algogenius-api/internal/repository"
	"github.com/noah-isme/algogenius-api/pkg/asynctask"
)

// Identity is what the identity provider vouches for.
type Identity struct {
	Subject string
	Email   string
}

// UserService manages profiles.
type UserService interface {
	Register(ctx context.Context, identity Identity, payload dto.UserRegisterRequest) (dto.UserResponse, error)
	Get(ctx context.Context, userID string) (dto.UserResponse, error)
	Role(ctx context.Context, userID string) (string, error)
	UpdateProfile(ctx context.Context, userID string, payload dto.UserUpdateRequest) (dto.UserResponse, error)
	RecordLogin(ctx context.Context, userID string) *asynctask.Task
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewUserService builds the profile service.
func NewUserService(users repository.UserRepository, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		validator: validate,
		logger:    logger.With().Str("component", "user_service").Logger(),
		now:       time.Now,
	}
}

func (s *userService) Register(ctx context.Context, identity Identity, payload dto.UserRegisterRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}
	subject := strings.TrimSpace(identity.Subject)
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if subject == "" || email == "" {
		return dto.UserResponse{}, invalidRequest("identity token must carry subject and email")
	}

	if _, err := s.users.GetByID(ctx, subject); err == nil {
		return dto.UserResponse{}, ErrProfileExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.UserResponse{}, err
	}

	attributes, err := cleanAttributes(payload.Attributes)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		ID:         subject,
		Role:       payload.Role,
		Email:      email,
		Name:       cleanText(payload.Name),
		Attributes: attributes,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.UserResponse{}, ErrProfileExists
		}
		return dto.UserResponse{}, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("profile registered")
	return dto.NewUserResponse(user), nil
}

func (s *userService) Get(ctx context.Context, userID string) (dto.UserResponse, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

// Role returns the stored role, or "" when the user has not registered a profile.
func (s *userService) Role(ctx context.Context, userID string) (string, error) {
	user, err := s.load(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, payload dto.UserUpdateRequest) (dto.UserResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.load(ctx, userID)
	if err != nil {
		return dto.UserResponse{}, err
	}

	if payload.Role != nil && strings.TrimSpace(*payload.Role) != user.Role {
		return dto.UserResponse{}, ErrRoleImmutable
	}

	if payload.Name != nil {
		user.Name = cleanText(*payload.Name)
	}
	if payload.Attributes != nil {
		updates, err := cleanAttributes(payload.Attributes)
		if err != nil {
			return dto.UserResponse{}, err
		}
		if user.Attributes == nil {
			user.Attributes = datatypes.JSONMap{}
		}
		for key, value := range updates {
			if value == nil {
				delete(user.Attributes, key)
				continue
			}
			user.Attributes[key] = value
		}
	}

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

// RecordLogin stamps the login time in the background. Callers may wait on the task.
func (s *userService) RecordLogin(ctx context.Context, userID string) *asynctask.Task {
	at := s.now().UTC()
	return asynctask.Go(ctx, "record_login", func(ctx context.Context) error {
		if err := s.users.TouchLogin(ctx, userID, at); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		return nil
	}, s.taskHook(userID))
}

func (s *userService) taskHook(userID string) asynctask.Hook {
	return func(name string, err error, elapsed time.Duration) {
		if err != nil {
			s.logger.Error().Err(err).Str("task", name).Str("user_id", userID).Msg("background write failed")
			return
		}
		s.logger.Debug().Str("task", name).Str("user_id", userID).Dur("elapsed", elapsed).Msg("background write finished")
	}
}

func (s *userService) load(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// cleanAttributes sanitizes string values and checks the keys the API understands.
func cleanAttributes(attributes map[string]any) (datatypes.JSONMap, error) {
	out := datatypes.JSONMap{}
	for key, value := range attributes {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if text, ok := value.(string); ok {
			value = cleanText(text)
		}
		if key == "preferred_theme" && value != nil {
			theme, _ := value.(string)
			theme = strings.ToLower(theme)
			if !models.ValidTheme(theme) {
				return nil, invalidRequest("unknown theme %q", value)
			}
			value = theme
		}
		out[key] = value
	}
	return out, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	userserrors "roomly/internal/users/errors"
	"roomly/internal/users/repository"
	"roomly/internal/users/validator"
	"roomly/pkg/auth"
	"roomly/pkg/clock"
	"roomly/pkg/config"
	apperrors "roomly/pkg/errors"
	"roomly/pkg/model"
	"roomly/pkg/sanitizer"
)

// TokenIssuer mints and revokes access tokens.
type TokenIssuer interface {
	Issue(userID, username, role string) (string, time.Time, error)
	Revoke(tokenID string, until time.Time)
}

type UserService interface {
	Register(ctx context.Context, reg *model.Registration) (*model.UserProfile, error)
	Login(ctx context.Context, creds *model.Credentials) (*model.Session, *auth.Identity, error)
	Logout(ctx context.Context, actor *auth.Identity) error
	Me(ctx context.Context, actor *auth.Identity) (*model.UserProfile, error)
	UpdateProfile(ctx context.Context, actor *auth.Identity, update *model.ProfileUpdate) (*model.UserProfile, error)
	ChangePassword(ctx context.Context, actor *auth.Identity, change *model.PasswordChange) error
	CreateSuperadmin(ctx context.Context, username, email, password string) (*model.User, bool, error)

	// FindByIDs resolves booking owners.
	FindByIDs(ctx context.Context, ids []string) ([]*model.User, error)
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.UserValidator
	tokens    TokenIssuer
	clock     clock.Clock
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	validator *validator.UserValidator,
	tokens TokenIssuer,
	clk clock.Clock,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		validator: validator,
		tokens:    tokens,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *userService) Register(ctx context.Context, reg *model.Registration) (*model.UserProfile, error) {
	if reg == nil {
		return nil, apperrors.InvalidInput("Registration cannot be empty")
	}

	reg.Username = sanitizer.NormalizeUsername(reg.Username)
	reg.Email = sanitizer.NormalizeEmail(reg.Email)
	reg.FirstName = sanitizer.NormalizeName(reg.FirstName)
	reg.LastName = sanitizer.NormalizeName(reg.LastName)
	reg.Patronymic = sanitizer.NormalizeName(reg.Patronymic)
	reg.GroupName = sanitizer.TrimAndNormalize(reg.GroupName)

	if err := s.validate(s.validator.ValidateRegistration(reg), reg.Username); err != nil {
		return nil, err
	}
	phone, ok := s.normalizePhone(reg.PhoneNumber)
	if !ok {
		return nil, apperrors.FieldValidation("User validation failed", map[string]string{
			"phone_number": invalidPhoneMessage,
		})
	}
	reg.PhoneNumber = phone

	hash, err := auth.HashPassword(reg.Password)
	if err != nil {
		s.cfg.Log.Error("Failed to hash password", "username", reg.Username, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	user := &model.User{
		Username:     reg.Username,
		Email:        reg.Email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		Patronymic:   reg.Patronymic,
		GroupName:    reg.GroupName,
		PhoneNumber:  reg.PhoneNumber,
		Role:         model.RoleUser,
		IsActive:     true,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, s.writeError("register", user.Username, err)
	}

	s.cfg.Log.Info("User registered successfully", "id", user.ID, "username", user.Username)
	return model.NewUserProfile(user), nil
}

// Login verifies credentials and issues an access token. Unknown users,
// wrong passwords and disabled accounts are indistinguishable to the caller.
func (s *userService) Login(ctx context.Context, creds *model.Credentials) (*model.Session, *auth.Identity, error) {
	if creds == nil {
		return nil, nil, apperrors.InvalidInput("Credentials cannot be empty")
	}
	creds.Username = sanitizer.NormalizeUsername(creds.Username)
	if err := s.validate(s.validator.ValidateCredentials(creds), creds.Username); err != nil {
		return nil, nil, err
	}

	user, err := s.repo.FindByUsername(ctx, creds.Username)
	if err != nil && !errors.Is(err, userserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to look up user", "username", creds.Username, "error", err)
		return nil, nil, apperrors.Internal("Failed to log in", err)
	}
	if user == nil || !user.IsActive || !auth.CheckPassword(user.PasswordHash, creds.Password) {
		s.cfg.Log.Warn("Rejected login attempt", "username", creds.Username)
		return nil, nil, apperrors.Unauthorized("Invalid username or password")
	}

	access, expiresAt, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		s.cfg.Log.Error("Failed to issue access token", "user_id", user.ID, "error", err)
		return nil, nil, apperrors.Internal("Failed to log in", err)
	}

	s.cfg.Log.Info("User logged in", "user_id", user.ID, "username", user.Username)
	session := &model.Session{
		Status:      "success",
		AccessToken: access,
		ExpiresAt:   expiresAt,
		User:        model.NewUserProfile(user),
	}
	identity := &auth.Identity{UserID: user.ID, Username: user.Username, Role: user.Role}
	return session, identity, nil
}

// Logout revokes the bearer token for the rest of its lifetime. Cookie sessions
// carry no token id and are ended by clearing the cookie.
func (s *userService) Logout(ctx context.Context, actor *auth.Identity) error {
	if actor == nil {
		return apperrors.Unauthorized("Authentication required")
	}
	if actor.TokenID != "" {
		s.tokens.Revoke(actor.TokenID, s.clock.Now().Add(s.cfg.JWTTTL))
	}
	s.cfg.Log.Info("User logged out", "user_id", actor.UserID)
	return nil
}

func (s *userService) Me(ctx context.Context, actor *auth.Identity) (*model.UserProfile, error) {
	user, err := s.current(ctx, actor)
	if err != nil {
		return nil, err
	}
	return model.NewUserProfile(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor *auth.Identity, update *model.ProfileUpdate) (*model.UserProfile, error) {
	user, err := s.current(ctx, actor)
	if err != nil {
		return nil, err
	}
	if update == nil {
		return nil, apperrors.InvalidInput("Profile update cannot be empty")
	}

	normalizeProfileUpdate(update)
	if err := s.validate(s.validator.ValidateProfile(update), user.Username); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		if user.FirstName = *update.FirstName; user.FirstName == "" {
			fields["first_name"] = "first_name cannot be blank"
		}
	}
	if update.LastName != nil {
		if user.LastName = *update.LastName; user.LastName == "" {
			fields["last_name"] = "last_name cannot be blank"
		}
	}
	if update.Patronymic != nil {
		user.Patronymic = *update.Patronymic
	}
	if update.GroupName != nil {
		user.GroupName = *update.GroupName
	}
	if update.PhoneNumber != nil {
		phone, ok := s.normalizePhone(*update.PhoneNumber)
		if !ok {
			fields["phone_number"] = invalidPhoneMessage
		}
		user.PhoneNumber = phone
	}
	if len(fields) > 0 {
		return nil, apperrors.FieldValidation("Profile validation failed", fields)
	}

	if err := s.repo.Update(ctx, user.ID, user); err != nil {
		return nil, s.writeError("update", user.Username, err)
	}

	s.cfg.Log.Info("User profile updated", "user_id", user.ID)
	return model.NewUserProfile(user), nil
}

// normalizeProfileUpdate cleans the supplied fields in place so validation
// sees the values that will be stored.
func normalizeProfileUpdate(update *model.ProfileUpdate) {
	apply := func(field *string, fn func(string) string) {
		if field != nil {
			*field = fn(*field)
		}
	}
	apply(update.Email, sanitizer.NormalizeEmail)
	apply(update.FirstName, sanitizer.NormalizeName)
	apply(update.LastName, sanitizer.NormalizeName)
	apply(update.Patronymic, sanitizer.NormalizeName)
	apply(update.GroupName, sanitizer.TrimAndNormalize)
	apply(update.PhoneNumber, strings.TrimSpace)
}

func (s *userService) ChangePassword(ctx context.Context, actor *auth.Identity, change *model.PasswordChange) error {
	user, err := s.current(ctx, actor)
	if err != nil {
		return err
	}
	if change == nil {
		return apperrors.InvalidInput("Password change cannot be empty")
	}
	if err := s.validate(s.validator.ValidatePasswordChange(change), user.Username); err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, change.OldPassword) {
		return apperrors.FieldValidation("Password change failed", map[string]string{
			"old_password": "old_password is incorrect",
		})
	}

	hash, err := auth.HashPassword(change.NewPassword)
	if err != nil {
		return apperrors.Internal("Failed to change password", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return s.writeError("change password for", user.Username, err)
	}

	s.cfg.Log.Info("User password changed", "user_id", user.ID)
	return nil
}

// CreateSuperadmin creates the bootstrap administrator, or promotes and
// re-activates an existing user of that name. The bool reports creation.
func (s *userService) CreateSuperadmin(ctx context.Context, username, email, password string) (*model.User, bool, error) {
	username = sanitizer.NormalizeUsername(username)
	email = sanitizer.NormalizeEmail(email)
	if username == "" || email == "" || password == "" {
		return nil, false, apperrors.InvalidInput("Administrator username, email and password are required")
	}

	existing, err := s.repo.FindByUsername(ctx, username)
	if err != nil && !errors.Is(err, userserrors.ErrNotFound) {
		return nil, false, apperrors.Internal("Failed to look up administrator", err)
	}
	if existing != nil {
		existing.Role = model.RoleAdmin
		existing.IsActive = true
		if err := s.repo.Update(ctx, existing.ID, existing); err != nil {
			return nil, false, s.writeError("promote", username, err)
		}
		s.cfg.Log.Info("Existing user promoted to administrator", "user_id", existing.ID, "username", username)
		return existing, false, nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, false, apperrors.Internal("Failed to create administrator", err)
	}
	admin := &model.User{
		Username:     username,
		Email:        email,
		FirstName:    "Admin",
		LastName:     "Admin",
		Role:         model.RoleAdmin,
		IsActive:     true,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		return nil, false, s.writeError("create", username, err)
	}

	s.cfg.Log.Info("Administrator created", "user_id", admin.ID, "username", username)
	return admin, true, nil
}

func (s *userService) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	return s.repo.FindByIDs(ctx, ids)
}

// --- Helpers ---

func (s *userService) current(ctx context.Context, actor *auth.Identity) (*model.User, error) {
	if actor == nil {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	user, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.Unauthorized("User account no longer exists")
		}
		s.cfg.Log.Error("Failed to retrieve user", "user_id", actor.UserID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}
	if !user.IsActive {
		return nil, apperrors.Unauthorized("User account is disabled")
	}
	return user, nil
}

func (s *userService) validate(err error, username string) error {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		s.cfg.Log.Warn("User validation failed", "username", username, "error", err)
		return apperrors.FieldValidation("User validation failed", verrs.Fields())
	}
	return apperrors.Internal("Failed to validate user", err)
}

func (s *userService) writeError(op, username string, err error) error {
	switch {
	case errors.Is(err, userserrors.ErrDuplicateUsername):
		return apperrors.FieldValidation("User validation failed", map[string]string{
			"username": "A user with that username already exists",
		})
	case errors.Is(err, userserrors.ErrDuplicateEmail):
		return apperrors.FieldValidation("User validation failed", map[string]string{
			"email": "A user with that email already exists",
		})
	case errors.Is(err, userserrors.ErrNotFound), errors.Is(err, userserrors.ErrInvalidID):
		return apperrors.NotFound("User")
	}
	s.cfg.Log.Error("Failed to "+op+" user", "username", username, "error", err)
	return apperrors.Internal("Failed to "+op+" user", err)
}

const invalidPhoneMessage = "phone_number is not a valid phone number"

// normalizePhone returns the E.164 form of phone. An empty phone is valid and
// clears the stored number.
func (s *userService) normalizePhone(phone string) (string, bool) {
	if strings.TrimSpace(phone) == "" {
		return "", true
	}
	normalized := sanitizer.NormalizePhone(phone, s.cfg.PhoneRegions...)
	return normalized, normalized != ""
}

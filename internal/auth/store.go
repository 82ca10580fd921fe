package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"attendance-backend/internal/models"
	"attendance-backend/internal/session"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidInput       = errors.New("name, email and password are required")
	ErrWeakPassword       = errors.New("password too short")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrSamePassword       = errors.New("new password equals current password")
	ErrEmptyName          = errors.New("name must not be empty")
	ErrAdminExists        = errors.New("an admin already exists")
	ErrInvalidRole        = errors.New("unknown role")
	ErrLastAdmin          = errors.New("cannot demote the last admin")
)

// MinPasswordLen is the shortest password Register and ChangePassword accept.
const MinPasswordLen = 6

// Store keeps users and their bcrypt password hashes.
type Store struct {
	db   *gorm.DB
	cost int

	// adminMu serialises changes to the set of admins. Shared by copies.
	adminMu *sync.Mutex
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, cost: bcrypt.DefaultCost, adminMu: &sync.Mutex{}}
}

// WithCost returns a copy of the store hashing with the given bcrypt cost.
func (s *Store) WithCost(cost int) *Store {
	cp := *s
	cp.cost = cost
	return &cp
}

// ProfileUpdate carries the fields a user may change about themselves.
// Nil fields are left untouched.
type ProfileUpdate struct {
	Name       *string
	Department *string
}

// Register creates an employee account.
func (s *Store) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	return s.register(s.db.WithContext(ctx), name, email, password, models.RoleEmployee)
}

// RegisterFirstAdmin creates an admin account, but only while no admin exists.
// The admin count and the insert share one transaction under adminMu.
func (s *Store) RegisterFirstAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	var user *models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		count, err := countAdmins(tx)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAdminExists
		}
		user, err = s.register(tx, name, email, password, models.RoleAdmin)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func countAdmins(db *gorm.DB) (int64, error) {
	var count int64
	if err := db.Model(&models.User{}).
		Where("role = ?", models.RoleAdmin).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

func (s *Store) register(db *gorm.DB, name, email, password string, role models.UserRole) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrInvalidInput
	}
	if len(password) < MinPasswordLen {
		return nil, ErrWeakPassword
	}

	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &user, nil
}

// Authenticate returns ErrInvalidCredentials for both an unknown email and
// a wrong password.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *Store) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

// List returns all users ordered by name.
func (s *Store) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("name asc").Order("id asc").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id uint, upd ProfileUpdate) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, ErrEmptyName
		}
		changes["name"] = name
	}
	if upd.Department != nil {
		changes["department"] = strings.TrimSpace(*upd.Department)
	}
	if len(changes) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *Store) ChangePassword(ctx context.Context, id uint, current, next string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrWrongPassword
	}
	if len(next) < MinPasswordLen {
		return ErrWeakPassword
	}
	if next == current {
		return ErrSamePassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", string(hash)).Error; err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CurrentRole returns the stored role of a user. Unknown ids give
// session.ErrUnknownUser.
func (s *Store) CurrentRole(ctx context.Context, id uint) (models.UserRole, error) {
	user, err := s.Get(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return "", session.ErrUnknownUser
	}
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// SetRole changes a user's role. Demoting the only remaining admin fails
// with ErrLastAdmin.
func (s *Store) SetRole(ctx context.Context, id uint, role models.UserRole) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	s.adminMu.Lock()
	defer s.adminMu.Unlock()

	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&user, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		if user.Role == models.RoleAdmin && role != models.RoleAdmin {
			count, err := countAdmins(tx)
			if err != nil {
				return err
			}
			if count <= 1 {
				return ErrLastAdmin
			}
		}

		if err := tx.Model(&user).Update("role", role).Error; err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	user.Role = role
	return &user, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"attendance-backend/internal/models"
	"attendance-backend/internal/session"
	"attendance-backend/internal/testutil"

	"golang.org/x/crypto/bcrypt"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(testutil.OpenDB(t)).WithCost(bcrypt.MinCost)
}

func strPtr(s string) *string { return &s }

func TestRegister(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.Register(ctx, " Alice ", " alice@example.com ", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == 0 || u.Name != "Alice" || u.Email != "alice@example.com" || u.Role != models.RoleEmployee {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.PasswordHash == "secret1" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("secret1")) != nil {
		t.Fatalf("password must be stored as a bcrypt hash")
	}

	if _, err := s.Register(ctx, "Alice 2", "alice@example.com", "secret2"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegister_EmailIsCaseSensitive(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, "A", "alice@example.com", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := s.Register(ctx, "A", "Alice@example.com", "secret1"); err != nil {
		t.Fatalf("emails differing in case are distinct: %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	cases := []struct {
		name, email, password string
		want                  error
	}{
		{"", "a@example.com", "secret1", ErrInvalidInput},
		{"A", "  ", "secret1", ErrInvalidInput},
		{"A", "a@example.com", "", ErrInvalidInput},
		{"A", "a@example.com", "abc", ErrWeakPassword},
	}
	for _, tc := range cases {
		if _, err := s.Register(ctx, tc.name, tc.email, tc.password); !errors.Is(err, tc.want) {
			t.Fatalf("Register(%q, %q, %q): expected %v, got %v", tc.name, tc.email, tc.password, tc.want, err)
		}
	}
}

func TestAuthenticate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "Bob", "bob@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	u, err := s.Authenticate(ctx, "bob@example.com", "hunter22")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != reg.ID {
		t.Fatalf("authenticated the wrong user: %d vs %d", u.ID, reg.ID)
	}

	_, wrongPass := s.Authenticate(ctx, "bob@example.com", "hunter23")
	_, unknown := s.Authenticate(ctx, "nobody@example.com", "hunter22")
	if !errors.Is(wrongPass, ErrInvalidCredentials) || !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v / %v", wrongPass, unknown)
	}
	if wrongPass.Error() != unknown.Error() {
		t.Fatalf("failures must be indistinguishable: %q vs %q", wrongPass, unknown)
	}
}

func TestUpdateProfile_OnlySubmittedFields(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "Carol", "carol@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	u, err := s.UpdateProfile(ctx, reg.ID, ProfileUpdate{Department: strPtr(" Sales ")})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Name != "Carol" || u.Department != "Sales" {
		t.Fatalf("unexpected profile: %+v", u)
	}

	u, err = s.UpdateProfile(ctx, reg.ID, ProfileUpdate{Name: strPtr("Caroline")})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.Name != "Caroline" || u.Department != "Sales" {
		t.Fatalf("department must survive a name-only update: %+v", u)
	}
	if u.Email != reg.Email || u.Role != reg.Role || u.PasswordHash != reg.PasswordHash {
		t.Fatalf("profile update touched protected fields: %+v", u)
	}

	if _, err := s.UpdateProfile(ctx, reg.ID, ProfileUpdate{Name: strPtr("   ")}); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
	if _, err := s.UpdateProfile(ctx, 999, ProfileUpdate{Name: strPtr("X")}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	reg, err := s.Register(ctx, "Dave", "dave@example.com", "oldpass")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := s.ChangePassword(ctx, reg.ID, "wrong", "newpass"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if err := s.ChangePassword(ctx, reg.ID, "oldpass", "abc"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := s.ChangePassword(ctx, reg.ID, "oldpass", "oldpass"); !errors.Is(err, ErrSamePassword) {
		t.Fatalf("expected ErrSamePassword, got %v", err)
	}
	if err := s.ChangePassword(ctx, reg.ID, "oldpass", "newpass"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := s.Authenticate(ctx, "dave@example.com", "oldpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "dave@example.com", "newpass"); err != nil {
		t.Fatalf("new password must work: %v", err)
	}
}

func TestRegisterFirstAdminAndSetRole(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	adm, err := s.RegisterFirstAdmin(ctx, "Root", "root@example.com", "rootpass")
	if err != nil {
		t.Fatalf("RegisterFirstAdmin: %v", err)
	}
	if adm.Role != models.RoleAdmin {
		t.Fatalf("expected admin role, got %s", adm.Role)
	}
	if _, err := s.RegisterFirstAdmin(ctx, "Root2", "root2@example.com", "rootpass"); !errors.Is(err, ErrAdminExists) {
		t.Fatalf("expected ErrAdminExists, got %v", err)
	}

	emp, err := s.Register(ctx, "Emp", "emp@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := s.SetRole(ctx, emp.ID, "boss"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := s.SetRole(ctx, emp.ID, models.RoleAdmin); err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	got, err := s.Get(ctx, emp.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Role != models.RoleAdmin {
		t.Fatalf("role not persisted: %s", got.Role)
	}

	users, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[0].Name != "Emp" || users[1].Name != "Root" {
		t.Fatalf("unexpected list order: %+v", users)
	}
}

func TestSetRole_LastAdminStays(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	root, err := s.RegisterFirstAdmin(ctx, "Root", "root@example.com", "rootpass")
	if err != nil {
		t.Fatalf("RegisterFirstAdmin: %v", err)
	}
	if _, err := s.SetRole(ctx, root.ID, models.RoleEmployee); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
	if role, _ := s.CurrentRole(ctx, root.ID); role != models.RoleAdmin {
		t.Fatalf("refused demotion must leave the role alone, got %s", role)
	}
	if _, err := s.RegisterFirstAdmin(ctx, "Mallory", "m@example.com", "secret1"); !errors.Is(err, ErrAdminExists) {
		t.Fatalf("bootstrap must stay closed, got %v", err)
	}

	second, err := s.Register(ctx, "Second", "second@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := s.SetRole(ctx, second.ID, models.RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}
	if _, err := s.SetRole(ctx, root.ID, models.RoleEmployee); err != nil {
		t.Fatalf("demoting one of two admins must work: %v", err)
	}
	if _, err := s.SetRole(ctx, second.ID, models.RoleEmployee); !errors.Is(err, ErrLastAdmin) {
		t.Fatalf("expected ErrLastAdmin for the remaining admin, got %v", err)
	}
	if _, err := s.SetRole(ctx, 999, models.RoleAdmin); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRegisterFirstAdmin_Concurrent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.RegisterFirstAdmin(ctx, "Root", fmt.Sprintf("root%d@example.com", i), "rootpass")
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrAdminExists):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one admin, got %d", created)
	}

	users, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("refused bootstraps must not leave users behind, got %d", len(users))
	}
}

func TestCurrentRole(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "Emp", "emp@example.com", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if role, err := s.CurrentRole(ctx, u.ID); err != nil || role != models.RoleEmployee {
		t.Fatalf("CurrentRole: %s %v", role, err)
	}
	if _, err := s.CurrentRole(ctx, 999); !errors.Is(err, session.ErrUnknownUser) {
		t.Fatalf("expected session.ErrUnknownUser, got %v", err)
	}
}

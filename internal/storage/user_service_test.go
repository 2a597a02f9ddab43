package storage

import (
	"errors"
	"testing"
)

func setupUsers(t *testing.T) *UserService {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return NewUserService(store)
}

func TestUserCreate(t *testing.T) {
	t.Run("assigns sequential ids", func(t *testing.T) {
		svc := setupUsers(t)
		a, err := svc.Create("alice", "pw1", RoleUser)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		b, err := svc.Create("bob", "pw2", RoleAdmin)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if a.ID != 1 || b.ID != 2 {
			t.Errorf("IDs = %d, %d; want 1, 2", a.ID, b.ID)
		}
		if b.Role != RoleAdmin {
			t.Errorf("Role = %q, want admin", b.Role)
		}
	})

	t.Run("defaults role to user", func(t *testing.T) {
		svc := setupUsers(t)
		u, err := svc.Create("alice", "pw", "")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if u.Role != RoleUser {
			t.Errorf("Role = %q, want user", u.Role)
		}
	})

	t.Run("rejects duplicate username", func(t *testing.T) {
		svc := setupUsers(t)
		if _, err := svc.Create("alice", "pw", RoleUser); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := svc.Create("alice", "other", RoleUser); !errors.Is(err, ErrDuplicateKey) {
			t.Errorf("Expected ErrDuplicateKey, got %v", err)
		}
	})

	t.Run("rejects empty fields and bad role", func(t *testing.T) {
		svc := setupUsers(t)
		if _, err := svc.Create("", "pw", RoleUser); !errors.Is(err, ErrValidation) {
			t.Errorf("Empty username: expected ErrValidation, got %v", err)
		}
		if _, err := svc.Create("alice", "", RoleUser); !errors.Is(err, ErrValidation) {
			t.Errorf("Empty password: expected ErrValidation, got %v", err)
		}
		if _, err := svc.Create("alice", "pw", Role("owner")); !errors.Is(err, ErrValidation) {
			t.Errorf("Bad role: expected ErrValidation, got %v", err)
		}
	})
}

func TestUserAuthenticate(t *testing.T) {
	svc := setupUsers(t)
	if _, err := svc.Create("alice", "secret", RoleUser); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("valid credentials", func(t *testing.T) {
		u, err := svc.Authenticate("alice", "secret")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if u.Username != "alice" || u.ID != 1 {
			t.Errorf("Unexpected user: %+v", u)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		if _, err := svc.Authenticate("alice", "wrong"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown username", func(t *testing.T) {
		if _, err := svc.Authenticate("mallory", "secret"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestUserUpdatePassword(t *testing.T) {
	svc := setupUsers(t)
	u, err := svc.Create("alice", "old", RoleUser)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("old password stops working", func(t *testing.T) {
		if err := svc.UpdatePassword(u.ID, "new"); err != nil {
			t.Fatalf("UpdatePassword failed: %v", err)
		}
		if _, err := svc.Authenticate("alice", "old"); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("Old password still accepted: %v", err)
		}
		if _, err := svc.Authenticate("alice", "new"); err != nil {
			t.Errorf("New password rejected: %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		if err := svc.UpdatePassword(999, "new"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Expected ErrNotFound, got %v", err)
		}
	})
}

func TestUserLookups(t *testing.T) {
	svc := setupUsers(t)
	if _, err := svc.Create("alice", "pw", RoleUser); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create("bob", "pw", RoleUser); err != nil {
		t.Fatal(err)
	}

	t.Run("Get", func(t *testing.T) {
		if u := svc.Get(2); u == nil || u.Username != "bob" {
			t.Errorf("Get(2) = %+v, want bob", u)
		}
		if u := svc.Get(999); u != nil {
			t.Errorf("Get(999) = %+v, want nil", u)
		}
	})

	t.Run("GetByUsername", func(t *testing.T) {
		if u := svc.GetByUsername("alice"); u == nil || u.ID != 1 {
			t.Errorf("GetByUsername(alice) = %+v, want id 1", u)
		}
		if u := svc.GetByUsername("mallory"); u != nil {
			t.Errorf("GetByUsername(mallory) = %+v, want nil", u)
		}
	})

	t.Run("List sorted by id", func(t *testing.T) {
		users := svc.List()
		if len(users) != 2 || users[0].ID != 1 || users[1].ID != 2 {
			t.Errorf("List() = %+v", users)
		}
	})
}

func TestEnsureAdmin(t *testing.T) {
	t.Run("seeds once", func(t *testing.T) {
		svc := setupUsers(t)
		seeded, err := svc.EnsureAdmin("admin", "admin123")
		if err != nil {
			t.Fatalf("EnsureAdmin failed: %v", err)
		}
		if !seeded {
			t.Error("Expected first call to seed")
		}
		seeded, err = svc.EnsureAdmin("admin", "admin123")
		if err != nil {
			t.Fatalf("EnsureAdmin failed: %v", err)
		}
		if seeded {
			t.Error("Expected second call to be a no-op")
		}
		if got := len(svc.List()); got != 1 {
			t.Errorf("Got %d users, want 1", got)
		}
	})

	t.Run("skips when any admin exists", func(t *testing.T) {
		svc := setupUsers(t)
		if _, err := svc.Create("root", "pw", RoleAdmin); err != nil {
			t.Fatal(err)
		}
		seeded, err := svc.EnsureAdmin("admin", "admin123")
		if err != nil {
			t.Fatalf("EnsureAdmin failed: %v", err)
		}
		if seeded {
			t.Error("Expected no seed when an admin already exists")
		}
		if u := svc.GetByUsername("admin"); u != nil {
			t.Errorf("Unexpected admin user created: %+v", u)
		}
	})

	t.Run("seeded admin can authenticate", func(t *testing.T) {
		svc := setupUsers(t)
		if _, err := svc.EnsureAdmin("admin", "admin123"); err != nil {
			t.Fatal(err)
		}
		u, err := svc.Authenticate("admin", "admin123")
		if err != nil {
			t.Fatalf("Authenticate failed: %v", err)
		}
		if u.Role != RoleAdmin {
			t.Errorf("Role = %q, want admin", u.Role)
		}
	})
}

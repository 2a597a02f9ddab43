package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/maruel/musicmark/internal/jsondb"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles user management and authentication.
type UserService struct {
	store *Store
	now   func() time.Time
}

// NewUserService creates a user service over the shared document store.
func NewUserService(store *Store) *UserService {
	return &UserService{store: store, now: time.Now}
}

// Create creates a new user with a bcrypt-hashed password and the next
// user id. Returns ErrDuplicateKey if the username is taken.
func (s *UserService) Create(username, password string, role Role) (*User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrValidation)
	}
	if role == "" {
		role = RoleUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	var created User
	err = s.store.Mutate(func(doc *Document) error {
		if findUser(doc, username) != nil {
			return fmt.Errorf("%w: username %q", ErrDuplicateKey, username)
		}
		doc.Seq.Users++
		created = User{
			ID:       doc.Seq.Users,
			Username: username,
			Role:     role,
			Created:  s.now().Unix(),
		}
		doc.Users = append(doc.Users, &UserRecord{User: created, PasswordHash: string(hash)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// Authenticate verifies credentials and returns the user's public fields.
// Both an unknown username and a wrong password yield ErrUnauthorized.
func (s *UserService) Authenticate(username, password string) (*User, error) {
	rec := findUser(s.store.Snapshot(), username)
	if rec == nil {
		return nil, ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}
	u := rec.User
	return &u, nil
}

// UpdatePassword overwrites the user's password hash in place.
func (s *UserService) UpdatePassword(id int64, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: password is required", ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.store.Mutate(func(doc *Document) error {
		for _, u := range doc.Users {
			if u.ID == id {
				u.PasswordHash = string(hash)
				return nil
			}
		}
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	})
}

// Get retrieves a user by id, or nil if absent.
func (s *UserService) Get(id int64) *User {
	for _, u := range s.store.Snapshot().Users {
		if u.ID == id {
			pub := u.User
			return &pub
		}
	}
	return nil
}

// GetByUsername retrieves a user by username, or nil if absent.
func (s *UserService) GetByUsername(username string) *User {
	rec := findUser(s.store.Snapshot(), username)
	if rec == nil {
		return nil
	}
	pub := rec.User
	return &pub
}

// List returns all users sorted by id, public fields only.
func (s *UserService) List() []*User {
	doc := s.store.Snapshot()
	users := make([]*User, 0, len(doc.Users))
	for _, u := range doc.Users {
		pub := u.User
		users = append(users, &pub)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

// EnsureAdmin seeds the first admin account. If any admin-role user
// already exists it does nothing. The check is repeated under the writer
// lock so the seed runs at most once per store lifetime.
func (s *UserService) EnsureAdmin(username, password string) (seeded bool, err error) {
	if hasAdmin(s.store.Snapshot()) {
		return false, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}
	err = s.store.Mutate(func(doc *Document) error {
		if hasAdmin(doc) {
			return jsondb.ErrNoop
		}
		doc.Seq.Users++
		doc.Users = append(doc.Users, &UserRecord{
			User: User{
				ID:       doc.Seq.Users,
				Username: username,
				Role:     RoleAdmin,
				Created:  s.now().Unix(),
			},
			PasswordHash: string(hash),
		})
		seeded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return seeded, nil
}

func findUser(doc *Document, username string) *UserRecord {
	for _, u := range doc.Users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func hasAdmin(doc *Document) bool {
	for _, u := range doc.Users {
		if u.Role == RoleAdmin {
			return true
		}
	}
	return false
}

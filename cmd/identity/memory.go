package identity

import (
	"context"
	"sync"

	"warden/cmd/security/password"
)

// MemoryDirectory is an in-process Directory, seeded at construction.
// It is safe for concurrent use.
type MemoryDirectory struct {
	passwords

	mu     sync.RWMutex
	byName map[string]User
}

// NewMemoryDirectory returns a directory holding users.
// Duplicate usernames are rejected with a ConflictError.
func NewMemoryDirectory(cfg password.Config, users ...User) (*MemoryDirectory, error) {
	const op = "identity.NewMemoryDirectory"

	d := &MemoryDirectory{
		passwords: passwords{cfg: cfg},
		byName:    make(map[string]User, len(users)),
	}
	for _, u := range users {
		if u.Username == "" || u.ID == "" {
			return nil, invalid(op, "seed user needs id and username")
		}
		if !u.Role.Valid() {
			return nil, invalid(op, "seed user has unknown role")
		}
		if _, dup := d.byName[u.Username]; dup {
			return nil, ConflictError{Op: op, Field: "username"}
		}
		d.byName[u.Username] = u
	}
	return d, nil
}

func (d *MemoryDirectory) FindByUsername(ctx context.Context, username string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}

	d.mu.RLock()
	u, ok := d.byName[username]
	d.mu.RUnlock()
	if !ok {
		return User{}, notFound("identity.FindByUsername")
	}
	return u, nil
}

func (d *MemoryDirectory) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	u, err := d.prepare(op, in)
	if err != nil {
		return User{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, dup := d.byName[u.Username]; dup {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	d.byName[u.Username] = u
	return u, nil
}

// UpgradePassword replaces u's hash unless it changed since u was read.
func (d *MemoryDirectory) UpgradePassword(ctx context.Context, u User, plain string) (bool, error) {
	const op = "identity.UpgradePassword"

	if err := ctx.Err(); err != nil {
		return false, err
	}
	h, ok, err := d.rehash(u.PasswordHash, plain)
	if err != nil || !ok {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	cur, found := d.byName[u.Username]
	if !found || cur.ID != u.ID {
		return false, notFound(op)
	}
	if cur.PasswordHash != u.PasswordHash {
		return false, nil
	}
	cur.PasswordHash = h
	d.byName[u.Username] = cur
	return true, nil
}

// Len returns the number of users.
func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byName)
}

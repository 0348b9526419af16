package repositorytest

import (
	"context"
	"sort"

	"ecommerce-api/internal/domain"
	"ecommerce-api/internal/repository"

	"github.com/google/uuid"
)

type userRepo struct{ view }

func (r *userRepo) Create(_ context.Context, user *domain.User) error {
	defer r.lock()()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrUserAlreadyExists
		}
		if u.Username == user.Username {
			return repository.ErrUsernameTaken
		}
	}
	r.s.users[user.ID] = cloneUser(user)
	return nil
}

func (r *userRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Email == email })
}

func (r *userRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.Username == username })
}

func (r *userRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	return r.find(func(u *domain.User) bool { return u.ID == id })
}

func (r *userRepo) List(_ context.Context) ([]*domain.User, error) {
	defer r.lock()()
	users := make([]*domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].Username < users[j].Username
	})
	return users, nil
}

func (r *userRepo) Update(_ context.Context, user *domain.User) error {
	defer r.lock()()
	stored, ok := r.s.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	for _, u := range r.s.users {
		if u.ID != user.ID && u.Email == user.Email {
			return repository.ErrUserAlreadyExists
		}
	}
	stored.Email = user.Email
	stored.FirstName = user.FirstName
	stored.LastName = user.LastName
	stored.Role = user.Role
	stored.UpdatedAt = user.UpdatedAt
	return nil
}

func (r *userRepo) Delete(_ context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	for key, t := range r.s.tokens {
		if t.UserID == id {
			delete(r.s.tokens, key)
		}
	}
	for cid, c := range r.s.carts {
		if c.UserID != id {
			continue
		}
		for iid, item := range r.s.items {
			if item.CartID == cid {
				delete(r.s.items, iid)
			}
		}
		delete(r.s.carts, cid)
	}
	for oid, o := range r.s.orders {
		if o.UserID == id {
			delete(r.s.orders, oid)
		}
	}
	delete(r.s.users, id)
	return nil
}

func (r *userRepo) find(match func(*domain.User) bool) (*domain.User, error) {
	defer r.lock()()
	for _, u := range r.s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrUserNotFound
}

type tokenRepo struct{ view }

func (r *tokenRepo) Create(_ context.Context, token *domain.RefreshToken) error {
	defer r.lock()()
	if _, ok := r.s.users[token.UserID]; !ok {
		return repository.ErrUserNotFound
	}
	c := *token
	r.s.tokens[token.Token] = &c
	return nil
}

func (r *tokenRepo) FindByToken(_ context.Context, token string) (*domain.RefreshToken, error) {
	defer r.lock()()
	t, ok := r.s.tokens[token]
	if !ok {
		return nil, repository.ErrRefreshTokenNotFound
	}
	if t.Revoked {
		return nil, repository.ErrRefreshTokenRevoked
	}
	c := *t
	return &c, nil
}

func (r *tokenRepo) Revoke(_ context.Context, token string) error {
	defer r.lock()()
	t, ok := r.s.tokens[token]
	if !ok {
		return repository.ErrRefreshTokenNotFound
	}
	t.Revoked = true
	return nil
}

func (r *tokenRepo) RevokeAllForUser(_ context.Context, userID uuid.UUID) error {
	defer r.lock()()
	for _, t := range r.s.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

// PromoteUser grants the admin role to an existing user
func (s *Store) PromoteUser(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Role = domain.RoleAdmin
	}
}

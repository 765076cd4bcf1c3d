// Package rolegate enforces the role and ownership invariants consulted
// before any ledger mutation: a profile's kind must match its principal's
// role, a principal's role never changes after creation, and only owners may
// mutate their events, pools and bookings.
package rolegate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerline/event-ticketing/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type Store interface {
	// CreateAccount inserts the principal together with the profile row
	// matching its role, in one transaction.
	CreateAccount(ctx context.Context, p domain.Principal) (profileID uuid.UUID, err error)
	PrincipalByEmail(ctx context.Context, email string) (*domain.Principal, error)
	PrincipalByID(ctx context.Context, id uuid.UUID) (*domain.Principal, error)
	UpdatePrincipal(ctx context.Context, id uuid.UUID, name, passwordHash string) error
	InsertOrganizerProfile(ctx context.Context, p domain.OrganizerProfile) error
	InsertCustomerProfile(ctx context.Context, p domain.CustomerProfile) error
	OrganizerProfileByPrincipal(ctx context.Context, principalID uuid.UUID) (*domain.OrganizerProfile, error)
	CustomerProfileByPrincipal(ctx context.Context, principalID uuid.UUID) (*domain.CustomerProfile, error)
	EventByID(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	PoolByID(ctx context.Context, id uuid.UUID) (*domain.TicketPool, error)
}

type Gate struct {
	store Store
}

func New(store Store) *Gate {
	return &Gate{store: store}
}

type Account struct {
	Principal domain.Principal
	ProfileID uuid.UUID
}

type RegisterInput struct {
	Email    string
	Name     string
	Password string
	Role     string
}

// Register creates a principal whose role is fixed for its lifetime, plus the
// matching profile. The profile kind is derived from the role, so a
// role/profile mismatch cannot be constructed through this path.
func (g *Gate) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if in.Email == "" || in.Password == "" {
		return nil, domain.ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	p := domain.Principal{
		ID:           uuid.New(),
		Email:        in.Email,
		Name:         in.Name,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	profileID, err := g.store.CreateAccount(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Account{Principal: p, ProfileID: profileID}, nil
}

// Authenticate verifies credentials and returns the principal. Both unknown
// email and wrong password come back as ErrInvalidCredentials.
func (g *Gate) Authenticate(ctx context.Context, email, password string) (*domain.Principal, error) {
	p, err := g.store.PrincipalByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return p, nil
}

type UpdatePrincipalInput struct {
	Name     string
	Password string
	// RoleProvided is set when the caller's payload carried a role field at
	// all; any such attempt is rejected, regardless of the value.
	RoleProvided bool
}

func (g *Gate) UpdatePrincipal(ctx context.Context, id uuid.UUID, in UpdatePrincipalInput) (*domain.Principal, error) {
	if in.RoleProvided {
		return nil, domain.ErrRoleImmutable
	}
	p, err := g.store.PrincipalByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		p.PasswordHash = string(hash)
	}
	if err := g.store.UpdatePrincipal(ctx, id, p.Name, p.PasswordHash); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateOrganizerProfile attaches an organizer profile to an existing
// principal. Fails with RoleMismatch unless the principal's role is
// organizer; no profile row is created on failure.
func (g *Gate) CreateOrganizerProfile(ctx context.Context, principalID uuid.UUID) (*domain.OrganizerProfile, error) {
	p, err := g.store.PrincipalByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if p.Role != domain.RoleOrganizer {
		return nil, domain.ErrRoleMismatch
	}
	prof := domain.OrganizerProfile{ID: uuid.New(), PrincipalID: principalID, CreatedAt: time.Now().UTC()}
	if err := g.store.InsertOrganizerProfile(ctx, prof); err != nil {
		return nil, err
	}
	return &prof, nil
}

// CreateCustomerProfile is the customer counterpart of
// CreateOrganizerProfile.
func (g *Gate) CreateCustomerProfile(ctx context.Context, principalID uuid.UUID) (*domain.CustomerProfile, error) {
	p, err := g.store.PrincipalByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if p.Role != domain.RoleCustomer {
		return nil, domain.ErrRoleMismatch
	}
	prof := domain.CustomerProfile{ID: uuid.New(), PrincipalID: principalID, CreatedAt: time.Now().UTC()}
	if err := g.store.InsertCustomerProfile(ctx, prof); err != nil {
		return nil, err
	}
	return &prof, nil
}

// CustomerFor resolves the customer profile acting for a principal. A
// principal without one (an organizer, say) gets ErrForbidden.
func (g *Gate) CustomerFor(ctx context.Context, principalID uuid.UUID) (*domain.CustomerProfile, error) {
	prof, err := g.store.CustomerProfileByPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	return prof, nil
}

// OrganizerFor resolves the organizer profile acting for a principal.
func (g *Gate) OrganizerFor(ctx context.Context, principalID uuid.UUID) (*domain.OrganizerProfile, error) {
	prof, err := g.store.OrganizerProfileByPrincipal(ctx, principalID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrForbidden
		}
		return nil, err
	}
	return prof, nil
}

// AuthorizeEventWrite checks that the principal's organizer profile owns the
// event. The event must exist (ErrNotFound otherwise); a non-owner gets
// ErrForbidden, which handlers on update/delete paths report as not found.
func (g *Gate) AuthorizeEventWrite(ctx context.Context, principalID, eventID uuid.UUID) (*domain.Event, error) {
	prof, err := g.OrganizerFor(ctx, principalID)
	if err != nil {
		return nil, err
	}
	ev, err := g.store.EventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.OrganizerID != prof.ID {
		return nil, domain.ErrForbidden
	}
	return ev, nil
}

// AuthorizePoolWrite resolves a pool and checks ownership of its event.
func (g *Gate) AuthorizePoolWrite(ctx context.Context, principalID, poolID uuid.UUID) (*domain.TicketPool, error) {
	pool, err := g.store.PoolByID(ctx, poolID)
	if err != nil {
		return nil, err
	}
	if _, err := g.AuthorizeEventWrite(ctx, principalID, pool.EventID); err != nil {
		return nil, err
	}
	return pool, nil
}

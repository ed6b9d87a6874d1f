package user

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/user-service/internal/apperror"
	"github.com/Sternrassler/user-service/internal/notify"
	"github.com/Sternrassler/user-service/pkg/cache"
	"github.com/Sternrassler/user-service/pkg/logging"
	"github.com/Sternrassler/user-service/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "user_events_total",
	Help: "Total user lifecycle events by type",
}, []string{"event"})

// Cache key roots. Every key the service writes starts with "user_", which
// is what invalidation matches.
const (
	keyUser        = "user"
	keyList        = "user_list"
	invalidateKeys = "user_*"
)

// DefaultCacheTTL applies when Options.CacheTTL is unset.
const DefaultCacheTTL = 5 * time.Minute

// Notifier receives lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, e notify.Event)
}

// Options holds the optional collaborators of a Service.
type Options struct {
	// Cache enables cache-aside reads when set.
	Cache cache.Store

	CacheTTL time.Duration

	// Notifier receives created, updated and deleted events when set.
	Notifier Notifier
}

// Service implements the user operations. Cache failures never fail an
// operation.
type Service struct {
	repo     *Repository
	cache    cache.Store
	ttl      time.Duration
	notifier Notifier
}

// NewService creates a service over repo.
func NewService(repo *Repository, opts Options) *Service {
	s := &Service{
		repo:     repo,
		cache:    opts.Cache,
		ttl:      opts.CacheTTL,
		notifier: opts.Notifier,
	}
	if s.cache == nil {
		s.cache = noCache{}
	}
	if s.ttl <= 0 {
		s.ttl = DefaultCacheTTL
	}
	if s.notifier == nil {
		s.notifier = notify.Nop{}
	}
	return s
}

// List returns one page of users.
func (s *Service) List(ctx context.Context, page pagination.Page) (*Page, error) {
	key := cache.Key(keyList, page.Limit, page.Offset)
	if cached, ok := cache.GetJSON[Page](ctx, s.cache, key); ok {
		return &cached, nil
	}

	users, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	result := &Page{Users: users, Total: total}
	cache.SetJSON(ctx, s.cache, key, result, s.ttl)
	return result, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	key := cache.Key(keyUser, id)
	if cached, ok := cache.GetJSON[User](ctx, s.cache, key); ok {
		return &cached, nil
	}

	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repoError(err, id)
	}

	cache.SetJSON(ctx, s.cache, key, u, s.ttl)
	return u, nil
}

// Create validates in, stores a new user and announces it.
func (s *Service) Create(ctx context.Context, in CreateInput) (*User, error) {
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	u := &User{
		Username:         in.Username,
		Email:            in.Email,
		PasswordHash:     hash,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		PhoneNumber:      in.PhoneNumber,
		AddressLine1:     in.AddressLine1,
		AddressLine2:     in.AddressLine2,
		City:             in.City,
		StateProvince:    in.StateProvince,
		PostalCode:       in.PostalCode,
		Country:          in.Country,
		RegistrationDate: time.Now().UTC().Truncate(time.Microsecond),
		UserType:         in.UserType,
	}
	if u.UserType == "" {
		u.UserType = TypeCustomer
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, repoError(err, 0)
	}

	s.changed(ctx, notify.EventUserCreated, u.ID, u)
	return u, nil
}

// Update applies the fields set in in and announces the change.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*User, error) {
	if in.Empty() {
		return nil, apperror.BadRequest("No fields to update")
	}
	if err := in.Validate(); err != nil {
		return nil, validationError(err)
	}

	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, repoError(err, id)
	}

	columns, err := apply(u, in)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if err := s.repo.Update(ctx, u, columns...); err != nil {
		return nil, repoError(err, id)
	}

	s.changed(ctx, notify.EventUserUpdated, u.ID, u)
	return u, nil
}

// Delete removes a user and announces it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, id)
	}

	s.changed(ctx, notify.EventUserDeleted, id, nil)
	return nil
}

// changed drops every cached user entry and publishes the event.
func (s *Service) changed(ctx context.Context, event string, id int64, data any) {
	n := s.cache.DeleteByPattern(ctx, invalidateKeys)
	eventsTotal.WithLabelValues(event).Inc()

	logging.Ctx(ctx).Info().
		Str("event", event).
		Int64("user_id", id).
		Int64("invalidated", n).
		Msg("User changed")

	s.notifier.Notify(ctx, notify.Event{Type: event, UserID: id, Data: data})
}

// apply copies the set fields of in onto u and returns the changed columns.
func apply(u *User, in UpdateInput) ([]string, error) {
	var columns []string
	set := func(dst *string, src *string, column string) {
		if src == nil {
			return
		}
		*dst = *src
		columns = append(columns, column)
	}

	set(&u.Username, in.Username, "username")
	set(&u.Email, in.Email, "email")
	set(&u.FirstName, in.FirstName, "first_name")
	set(&u.LastName, in.LastName, "last_name")
	set(&u.PhoneNumber, in.PhoneNumber, "phone_number")
	set(&u.AddressLine1, in.AddressLine1, "address_line1")
	set(&u.AddressLine2, in.AddressLine2, "address_line2")
	set(&u.City, in.City, "city")
	set(&u.StateProvince, in.StateProvince, "state_province")
	set(&u.PostalCode, in.PostalCode, "postal_code")
	set(&u.Country, in.Country, "country")
	set(&u.UserType, in.UserType, "user_type")

	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
		columns = append(columns, "password_hash")
	}
	return columns, nil
}

func repoError(err error, id int64) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return apperror.NotFound("User not found").WithContext("user_id", id)
	case errors.Is(err, ErrDuplicate):
		return apperror.Conflict("Username or email already exists")
	default:
		return apperror.Internal(err)
	}
}

type noCache struct{}

func (noCache) Get(context.Context, string) (string, bool)      { return "", false }
func (noCache) Set(context.Context, string, any, time.Duration) {}
func (noCache) Delete(context.Context, string)                  {}
func (noCache) DeleteByPattern(context.Context, string) int64   { return 0 }

// Package identity generates the fictitious user data a journey registers with.
package identity

import (
	"fmt"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-playground/validator/v10"
)

// Identity is the credential triple used to create and authenticate a test user.
type Identity struct {
	Email    string `json:"email" yaml:"email" validate:"required,email"`
	Username string `json:"username" yaml:"username" validate:"required"`
	Password string `json:"password" yaml:"password" validate:"required"`
}

// WithEmailSuffix returns a copy of the identity with suffix appended to the email.
func (i Identity) WithEmailSuffix(suffix string) Identity {
	i.Email += suffix
	return i
}

// Provider supplies identities. Each call should return a fresh one.
type Provider interface {
	Generate() (Identity, error)
}

var validate = validator.New()

// Validate checks that the identity is syntactically usable.
func Validate(id Identity) error {
	if err := validate.Struct(id); err != nil {
		return fmt.Errorf("invalid identity: %w", err)
	}
	return nil
}

// FakeProvider generates random identities with gofakeit.
type FakeProvider struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// NewFakeProvider creates a provider. A zero seed picks a random one.
func NewFakeProvider(seed uint64) *FakeProvider {
	return &FakeProvider{faker: gofakeit.New(seed)}
}

// Generate returns a new random identity.
func (p *FakeProvider) Generate() (Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := Identity{
		Email:    p.faker.Email(),
		Username: p.faker.Username(),
		Password: p.faker.Password(true, true, true, true, false, 12),
	}
	if err := Validate(id); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// StaticProvider always returns the same identity.
type StaticProvider struct {
	Identity Identity
}

// Generate returns the fixed identity after validating it.
func (p StaticProvider) Generate() (Identity, error) {
	if err := Validate(p.Identity); err != nil {
		return Identity{}, err
	}
	return p.Identity, nil
}

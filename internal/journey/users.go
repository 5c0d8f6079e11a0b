package journey

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/FairForge/userjourney/internal/client"
	"github.com/FairForge/userjourney/internal/config"
	"github.com/FairForge/userjourney/internal/identity"
	"github.com/FairForge/userjourney/internal/logger"
)

// Step names of the user CRUD journey, in execution order.
const (
	StepCreateUser        = "create-user"
	StepLoginUser         = "login-user"
	StepUpdateUser        = "update-user"
	StepGetUser           = "get-user"
	StepDeleteUser        = "delete-user"
	StepVerifyUserDeleted = "verify-user-deleted"
)

// Users API routes.
const (
	RouteRegister = "/users/register"
	RouteLogin    = "/users/login"
	RouteUser     = "/users/{id}"
)

// Sender sends one request and returns the response. *client.Client
// satisfies it.
type Sender interface {
	Do(ctx context.Context, req client.Request) (*client.Response, error)
}

// UserJourney builds the register → login → update → get → delete →
// verify-deleted scenario.
type UserJourney struct {
	run      config.RunConfig
	provider identity.Provider
	sender   Sender
	logger   *zap.Logger
}

// NewUserJourney wires a journey. The provider is called once per run.
func NewUserJourney(run config.RunConfig, provider identity.Provider, sender Sender, l *zap.Logger) *UserJourney {
	if run.EmailSuffix == "" {
		run.EmailSuffix = config.DefaultEmailSuffix
	}
	return &UserJourney{
		run:      run,
		provider: provider,
		sender:   sender,
		logger:   logger.OrNop(l),
	}
}

// Scenario returns the six dependent steps plus setup and teardown.
func (j *UserJourney) Scenario() Scenario {
	return Scenario{
		Name:        "user-journey",
		Description: "User CRUD operations",
		Setup:       j.setup,
		Teardown:    j.teardown,
		Steps: []Step{
			{Name: StepCreateUser, Action: j.createUser},
			{Name: StepLoginUser, DependsOn: StepCreateUser, Action: j.loginUser},
			{Name: StepUpdateUser, DependsOn: StepLoginUser, Action: j.updateUser},
			{Name: StepGetUser, DependsOn: StepUpdateUser, Action: j.getUserAndVerify},
			{Name: StepDeleteUser, DependsOn: StepGetUser, Action: j.deleteUser},
			{Name: StepVerifyUserDeleted, DependsOn: StepDeleteUser, Action: j.verifyUserIsDeleted},
		},
	}
}

func userPath(id string) string {
	return "/users/" + id
}

func (j *UserJourney) setup(_ context.Context, s *Session) error {
	if j.provider == nil || j.sender == nil {
		return fmt.Errorf("journey needs an identity provider and a sender")
	}
	id, err := j.provider.Generate()
	if err != nil {
		return fmt.Errorf("generate identity: %w", err)
	}
	s.Original = id
	s.Identity = id
	j.logger.Info("generated identity", zap.String("email", id.Email), zap.String("username", id.Username))
	return nil
}

func (j *UserJourney) createUser(ctx context.Context, s *Session) error {
	resp, err := j.sender.Do(ctx, client.Request{Method: http.MethodPost, Path: RouteRegister, Body: s.Identity})
	if err != nil {
		return err
	}
	if err := resp.ExpectStatus(http.StatusCreated); err != nil {
		return err
	}
	if err := (client.ResponseSpec{Schema: client.UserIDSchema}).Conform(resp); err != nil {
		return err
	}
	userID, err := resp.ExpectNonEmpty("id")
	if err != nil {
		return fmt.Errorf("user id should not be empty after registration: %w", err)
	}
	s.UserID = userID
	return nil
}

func (j *UserJourney) loginUser(ctx context.Context, s *Session) error {
	resp, err := j.sender.Do(ctx, client.Request{Method: http.MethodPost, Path: RouteLogin, Body: s.Identity})
	if err != nil {
		return err
	}
	if err := resp.ExpectStatus(http.StatusCreated); err != nil {
		return err
	}
	s.LoggedInUserID = resp.Field("id")

	if j.run.CrossCheckLogin && s.LoggedInUserID != s.UserID {
		return &client.AssertionError{Check: "login id", Expected: s.UserID, Actual: s.LoggedInUserID, Body: resp.String()}
	}
	return nil
}

func (j *UserJourney) updateUser(ctx context.Context, s *Session) error {
	userID, err := s.RequireUserID()
	if err != nil {
		return err
	}

	updated := s.Original.WithEmailSuffix(j.run.EmailSuffix)
	resp, err := j.sender.Do(ctx, client.Request{Method: http.MethodPatch, Path: userPath(userID), Route: RouteUser, Body: updated})
	if err != nil {
		return err
	}
	s.Identity = updated

	if err := resp.ExpectStatus(http.StatusOK); err != nil {
		return err
	}
	return client.JSONResponse().Conform(resp)
}

func (j *UserJourney) getUserAndVerify(ctx context.Context, s *Session) error {
	userID, err := s.RequireUserID()
	if err != nil {
		return err
	}

	resp, err := j.sender.Do(ctx, client.Request{Method: http.MethodGet, Path: userPath(userID), Route: RouteUser})
	if err != nil {
		return err
	}
	if err := resp.ExpectStatus(http.StatusOK); err != nil {
		return err
	}
	if err := (client.ResponseSpec{Schema: client.UserSchema}).Conform(resp); err != nil {
		return err
	}
	if err := resp.ExpectField("email", s.Original.WithEmailSuffix(j.run.EmailSuffix).Email); err != nil {
		return fmt.Errorf("email should be updated correctly: %w", err)
	}
	return nil
}

func (j *UserJourney) deleteUser(ctx context.Context, s *Session) error {
	userID, err := s.RequireUserID()
	if err != nil {
		return err
	}

	resp, err := j.sender.Do(ctx, client.Request{Method: http.MethodDelete, Path: userPath(userID), Route: RouteUser})
	if err != nil {
		return err
	}
	return resp.ExpectStatus(http.StatusNoContent)
}

func (j *UserJourney) verifyUserIsDeleted(ctx context.Context, s *Session) error {
	userID, err := s.RequireUserID()
	if err != nil {
		return err
	}

	resp, err := j.sender.Do(ctx, client.Request{Method: http.MethodGet, Path: userPath(userID), Route: RouteUser})
	if err != nil {
		return err
	}
	return resp.ExpectStatus(http.StatusNotFound)
}

// teardown removes a user left behind by a run that stopped between
// create and delete. Only active with run.cleanup.
func (j *UserJourney) teardown(ctx context.Context, s *Session, res *Result) error {
	if !j.run.Cleanup || s.UserID == "" {
		return nil
	}
	if del, ok := res.Step(StepDeleteUser); ok && del.Outcome == OutcomePassed {
		return nil
	}

	resp, err := j.sender.Do(ctx, client.Request{Method: http.MethodDelete, Path: userPath(s.UserID), Route: RouteUser})
	if err != nil {
		return fmt.Errorf("cleanup user %s: %w", s.UserID, err)
	}
	j.logger.Info("cleaned up user", zap.String("user_id", s.UserID), zap.Int("status", resp.StatusCode))
	return nil
}

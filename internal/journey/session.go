package journey

import (
	"errors"

	"github.com/FairForge/userjourney/internal/identity"
)

// ErrNoUserID is returned by steps that address a user before one was created.
var ErrNoUserID = errors.New("user id is empty; create step has not produced one")

// Session is the state threaded between the steps of one run. It lives
// only as long as the run.
type Session struct {
	// Original is the identity as generated; Identity is what was last sent.
	Original identity.Identity
	Identity identity.Identity

	UserID         string
	LoggedInUserID string
}

// RequireUserID returns the user id or ErrNoUserID.
func (s *Session) RequireUserID() (string, error) {
	if s.UserID == "" {
		return "", ErrNoUserID
	}
	return s.UserID, nil
}

// Package store keeps conversation transcripts keyed by session id.
// Nothing here promises durability beyond what the backend offers.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/abhirockzz/langchaingo-trip-planner/plan"
)

// Store loads and saves the full message list of a session. Load returns an
// empty slice and no error for sessions it has never seen.
type Store interface {
	Load(ctx context.Context, sessionID string) ([]plan.ConversationMessage, error)
	Save(ctx context.Context, sessionID string, msgs []plan.ConversationMessage) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrInvalidSessionID = errors.New("invalid session id")

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,128}$`)

func checkSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

func clone(msgs []plan.ConversationMessage) []plan.ConversationMessage {
	out := make([]plan.ConversationMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Package waiting keeps track of render executions parked until the
// rendering service calls their resume URL.
package waiting

import (
	"context"
	"time"

	"outputrocks-nodes/internal/common/errors"

	"github.com/google/uuid"
)

// PendingExecution is a parked execution addressed by its resume token.
type PendingExecution struct {
	Token              string    `json:"token"`
	NodeName           string    `json:"nodeName"`
	JobKey             int64     `json:"jobKey"`
	ProcessInstanceKey int64     `json:"processInstanceKey"`
	WaitTill           time.Time `json:"waitTill"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Expired reports whether the wait window has passed at now.
func (p PendingExecution) Expired(now time.Time) bool {
	return !p.WaitTill.IsZero() && now.After(p.WaitTill)
}

// Store holds parked executions. Take removes the entry so a token resumes
// at most once. Both Get and Take return an EXECUTION_NOT_WAITING error for
// unknown or expired tokens.
type Store interface {
	Park(ctx context.Context, exec PendingExecution) error
	Get(ctx context.Context, token string) (*PendingExecution, error)
	Take(ctx context.Context, token string) (*PendingExecution, error)
}

// ErrNotWaiting matches any EXECUTION_NOT_WAITING error via errors.Is.
var ErrNotWaiting = &errors.StandardError{Code: errors.ErrCodeExecutionNotWaiting}

// NewToken returns a fresh resume token.
func NewToken() string {
	return uuid.NewString()
}

package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuthzExpirySweep deactivates role assignments and delegations
	// whose expiry has passed.
	TaskAuthzExpirySweep = "authz:expiry-sweep"
	// TaskAuthzAccessReview snapshots each organization's live grants for
	// periodic review.
	TaskAuthzAccessReview = "authz:access-review"
)

// ExpirySweepPayload configures an expiry sweep run. AsOf overrides the
// sweep cutoff; the zero value means "now".
type ExpirySweepPayload struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// AccessReviewPayload configures an access review run. When OrganizationID
// is nil the review covers every organization.
type AccessReviewPayload struct {
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
}

// NewExpirySweepTask constructs an Asynq task for the expiry sweep.
func NewExpirySweepTask(payload ExpirySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzExpirySweep, data), nil
}

// NewAccessReviewTask constructs an Asynq task for the access review.
func NewAccessReviewTask(payload AccessReviewPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuthzAccessReview, data), nil
}

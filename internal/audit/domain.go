package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded administrative change.
type Entry struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	OccurredAt     time.Time      `json:"occurred_at" db:"occurred_at"`
	Actor          uuid.UUID      `json:"actor_id" db:"actor_id"`
	Action         string         `json:"action" db:"action"`
	Entity         string         `json:"entity" db:"entity"`
	EntityID       string         `json:"entity_id" db:"entity_id"`
	OrganizationID *uuid.UUID     `json:"organization_id,omitempty" db:"organization_id"`
	Detail         map[string]any `json:"detail,omitempty" db:"detail"`
}

// TimelineFilters holds the basic filters for the audit timeline.
type TimelineFilters struct {
	From           time.Time
	To             time.Time
	Actor          string
	Entity         string
	Action         string
	OrganizationID *uuid.UUID
	Page           int
	PageSize       int
}

// TimelineRow represents one audit timeline row, flattened for display
// and export. Actor carries the user's email when the account still
// exists, otherwise the raw actor id.
type TimelineRow struct {
	At           time.Time `json:"at"`
	Actor        string    `json:"actor"`
	Action       string    `json:"action"`
	Entity       string    `json:"entity"`
	EntityID     string    `json:"entity_id"`
	Organization string    `json:"organization,omitempty"`
	Detail       string    `json:"detail,omitempty"`
}

// PagingInfo keeps simple pagination metadata.
type PagingInfo struct {
	Page     int  `json:"page"`
	HasNext  bool `json:"has_next"`
	PageSize int  `json:"page_size"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps timeline rows with paging information.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}

package domain

import (
	"encoding/json"
	"time"
)

// AuditLog records one mutation attempt on a run or category.
type AuditLog struct {
	ID           string
	UserID       string // Who performed the action
	Action       AuditAction
	ResourceType string // run, category
	ResourceID   string
	RequestID    string
	Details      JSON
	Status       AuditStatus
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a free-form JSON object.
type JSON map[string]any

// AuditAction names an auditable action.
type AuditAction string

const (
	AuditActionRunCreate       AuditAction = "run.create"
	AuditActionRunUpdate       AuditAction = "run.update"
	AuditActionRunDelete       AuditAction = "run.delete"
	AuditActionRunSystemUpdate AuditAction = "run.system_update"
	AuditActionRunClose        AuditAction = "run.close"
	AuditActionRunReopen       AuditAction = "run.reopen"
	AuditActionExcludeConcepts AuditAction = "run.exclude_concepts"
	AuditActionIncludeConcept  AuditAction = "run.remove_excluded_concept"
	AuditActionExcludeCategory AuditAction = "run.exclude_category"
	AuditActionSetMatch        AuditAction = "run.set_match"
	AuditActionPendingCreate   AuditAction = "pending.create"
	AuditActionPendingStart    AuditAction = "pending.start"
	AuditActionPendingResolve  AuditAction = "pending.resolve"
	AuditActionMemberSet       AuditAction = "member.set"
	AuditActionMemberRemove    AuditAction = "member.remove"
	AuditActionNotify          AuditAction = "run.notify"
	AuditActionMessagePost     AuditAction = "run.message_post"
	AuditActionCategoryCreate  AuditAction = "category.create"
	AuditActionCategoryUpdate  AuditAction = "category.update"
	AuditActionCategoryDelete  AuditAction = "category.delete"
)

// AuditStatus is the outcome of an audited action.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// MarshalState converts a value to a JSON object for audit details.
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}

// AuditFilter narrows an audit log query.
type AuditFilter struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Limit        int
	Offset       int
}

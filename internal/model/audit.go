package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    uuid.UUID       `json:"actor_id" db:"actor_id"`
	ActorRole  Role            `json:"actor_role" db:"actor_role"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	Changes    json.RawMessage `json:"changes,omitempty" db:"changes"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate   = "create"
	AuditActionRead     = "read"
	AuditActionEdit     = "edit"
	AuditActionTransfer = "transfer"
	AuditActionOverride = "override"
	AuditActionList     = "list"

	// Entity types
	AuditEntityPatient    = "patient"
	AuditEntityNote       = "clinical_note"
	AuditEntityVitals     = "vital_reading"
	AuditEntityMedication = "medication_administration"
	AuditEntityTransfer   = "transfer"
)

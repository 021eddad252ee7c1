// Package audit records every mutating action in an append-only trail.
//
// Writes are fire-and-forget: the recorder starts a detached insert and
// returns immediately, so the triggering request's outcome is never coupled
// to audit insertion. Insert failures are logged and swallowed. There is no
// ordering guarantee between an audit row and the mutation it describes.
package audit

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/nasuha-connect/nasuha-connect/internal/db/models"
)

// RedactedPlaceholder replaces sensitive values in state snapshots.
const RedactedPlaceholder = "[REDACTED]"

// sensitiveKeys are snapshot fields that must never be persisted verbatim.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"passwordHash":  {},
	"password_hash": {},
	"PasswordHash":  {},
}

// Entry describes one mutating action to be recorded.
type Entry struct {
	// UserID is the acting user; nil for system actions.
	UserID *string
	// Action names the mutation (use the models.Audit* constants).
	Action string
	// EntityTable is the table of the affected entity.
	EntityTable string
	// EntityID is the ID of the affected record, when known.
	EntityID *string
	// PreviousState is the entity state before the change (UPDATE/DELETE).
	PreviousState interface{}
	// NewState is the entity state after the change (CREATE/UPDATE).
	NewState interface{}
	// IPAddress and UserAgent describe the triggering request.
	IPAddress *string
	UserAgent *string
	// Metadata carries extra context (e.g. impersonator info).
	Metadata interface{}
}

// Recorder writes audit entries to the append-only store.
type Recorder struct {
	db *gorm.DB
	wg sync.WaitGroup
}

// NewRecorder creates a recorder writing to the given database handle.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record persists an entry without blocking the caller.
// Snapshot encoding happens synchronously so the caller's view of the entity
// is captured before it can change; the insert itself runs detached.
// All failures are logged and swallowed — an audit write must never fail the
// request that triggered it.
func (r *Recorder) Record(entry Entry) {
	row := models.AuditLog{
		UserID:        entry.UserID,
		Action:        entry.Action,
		EntityTable:   entry.EntityTable,
		EntityID:      entry.EntityID,
		PreviousState: encodeSnapshot(entry.Action, "previous_state", entry.PreviousState),
		NewState:      encodeSnapshot(entry.Action, "new_state", entry.NewState),
		IPAddress:     entry.IPAddress,
		UserAgent:     entry.UserAgent,
		Metadata:      encodeSnapshot(entry.Action, "metadata", entry.Metadata),
	}

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		if err := r.db.Create(&row).Error; err != nil {
			log.Error().Err(err).
				Str("action", entry.Action).
				Str("entity_table", entry.EntityTable).
				Msg("audit log insert failed")
		}
	}()
}

// Wait blocks until all in-flight audit writes have finished.
// Used at shutdown and in tests; request handlers never call it.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// encodeSnapshot redacts sensitive fields and JSON encodes a snapshot value.
// Returns nil for nil input or when the value cannot be encoded.
func encodeSnapshot(action, field string, value interface{}) *string {
	if value == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		log.Error().Err(err).Str("action", action).Str("field", field).
			Msg("audit snapshot encode failed")

		return nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		log.Error().Err(err).Str("action", action).Str("field", field).
			Msg("audit snapshot decode failed")

		return nil
	}

	redacted, err := json.Marshal(redact(decoded))
	if err != nil {
		log.Error().Err(err).Str("action", action).Str("field", field).
			Msg("audit snapshot encode failed")

		return nil
	}

	out := string(redacted)

	return &out
}

// redact walks a decoded JSON value and replaces sensitive fields.
func redact(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		for key, inner := range v {
			if _, sensitive := sensitiveKeys[key]; sensitive {
				if inner != nil {
					v[key] = RedactedPlaceholder
				}

				continue
			}

			v[key] = redact(inner)
		}

		return v
	case []interface{}:
		for i, inner := range v {
			v[i] = redact(inner)
		}

		return v
	default:
		return value
	}
}

// Package syncengine reconciles marketplace state with the local store: it
// pages through remote listings, resolves conflicts against local records,
// persists results in transactional batches, and tracks run lifecycle.
package syncengine

import (
	"encoding/json"
	"fmt"
	"time"
)

// FieldValue is one named field of a record. A missing field keeps its own
// entry with Present=false, so absence stays attributable to the field rather
// than collapsing into a shared sentinel.
type FieldValue struct {
	Value   any
	Present bool
}

func Field(v any) FieldValue {
	return FieldValue{Value: v, Present: true}
}

func MissingField() FieldValue {
	return FieldValue{}
}

// RemoteRecord is a validated remote entity in resolver form.
type RemoteRecord struct {
	RemoteID     string
	AccountScope string
	UpdatedAt    *time.Time
	Fields       map[string]FieldValue
	Raw          json.RawMessage
	FetchedAt    time.Time
}

// LocalView is the local side of a conflict: the current field values of the
// stored record, if one exists.
type LocalView struct {
	Exists     bool
	UpdatedAt  time.Time
	SyncStatus string
	Fields     map[string]FieldValue
}

// Action is what the batch upserter should do with a record.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionUnchanged Action = "unchanged"
	ActionManual    Action = "manual"
)

// Field sources recorded in a decision.
const (
	SourceLocal  = "local"
	SourceRemote = "remote"
)

// Decision is the transient outcome of resolving one record. It lives only as
// long as the batch that applies it.
type Decision struct {
	Action Action
	// Merged holds the winning value per field for create/update actions.
	Merged map[string]FieldValue
	// Source attributes each merged field to the side it came from.
	Source map[string]string
}

// Strategy selects the conflict resolution policy.
type Strategy string

const (
	// StrategyRemotePriority lets remote values overwrite local ones, except
	// fields marked local-only.
	StrategyRemotePriority Strategy = "remote_priority"
	// StrategyLocalPriority keeps local business fields authoritative; the
	// fetch only confirms the record exists remotely.
	StrategyLocalPriority Strategy = "local_priority"
	// StrategyNewestWins compares modification timestamps field-by-field.
	// When the remote payload carries no reliable timestamp the remote side
	// wins by convention; that tie-break is an assumption pending product
	// confirmation, not a verified requirement.
	StrategyNewestWins Strategy = "newest_wins"
	// StrategyManual defers divergent records to an operator: they are
	// flagged conflict and excluded from automatic writes.
	StrategyManual Strategy = "manual"
)

func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyRemotePriority, nil
	}
	switch Strategy(s) {
	case StrategyRemotePriority, StrategyLocalPriority, StrategyNewestWins, StrategyManual:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unsupported conflict strategy: %q", s)
}

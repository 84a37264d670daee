package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"marketsync/internal/client/marketplace"
)

// Adapter binds one resource type to the engine: it validates wire records
// into resolver form, loads the matching local rows, and applies decisions
// inside the upserter's transaction.
type Adapter interface {
	Resource() marketplace.Resource
	// LocalOnly names fields the resolver must never let remote data
	// overwrite.
	LocalOnly() []string
	// Decode validates one fetched record. A failure marks the record
	// malformed; it is counted as a per-item failure, never a run failure.
	Decode(rec marketplace.Record, accountScope string, fetchedAt time.Time) (RemoteRecord, error)
	LoadLocal(ctx context.Context, accountScope string, remoteIDs []string) (map[string]LocalView, error)
	Apply(tx *gorm.DB, runID, accountScope string, remote RemoteRecord, decision Decision) error
}

// Field extraction helpers shared by adapters. Remote JSON numbers decode as
// float64; adapters normalize both sides to the same representation so field
// comparison is meaningful.

func requireString(body map[string]any, name string) (string, error) {
	val, ok := body[name].(string)
	if !ok || val == "" {
		return "", fmt.Errorf("missing required field %q", name)
	}
	return val, nil
}

func optionalString(body map[string]any, name string) FieldValue {
	if val, ok := body[name].(string); ok {
		return Field(val)
	}
	return MissingField()
}

func optionalNumber(body map[string]any, name string) FieldValue {
	if val, ok := body[name].(float64); ok {
		return Field(val)
	}
	return MissingField()
}

func optionalBool(body map[string]any, name string) FieldValue {
	if val, ok := body[name].(bool); ok {
		return Field(val)
	}
	return MissingField()
}

// requireMoney accepts a decimal string or a JSON number and normalizes it
// through decimal so "10.00" and 10 compare equal.
func requireMoney(body map[string]any, name string) (string, error) {
	switch val := body[name].(type) {
	case string:
		parsed, err := decimal.NewFromString(val)
		if err != nil {
			return "", fmt.Errorf("field %q is not a valid amount: %w", name, err)
		}
		return parsed.String(), nil
	case float64:
		return decimal.NewFromFloat(val).String(), nil
	default:
		return "", fmt.Errorf("missing required field %q", name)
	}
}

func mergedString(dec Decision, name string) (string, bool) {
	val, ok := dec.Merged[name]
	if !ok || !val.Present {
		return "", false
	}
	str, ok := val.Value.(string)
	return str, ok
}

func mergedInt(dec Decision, name string) (int, bool) {
	val, ok := dec.Merged[name]
	if !ok || !val.Present {
		return 0, false
	}
	num, ok := val.Value.(float64)
	return int(num), ok
}

func mergedBool(dec Decision, name string) (bool, bool) {
	val, ok := dec.Merged[name]
	if !ok || !val.Present {
		return false, false
	}
	b, ok := val.Value.(bool)
	return b, ok
}

func mergedMoney(dec Decision, name string) (decimal.Decimal, bool) {
	str, ok := mergedString(dec, name)
	if !ok {
		return decimal.Decimal{}, false
	}
	parsed, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return parsed, true
}

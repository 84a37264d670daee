package syncengine

import (
	"reflect"
	"sort"
)

// Resolve decides the merged field values for one (local, remote) pair under
// a strategy. It is a pure function: no storage access, no clock reads, and
// field iteration in sorted key order, so identical inputs always produce an
// identical decision.
func Resolve(local LocalView, remote RemoteRecord, strategy Strategy, localOnly []string) Decision {
	if !local.Exists {
		// Nothing to conflict with: every strategy creates the record from
		// the remote side.
		merged, source := make(map[string]FieldValue), make(map[string]string)
		for _, name := range sortedKeys(remote.Fields, nil) {
			merged[name] = remote.Fields[name]
			source[name] = SourceRemote
		}
		return Decision{Action: ActionCreate, Merged: merged, Source: source}
	}

	localOnlySet := make(map[string]bool, len(localOnly))
	for _, name := range localOnly {
		localOnlySet[name] = true
	}

	merged := make(map[string]FieldValue)
	source := make(map[string]string)
	changed := false
	for _, name := range sortedKeys(remote.Fields, local.Fields) {
		localVal := local.Fields[name]
		remoteVal := remote.Fields[name]
		winner, from := pickField(name, localVal, remoteVal, local, remote, strategy, localOnlySet)
		merged[name] = winner
		source[name] = from
		if from == SourceRemote && !equalField(localVal, winner) {
			changed = true
		}
	}

	if !changed {
		return Decision{Action: ActionUnchanged, Merged: merged, Source: source}
	}
	if strategy == StrategyManual {
		return Decision{Action: ActionManual, Merged: merged, Source: source}
	}
	return Decision{Action: ActionUpdate, Merged: merged, Source: source}
}

func pickField(name string, localVal, remoteVal FieldValue, local LocalView, remote RemoteRecord, strategy Strategy, localOnly map[string]bool) (FieldValue, string) {
	if localOnly[name] {
		return localVal, SourceLocal
	}
	// A field the remote payload does not carry cannot overwrite anything.
	if !remoteVal.Present {
		return localVal, SourceLocal
	}
	switch strategy {
	case StrategyLocalPriority:
		if localVal.Present {
			return localVal, SourceLocal
		}
		return remoteVal, SourceRemote
	case StrategyNewestWins:
		if remote.UpdatedAt == nil {
			// No reliable remote timestamp: remote wins by convention.
			return remoteVal, SourceRemote
		}
		if local.UpdatedAt.After(*remote.UpdatedAt) {
			return localVal, SourceLocal
		}
		return remoteVal, SourceRemote
	default:
		// RemotePriority and Manual both merge remote-forward; Manual only
		// differs in the action taken on divergence.
		return remoteVal, SourceRemote
	}
}

func equalField(a, b FieldValue) bool {
	if a.Present != b.Present {
		return false
	}
	if !a.Present {
		return true
	}
	return reflect.DeepEqual(a.Value, b.Value)
}

func sortedKeys(a, b map[string]FieldValue) []string {
	seen := make(map[string]bool, len(a)+len(b))
	keys := make([]string, 0, len(a)+len(b))
	for name := range a {
		if !seen[name] {
			seen[name] = true
			keys = append(keys, name)
		}
	}
	for name := range b {
		if !seen[name] {
			seen[name] = true
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys
}

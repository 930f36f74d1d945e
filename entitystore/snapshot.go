package entitystore

// MergeFields merges changes in order into a fresh Fields. Later changes win on key collisions.
func MergeFields(changes ...Fields) Fields {
	merged := make(Fields)

	for _, change := range changes {
		for key, value := range change {
			merged[key] = value
		}
	}

	return merged
}

// Fold merges the payloads of events, which must be ordered oldest-first, into the materialized state.
//
// A Snapshot payload is complete, so folding [Snapshot(S), d1, d2] yields the same state as folding
// the full history that produced S followed by d1 and d2.
func Fold(events Events) Fields {
	state := make(Fields)

	for _, event := range events {
		for key, value := range event.Payload {
			state[key] = value
		}
	}

	return state
}

// NeedsSnapshot decides whether the update about to be appended must be followed by a Snapshot.
//
// window holds the events fetched before the update, oldest-first, limited to interval.
// A full window whose oldest event is a Snapshot is about to slide past its anchor.
// A window of interval-1 events without any Snapshot is the complete history of a young entity
// that reaches interval events with this update and needs its first anchor.
// For a fresh entity this fires on update interval, 2*interval, 3*interval, and so on.
func NeedsSnapshot(window Events, interval int) bool {
	switch len(window) {
	case interval:
		return window[0].Type == EventTypeSnapshot

	case interval - 1:
		for _, event := range window {
			if event.Type == EventTypeSnapshot {
				return false
			}
		}

		return true

	default:
		return false
	}
}

// BuildSnapshotPayload folds window (oldest-first) and overlays change. The result is complete.
func BuildSnapshotPayload(window Events, change Fields) Fields {
	snapshot := Fold(window)

	for key, value := range change {
		snapshot[key] = value
	}

	return snapshot
}

package entitystore_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	. "github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

var propertyFieldNames = []string{"name", "age", "city", "email"}

// simulatedLog applies updates the way Store.UpdateEntity does, on an in-memory log of one entity.
type simulatedLog struct {
	interval int
	events   Events
}

func (l *simulatedLog) window() Events {
	if len(l.events) <= l.interval {
		return l.events
	}

	return l.events[len(l.events)-l.interval:]
}

func (l *simulatedLog) apply(change Fields) {
	window := l.window()
	l.events = append(l.events, Event{ID: EventID(len(l.events) + 1), Type: EventTypeUpdate, Payload: change})

	if NeedsSnapshot(window, l.interval) {
		l.events = append(l.events, Event{
			ID:      EventID(len(l.events) + 1),
			Type:    EventTypeSnapshot,
			Payload: BuildSnapshotPayload(window, change),
		})
	}
}

func changesFrom(keys []int, values []string) []Fields {
	count := min(len(keys), len(values))
	changes := make([]Fields, 0, count)

	for i := 0; i < count; i++ {
		changes = append(changes, Fields{propertyFieldNames[keys[i]]: values[i]})
	}

	return changes
}

func TestProperty_WindowedFold_Equals_FullHistory(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("folding the last K events equals merging every update so far", prop.ForAll(
		func(keys []int, values []string, interval int) bool {
			log := &simulatedLog{interval: interval}
			applied := make([]Fields, 0)

			for _, change := range changesFrom(keys, values) {
				log.apply(change)
				applied = append(applied, change)

				if !Fold(log.window()).Equal(MergeFields(applied...)) {
					return false
				}
			}

			return true
		},
		gen.SliceOf(gen.IntRange(0, len(propertyFieldNames)-1)),
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(2, 12),
	))

	properties.Property("every snapshot equals the fold of the complete history before it", prop.ForAll(
		func(keys []int, values []string, interval int) bool {
			log := &simulatedLog{interval: interval}
			for _, change := range changesFrom(keys, values) {
				log.apply(change)
			}

			for i, event := range log.events {
				if event.Type == EventTypeSnapshot && !event.Payload.Equal(Fold(log.events[:i])) {
					return false
				}
			}

			return true
		},
		gen.SliceOf(gen.IntRange(0, len(propertyFieldNames)-1)),
		gen.SliceOf(gen.AlphaString()),
		gen.IntRange(2, 12),
	))

	properties.Property("snapshots follow update K, 2K, 3K and are never adjacent", prop.ForAll(
		func(updateCount int, interval int) bool {
			log := &simulatedLog{interval: interval}
			for i := 0; i < updateCount; i++ {
				log.apply(Fields{"n": "x"})
			}

			snapshots := 0
			updatesSeen := 0

			for i, event := range log.events {
				if event.Type == EventTypeUpdate {
					updatesSeen++
					continue
				}

				snapshots++

				if updatesSeen%interval != 0 || log.events[i-1].Type != EventTypeUpdate {
					return false
				}
			}

			return snapshots == updateCount/interval
		},
		gen.IntRange(0, 80),
		gen.IntRange(2, 12),
	))

	properties.Property("fold is idempotent", prop.ForAll(
		func(keys []int, values []string) bool {
			events := make(Events, 0)
			for i, change := range changesFrom(keys, values) {
				events = append(events, Event{ID: EventID(i + 1), Type: EventTypeUpdate, Payload: change})
			}

			return Fold(events).Equal(Fold(events))
		},
		gen.SliceOf(gen.IntRange(0, len(propertyFieldNames)-1)),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

//go:build property

package deps

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestTrackerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(4242)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	pathGen := gen.SliceOf(gen.IntRange(0, 30).Map(func(i int) string {
		return fmt.Sprintf("/site/src/file%d.hbs", i)
	}))

	// Property: the set after pass N+1 is a superset of the set after pass N
	properties.Property("tracker grows monotonically across passes", prop.ForAll(
		func(passes [][]string) bool {
			tracker := NewTracker()
			var previous []string
			for _, pass := range passes {
				tracker.Record(pass...)
				for _, p := range previous {
					if !tracker.Contains(p) {
						return false
					}
				}
				if tracker.Len() < len(previous) {
					return false
				}
				previous = tracker.All()
			}
			return true
		},
		gen.SliceOf(pathGen),
	))

	// Property: recording the same paths twice does not change the set
	properties.Property("record is idempotent", prop.ForAll(
		func(paths []string) bool {
			tracker := NewTracker()
			tracker.Record(paths...)
			before := tracker.Len()
			tracker.Record(paths...)
			return tracker.Len() == before
		},
		pathGen,
	))

	// Property: a modified tracked path always triggers a recompile
	properties.Property("modified tracked path needs recompile", prop.ForAll(
		func(paths []string, pick int) bool {
			if len(paths) == 0 {
				return true
			}
			tracker := NewTracker()
			tracker.Record(paths...)
			return NeedsRecompile(NewFileSet(paths[pick%len(paths)]), tracker)
		},
		pathGen,
		gen.IntRange(0, 1000),
	))

	// Property: modifications outside the tracked set never trigger work
	properties.Property("untracked modifications are ignored", prop.ForAll(
		func(paths []string) bool {
			tracker := NewTracker()
			tracker.Record(paths...)
			return !NeedsRecompile(NewFileSet("/elsewhere/untracked.hbs"), tracker)
		},
		pathGen,
	))

	properties.TestingRun(t)
}

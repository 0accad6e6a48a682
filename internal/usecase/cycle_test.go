package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/strata/internal/domain"
)

func TestCycle(t *testing.T) {
	Convey("Given a cycle with a 02:00 trigger polled every 60s", t, func() {
		base, err := os.MkdirTemp("", "cycle_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(base)

		src := domain.Source{ID: "docs", Origin: filepath.Join(base, "docs"), Destination: filepath.Join(base, "out"), BaseName: "docs"}
		So(writeTree(src.Origin, map[string]time.Time{"a.txt": time.Unix(1760000000, 0)}), ShouldBeNil)

		markers := newMemMarkers()
		exec := newFakeExecutor()
		logger := &recordingLogger{}
		recorder := &countingRecorder{}
		clock := &fixedClock{}

		dispatcher := NewDispatcher([]domain.Source{src}, markers, exec, exec.results, logger, WithClock(clock.now))
		cycle := NewCycle(NewTrigger(domain.TimeOfDay{Hour: 2}), dispatcher, logger, recorder)

		ctx := context.Background()
		midnight := time.Date(2026, 10, 14, 0, 0, 0, 0, time.Local)

		Convey("It fires exactly once across a day of polls", func() {
			for tick := time.Duration(0); tick < 24*time.Hour; tick += time.Minute {
				now := midnight.Add(tick)
				clock.at = now
				So(cycle.Tick(ctx, now), ShouldBeNil)
			}

			jobs := exec.submitted()
			So(len(jobs), ShouldEqual, 1)
			So(recorder.cycles, ShouldEqual, 1)
			So(jobs[0].ResolvedAt.Equal(midnight.Add(2*time.Hour-resolutionSlack)), ShouldBeTrue)
			So(jobs[0].Type, ShouldEqual, domain.Incremental)
		})

		Convey("A fatal dispatch error is returned from Tick", func() {
			markers.getErr = errors.New("marker volume unmounted")
			err := cycle.Tick(ctx, midnight.Add(2*time.Hour))
			So(domain.IsFatal(err), ShouldBeTrue)
		})

		Convey("RunOnce dispatches both types and waits for completion", func() {
			exec.autoComplete = true
			clock.at = midnight.Add(9 * time.Hour)

			So(cycle.RunOnce(ctx, clock.at), ShouldBeNil)
			So(len(exec.submitted()), ShouldEqual, 2)

			full, ok := markers.get("docs", domain.Full)
			So(ok, ShouldBeTrue)
			So(full.Equal(clock.at.Add(-resolutionSlack)), ShouldBeTrue)
			_, ok = markers.get("docs", domain.Incremental)
			So(ok, ShouldBeTrue)
		})

		Convey("RunOnce surfaces a fatal marker write", func() {
			exec.autoComplete = true
			markers.setErr = errors.New("no space left on device")

			err := cycle.RunOnce(ctx, midnight.Add(9*time.Hour))
			So(domain.IsFatal(err), ShouldBeTrue)
		})
	})
}

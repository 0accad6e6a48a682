package domain

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBackupType(t *testing.T) {
	Convey("Given the backup type variant", t, func() {
		Convey("It should render and parse its names", func() {
			So(Full.String(), ShouldEqual, "full")
			So(Incremental.String(), ShouldEqual, "incremental")

			typ, err := ParseBackupType(" Incremental ")
			So(err, ShouldBeNil)
			So(typ, ShouldEqual, Incremental)

			_, err = ParseBackupType("differential")
			So(err, ShouldNotBeNil)
		})

		Convey("It should name archives with the resolution instant", func() {
			job := Job{
				Source:     Source{ID: "docs", BaseName: "docs"},
				Type:       Full,
				ResolvedAt: time.Date(2026, 3, 7, 2, 5, 59, 0, time.Local),
			}
			So(job.ArchiveName(), ShouldEqual, "COM_docs_07-03-2026_02-05")

			job.Type = Incremental
			So(job.ArchiveName(), ShouldEqual, "INC_docs_07-03-2026_02-05")
		})
	})
}

func TestMarker(t *testing.T) {
	Convey("Given a marker", t, func() {
		at := time.Unix(1700000000, 500)

		Convey("An absent marker admits any instant", func() {
			So(Marker{}.Admits(time.Unix(0, 0)), ShouldBeTrue)
		})

		Convey("A present marker admits only strictly newer instants", func() {
			m := MarkerAt(at)
			So(m.Admits(at.Add(time.Nanosecond)), ShouldBeTrue)
			So(m.Admits(at), ShouldBeFalse)
			So(m.Admits(at.Add(-time.Nanosecond)), ShouldBeFalse)
		})

		Convey("Latest picks the more recent present marker", func() {
			older := MarkerAt(at)
			newer := MarkerAt(at.Add(time.Second))
			So(older.Latest(newer), ShouldResemble, newer)
			So(newer.Latest(older), ShouldResemble, newer)
			So(Marker{}.Latest(older), ShouldResemble, older)
			So(older.Latest(Marker{}), ShouldResemble, older)
			So(Marker{}.Latest(Marker{}).Present, ShouldBeFalse)
		})
	})
}

func TestTimeOfDay(t *testing.T) {
	Convey("Given a trigger time of day", t, func() {
		tod, err := ParseTimeOfDay("02:00")
		So(err, ShouldBeNil)
		So(tod, ShouldResemble, TimeOfDay{Hour: 2})

		Convey("It should be reached at and after the wall clock time", func() {
			day := time.Date(2026, 10, 14, 0, 0, 0, 0, time.Local)
			So(tod.Reached(day.Add(time.Hour+59*time.Minute+59*time.Second)), ShouldBeFalse)
			So(tod.Reached(day.Add(2*time.Hour)), ShouldBeTrue)
			So(tod.Reached(day.Add(23*time.Hour)), ShouldBeTrue)
		})

		Convey("It should accept seconds and reject garbage", func() {
			withSeconds, err := ParseTimeOfDay("23:59:30")
			So(err, ShouldBeNil)
			So(withSeconds.String(), ShouldEqual, "23:59:30")

			_, err = ParseTimeOfDay("25:00")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestErrors(t *testing.T) {
	Convey("Given wrapped taxonomy errors", t, func() {
		Convey("Fatal errors should be detectable through wrapping", func() {
			err := &FatalError{Op: "set marker", Err: errors.New("disk gone")}
			So(IsFatal(err), ShouldBeTrue)
			So(IsFatal(errors.New("plain")), ShouldBeFalse)
		})

		Convey("Warnings should unwrap to their cause", func() {
			w := &ConfigWarning{SourceID: "docs", Err: ErrAmbiguousOverride}
			So(errors.Is(w, ErrAmbiguousOverride), ShouldBeTrue)
			So(w.Error(), ShouldContainSubstring, "docs")
		})
	})
}

package marker

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInstantCodec(t *testing.T) {
	Convey("Given the marker instant codec", t, func() {
		Convey("It should round-trip nanosecond precision exactly", func() {
			at := time.Unix(1760400000, 123456789)
			encoded := EncodeInstant(at)
			So(encoded, ShouldEqual, "1760400000.123456789")

			decoded, err := DecodeInstant(encoded)
			So(err, ShouldBeNil)
			So(decoded.Equal(at), ShouldBeTrue)
		})

		Convey("It should accept short fractions and bare seconds", func() {
			decoded, err := DecodeInstant("1700000000.25\n")
			So(err, ShouldBeNil)
			So(decoded.Equal(time.Unix(1700000000, 250000000)), ShouldBeTrue)

			decoded, err = DecodeInstant("1700000000")
			So(err, ShouldBeNil)
			So(decoded.Equal(time.Unix(1700000000, 0)), ShouldBeTrue)
		})

		Convey("It should reject malformed values", func() {
			for _, bad := range []string{"", "abc", "1700000000.", "1.1234567890", "1.2e3", "14-10-2026_02-00"} {
				_, err := DecodeInstant(bad)
				So(err, ShouldNotBeNil)
			}
		})
	})
}

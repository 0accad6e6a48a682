package storage

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestS3ObjectKey(t *testing.T) {
	Convey("Given S3 storages with and without a prefix", t, func() {
		Convey("The prefix is joined with a forward slash", func() {
			s := &S3Storage{prefix: "backups/strata"}
			So(s.objectKey("COM_docs.zip"), ShouldEqual, "backups/strata/COM_docs.zip")
		})

		Convey("An empty prefix yields the bare name", func() {
			s := &S3Storage{}
			So(s.objectKey("COM_docs.zip"), ShouldEqual, "COM_docs.zip")
		})
	})
}

package redisclient

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNew(t *testing.T) {
	Convey("Given a reachable redis", t, func() {
		mr := miniredis.RunT(t)
		client, err := New(context.Background(), Options{Addr: mr.Addr()})
		So(err, ShouldBeNil)
		So(client.Close(), ShouldBeNil)
	})

	Convey("Given an unreachable redis", t, func() {
		_, err := New(context.Background(), Options{Addr: "127.0.0.1:1"})
		So(err, ShouldNotBeNil)
	})
}

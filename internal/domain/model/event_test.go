package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/okian/gameproof/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseEventKind(t *testing.T) {
	convey.Convey("Given event labels", t, func() {
		convey.So(model.ParseEventKind("Key down"), convey.ShouldEqual, model.KeyDown)
		convey.So(model.ParseEventKind("  key DOWN "), convey.ShouldEqual, model.KeyDown)
		convey.So(model.ParseEventKind("Key up"), convey.ShouldEqual, model.KeyUp)
		convey.So(model.ParseEventKind("press"), convey.ShouldEqual, model.Unknown)
		convey.So(model.ParseEventKind(""), convey.ShouldEqual, model.Unknown)
		convey.So(model.KeyDown.String(), convey.ShouldEqual, "Key down")
	})
}

func TestParseIdentity(t *testing.T) {
	convey.Convey("Given identity strings", t, func() {
		convey.Convey("When the value is a non-negative integer", func() {
			id, err := model.ParseIdentity(" 42 ")
			convey.So(err, convey.ShouldBeNil)
			convey.So(id, convey.ShouldEqual, model.Identity(42))
			convey.So(id.String(), convey.ShouldEqual, "42")

			id, err = model.ParseIdentity("0")
			convey.So(err, convey.ShouldBeNil)
			convey.So(id, convey.ShouldEqual, model.Identity(0))
		})

		convey.Convey("When the value is not a non-negative integer", func() {
			for _, s := range []string{"", "-1", "1.5", "abc", "+3", "99999999999999999999999"} {
				_, err := model.ParseIdentity(s)
				convey.So(errors.Is(err, model.ErrInvalidIdentity), convey.ShouldBeTrue)
			}
		})
	})
}

func TestIdentityFromJSON(t *testing.T) {
	convey.Convey("Given raw JSON identities", t, func() {
		id, err := model.IdentityFromJSON(json.RawMessage(`7`))
		convey.So(err, convey.ShouldBeNil)
		convey.So(id, convey.ShouldEqual, model.Identity(7))

		id, err = model.IdentityFromJSON(json.RawMessage(`"8"`))
		convey.So(err, convey.ShouldBeNil)
		convey.So(id, convey.ShouldEqual, model.Identity(8))

		for _, raw := range []string{``, `null`, `-3`, `2.5`, `"x"`, `true`, `{}`} {
			_, err := model.IdentityFromJSON(json.RawMessage(raw))
			convey.So(errors.Is(err, model.ErrInvalidIdentity), convey.ShouldBeTrue)
		}
	})
}

func TestSubmission(t *testing.T) {
	convey.Convey("Given a submission", t, func() {
		s := model.Submission{Identity: 1, Video: []byte("v")}
		convey.So(s.Complete(), convey.ShouldBeFalse)
		s.Input = []byte{}
		convey.So(s.Complete(), convey.ShouldBeTrue)

		k, err := model.ParseBlobKind("video")
		convey.So(err, convey.ShouldBeNil)
		convey.So(k, convey.ShouldEqual, model.BlobVideo)
		_, err = model.ParseBlobKind("audio")
		convey.So(errors.Is(err, model.ErrUnknownBlobKind), convey.ShouldBeTrue)
	})
}

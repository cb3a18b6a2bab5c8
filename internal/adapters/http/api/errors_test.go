package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/sigte/riskengine/internal/adapters/repository"
	service "github.com/sigte/riskengine/internal/app"
	. "github.com/smartystreets/goconvey/convey"
)

func TestErrorKinds(t *testing.T) {
	Convey("Given wrapped errors", t, func() {
		Convey("When the cause is a sentinel", func() {
			cases := []struct {
				err    error
				status int
			}{
				{fmt.Errorf("x: %w", repository.ErrNotFound), http.StatusNotFound},
				{fmt.Errorf("x: %w", service.ErrInvalidArgument), http.StatusBadRequest},
				{fmt.Errorf("x: %w", ErrBadRequest), http.StatusBadRequest},
				{fmt.Errorf("x: %w", service.ErrDataUnavailable), http.StatusServiceUnavailable},
				{errors.New("x"), http.StatusInternalServerError},
			}

			Convey("Then Wrap should map it to a status", func() {
				for _, c := range cases {
					var e *Error
					So(errors.As(Wrap("op", c.err), &e), ShouldBeTrue)
					So(e.Kind.status(), ShouldEqual, c.status)
					So(errors.Is(e, c.err), ShouldBeTrue)
				}
			})
		})

		Convey("When wrapping an already classified error", func() {
			inner := NewKind("parse", KindBadRequest, "bad date")
			outer := Wrap("trends", inner)

			Convey("Then the inner kind should win", func() {
				var e *Error
				So(errors.As(outer, &e), ShouldBeTrue)
				So(e.Kind, ShouldEqual, KindBadRequest)
				So(outer.Error(), ShouldEqual, "trends: parse: bad date")
			})
		})

		Convey("When wrapping nil", func() {
			So(Wrap("op", nil), ShouldBeNil)
			So(WrapKind("op", KindNotFound, nil), ShouldBeNil)
		})
	})
}

func TestWorkflowRequestNormalize(t *testing.T) {
	Convey("Given a workflow request", t, func() {
		Convey("When ids carry whitespace", func() {
			req := workflowRequest{StudentIDs: []string{" a", "b "}}

			Convey("Then they should be trimmed", func() {
				So(req.normalize(), ShouldBeNil)
				So(req.StudentIDs, ShouldResemble, []string{"a", "b"})
			})
		})

		Convey("When an id is empty", func() {
			req := workflowRequest{StudentIDs: []string{"a", ""}}
			err := req.normalize()

			Convey("Then it should fail as a bad request", func() {
				So(errors.Is(err, ErrBadRequest), ShouldBeTrue)
			})
		})
	})
}

func TestGetErrorType(t *testing.T) {
	Convey("Given status codes", t, func() {
		So(getErrorType(http.StatusServiceUnavailable), ShouldEqual, "unavailable")
		So(getErrorType(http.StatusInternalServerError), ShouldEqual, "server_error")
		So(getErrorType(http.StatusNotFound), ShouldEqual, "not_found")
		So(getErrorType(http.StatusBadRequest), ShouldEqual, "client_error")
		So(getErrorType(http.StatusOK), ShouldEqual, "unknown")
	})
}

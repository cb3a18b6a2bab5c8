package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	nats "github.com/nats-io/nats.go"
	. "github.com/smartystreets/goconvey/convey"
	"go.opentelemetry.io/otel/trace"

	"github.com/sigte/riskengine/internal/domain/model"
)

type captureConn struct {
	msgs []*nats.Msg
	err  error
}

func (c *captureConn) PublishMsg(m *nats.Msg) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, m)
	return nil
}

func sampleRecord() model.InterventionRecord {
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return model.InterventionRecord{
		ID:                 "iv-1",
		StudentID:          "s-1",
		StudentName:        "Ana",
		Type:               model.InterventionFamilyMeeting,
		Status:             model.InterventionPending,
		RiskLevel:          "HIGH",
		RiskScore:          66,
		AssignedTo:         "pedagogical-coordination",
		CreatedAt:          at,
		ExpectedCompletion: at.AddDate(0, 0, 7),
	}
}

func TestNATSPublisher(t *testing.T) {
	Convey("Given a publisher over a capturing connection", t, func() {
		conn := &captureConn{}
		p := NewNATSPublisher(conn, WithSubject("test.interventions"), WithConnName("test"))

		Convey("When publishing inside a sampled trace", func() {
			tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
			sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
			ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
				TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled,
			}))
			err := p.PublishInterventionCreated(ctx, sampleRecord())

			Convey("Then one message should carry the payload and trace header", func() {
				So(err, ShouldBeNil)
				So(len(conn.msgs), ShouldEqual, 1)
				msg := conn.msgs[0]
				So(msg.Subject, ShouldEqual, "test.interventions")
				So(msg.Header.Get("traceparent"), ShouldContainSubstring, "4bf92f3577b34da6a3ce929d0e0e4736")

				var ev InterventionEvent
				So(json.Unmarshal(msg.Data, &ev), ShouldBeNil)
				So(ev.Type, ShouldEqual, EventInterventionCreated)
				So(ev.InterventionID, ShouldEqual, "iv-1")
				So(ev.StudentID, ShouldEqual, "s-1")
				So(ev.RiskLevel, ShouldEqual, "HIGH")
			})
		})

		Convey("When publishing without a trace", func() {
			So(p.PublishInterventionCreated(context.Background(), sampleRecord()), ShouldBeNil)

			Convey("Then no trace header should be set", func() {
				So(conn.msgs[0].Header.Get("traceparent"), ShouldEqual, "")
			})
		})

		Convey("When the connection fails", func() {
			conn.err = errors.New("connection closed")
			err := p.PublishInterventionCreated(context.Background(), sampleRecord())

			Convey("Then the error should be wrapped with the subject", func() {
				So(errors.Is(err, conn.err), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "test.interventions")
			})
		})

		Convey("Then closing a borrowed connection should be a no-op", func() {
			So(p.Close(), ShouldBeNil)
			So(p.Subject(), ShouldEqual, "test.interventions")
		})
	})

	Convey("Given no server at the address", t, func() {
		_, err := Connect("nats://127.0.0.1:1")

		Convey("Then Connect should fail", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestNopPublisher(t *testing.T) {
	Convey("Given the no-op publisher", t, func() {
		var p Publisher = NopPublisher{}

		Convey("Then it should accept everything", func() {
			So(p.PublishInterventionCreated(context.Background(), sampleRecord()), ShouldBeNil)
			So(p.Close(), ShouldBeNil)
		})
	})
}

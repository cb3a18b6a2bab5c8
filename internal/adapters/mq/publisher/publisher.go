// Package publisher announces created interventions to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/propagation"

	"github.com/sigte/riskengine/internal/domain/model"
)

const (
	// EventInterventionCreated is the type carried by every published event.
	EventInterventionCreated = "intervention.created"

	defaultSubject  = "sigte.interventions.created"
	defaultConnName = "sigte-riskengine"
)

var propagator = propagation.TraceContext{} //nolint:gochecknoglobals // stateless propagator

// Publisher emits intervention events.
type Publisher interface {
	PublishInterventionCreated(ctx context.Context, rec model.InterventionRecord) error
	Close() error
}

// InterventionEvent is the JSON payload of an intervention.created message.
type InterventionEvent struct {
	Type               string    `json:"type"`
	InterventionID     string    `json:"intervention_id"`
	StudentID          string    `json:"student_id"`
	InterventionType   string    `json:"intervention_type"`
	RiskLevel          string    `json:"risk_level"`
	RiskScore          float64   `json:"risk_score"`
	AssignedTo         string    `json:"assigned_to"`
	CreatedAt          time.Time `json:"created_at"`
	ExpectedCompletion time.Time `json:"expected_completion"`
}

// NewInterventionEvent builds the payload for rec.
func NewInterventionEvent(rec model.InterventionRecord) InterventionEvent {
	return InterventionEvent{
		Type:               EventInterventionCreated,
		InterventionID:     rec.ID,
		StudentID:          rec.StudentID,
		InterventionType:   rec.Type,
		RiskLevel:          rec.RiskLevel,
		RiskScore:          rec.RiskScore,
		AssignedTo:         rec.AssignedTo,
		CreatedAt:          rec.CreatedAt,
		ExpectedCompletion: rec.ExpectedCompletion,
	}
}

// MsgPublisher is the part of *nats.Conn the publisher needs.
type MsgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes events on a NATS subject with W3C trace headers.
type NATSPublisher struct {
	conn     MsgPublisher
	nc       *nats.Conn
	subject  string
	connName string
}

// Connect dials url and returns a publisher owning the connection.
func Connect(url string, opts ...Option) (*NATSPublisher, error) {
	p := newNATSPublisher(nil, opts...)
	nc, err := nats.Connect(url, nats.Name(p.connName), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	p.conn = nc
	p.nc = nc
	return p, nil
}

// NewNATSPublisher wraps an existing connection. Close does not close it.
func NewNATSPublisher(conn MsgPublisher, opts ...Option) *NATSPublisher {
	return newNATSPublisher(conn, opts...)
}

func newNATSPublisher(conn MsgPublisher, opts ...Option) *NATSPublisher {
	p := &NATSPublisher{conn: conn, subject: defaultSubject, connName: defaultConnName}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subject returns the subject events are published on.
func (p *NATSPublisher) Subject() string { return p.subject }

// PublishInterventionCreated publishes rec, injecting the trace context of ctx.
func (p *NATSPublisher) PublishInterventionCreated(ctx context.Context, rec model.InterventionRecord) error {
	data, err := json.Marshal(NewInterventionEvent(rec))
	if err != nil {
		return fmt.Errorf("encode intervention event: %w", err)
	}
	hdr := nats.Header{}
	propagator.Inject(ctx, propagation.HeaderCarrier(hdr))
	if err := p.conn.PublishMsg(&nats.Msg{Subject: p.subject, Data: data, Header: hdr}); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	return nil
}

// Close drains the owned connection, if any.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}

// NopPublisher discards events. It is used when no broker is configured.
type NopPublisher struct{}

// PublishInterventionCreated does nothing.
func (NopPublisher) PublishInterventionCreated(context.Context, model.InterventionRecord) error {
	return nil
}

// Close does nothing.
func (NopPublisher) Close() error { return nil }

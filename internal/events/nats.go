package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"docvault/internal/model"
)

const streamName = "document-events"

// NATSPublisher publishes lifecycle events to a NATS JetStream stream.
type NATSPublisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewNATS connects to NATS, initializes JetStream, and ensures the
// document-events stream exists (idempotent).
func NewNATS(url string) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("docvault"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("[NATS] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[NATS] reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	p := &NATSPublisher{nc: nc, js: js}
	if err := p.ensureStream(); err != nil {
		// Not fatal: publishing still works if the stream is managed externally.
		log.Printf("[NATS] warning: failed to ensure stream: %v", err)
	}
	return p, nil
}

func (p *NATSPublisher) ensureStream() error {
	if _, err := p.js.StreamInfo(streamName); err == nil {
		return nil
	}
	_, err := p.js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"documents.*"},
		Storage:  nats.FileStorage,
		MaxAge:   30 * 24 * time.Hour,
	})
	return err
}

func (p *NATSPublisher) publish(ctx context.Context, subject string, ev DocumentEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	// Message ID for idempotent consumption.
	_, err = p.js.Publish(subject, data, nats.MsgId(uuid.NewString()), nats.Context(ctx))
	return err
}

func (p *NATSPublisher) DocumentUploaded(ctx context.Context, doc *model.Document) error {
	return p.publish(ctx, SubjectUploaded, DocumentEvent{
		DocumentID:       doc.ID,
		OwnerID:          doc.OwnerID,
		Title:            doc.Title,
		OriginalFileName: doc.OriginalFileName,
		MimeType:         doc.MimeType,
		SizeBytes:        doc.SizeBytes,
		StoragePath:      doc.StoragePath,
		OccurredAt:       time.Now().UTC(),
	})
}

func (p *NATSPublisher) DocumentDeleted(ctx context.Context, ownerID, documentID string) error {
	return p.publish(ctx, SubjectDeleted, DocumentEvent{
		DocumentID: documentID,
		OwnerID:    ownerID,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *NATSPublisher) Close() {
	p.nc.Close()
}

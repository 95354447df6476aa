package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tinygate/tinygate/internal/core/domain"
)

const auditCollection = "auth_events"

// AuditRepository appends to the auth_events collection.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

// InsertEvent persists an audit entry. The reason field is internal only.
func (r *AuditRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	doc := bson.M{
		"_id":       event.ID,
		"type":      string(event.Type),
		"username":  event.Username,
		"timestamp": event.Timestamp.UTC(),
	}
	if event.Peer != "" {
		doc["peer"] = event.Peer
	}
	if event.Reason != "" {
		doc["reason"] = event.Reason
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

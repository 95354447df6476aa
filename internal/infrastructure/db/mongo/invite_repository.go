package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tinygate/tinygate/internal/core/domain"
)

const invitesCollection = "invite_tokens"

// InviteRepository implements ports.InviteTokenRepository. Every state change
// is one filtered single-document write, which MongoDB applies atomically.
type InviteRepository struct {
	coll *mongo.Collection
}

func NewInviteRepository(db *mongo.Database) *InviteRepository {
	return &InviteRepository{coll: db.Collection(invitesCollection)}
}

type mongoInvite struct {
	Value      string    `bson:"value"`
	IssuedBy   string    `bson:"issued_by,omitempty"`
	IssuedAt   time.Time `bson:"issued_at"`
	ExpiresAt  time.Time `bson:"expires_at"`
	Consumed   bool      `bson:"consumed"`
	ConsumedBy string    `bson:"consumed_by,omitempty"`
}

func (d mongoInvite) toDomain() *domain.InviteToken {
	return &domain.InviteToken{
		Value:      d.Value,
		IssuedBy:   d.IssuedBy,
		IssuedAt:   d.IssuedAt.UTC(),
		ExpiresAt:  d.ExpiresAt.UTC(),
		Consumed:   d.Consumed,
		ConsumedBy: d.ConsumedBy,
	}
}

func (r *InviteRepository) Create(ctx context.Context, t *domain.InviteToken) error {
	doc := mongoInvite{
		Value:     t.Value,
		IssuedBy:  t.IssuedBy,
		IssuedAt:  t.IssuedAt.UTC(),
		ExpiresAt: t.ExpiresAt.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert invite token: %w", err)
	}
	return nil
}

func (r *InviteRepository) List(ctx context.Context, issuer string) ([]*domain.InviteToken, error) {
	filter := bson.M{}
	if issuer != "" {
		filter["issued_by"] = issuer
	}
	opts := options.Find().SetSort(bson.D{{Key: "issued_at", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list invite tokens: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoInvite
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode invite tokens: %w", err)
	}

	out := make([]*domain.InviteToken, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toDomain())
	}
	return out, nil
}

func (r *InviteRepository) Find(ctx context.Context, value string) (*domain.InviteToken, error) {
	var doc mongoInvite
	if err := r.coll.FindOne(ctx, bson.M{"value": value}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, fmt.Errorf("find invite token: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *InviteRepository) Consume(ctx context.Context, value, username string, now time.Time) error {
	filter := bson.M{
		"value":      value,
		"consumed":   false,
		"expires_at": bson.M{"$gt": now.UTC()},
	}
	update := bson.M{"$set": bson.M{"consumed": true, "consumed_by": username}}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("consume invite token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *InviteRepository) Release(ctx context.Context, value, username string) error {
	filter := bson.M{
		"value":       value,
		"consumed":    true,
		"consumed_by": username,
	}
	update := bson.M{
		"$set":   bson.M{"consumed": false},
		"$unset": bson.M{"consumed_by": ""},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("release invite token: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

func (r *InviteRepository) Delete(ctx context.Context, value string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"value": value, "consumed": false})
	if err != nil {
		return fmt.Errorf("delete invite token: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrTokenNotFound
	}
	return nil
}

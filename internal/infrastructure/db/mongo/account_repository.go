package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/tinygate/tinygate/internal/core/domain"
)

const accountsCollection = "accounts"

// AccountRepository implements ports.AccountRepository. Username uniqueness
// is enforced by the unique index created in EnsureIndexes.
type AccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(accountsCollection)}
}

type mongoAccount struct {
	ID                 string    `bson:"_id"`
	Username           string    `bson:"username"`
	PasswordHash       string    `bson:"password_hash"`
	SecondFactorSecret string    `bson:"second_factor_secret,omitempty"`
	IsAdmin            bool      `bson:"is_admin"`
	CreatedAt          time.Time `bson:"created_at"`
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	doc := mongoAccount{
		ID:                 a.ID,
		Username:           a.Username,
		PasswordHash:       a.PasswordHash,
		SecondFactorSecret: a.SecondFactorSecret,
		IsAdmin:            a.IsAdmin,
		CreatedAt:          a.CreatedAt.UTC(),
	}

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	var doc mongoAccount
	if err := r.coll.FindOne(ctx, bson.M{"username": username}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}

	return &domain.Account{
		ID:                 doc.ID,
		Username:           doc.Username,
		PasswordHash:       doc.PasswordHash,
		SecondFactorSecret: doc.SecondFactorSecret,
		IsAdmin:            doc.IsAdmin,
		CreatedAt:          doc.CreatedAt.UTC(),
	}, nil
}

func (r *AccountRepository) Delete(ctx context.Context, username string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"username": username})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

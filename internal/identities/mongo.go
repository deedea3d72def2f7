package identities

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agendasync/agendasync/internal/models"
)

// MongoRepository implements Repository on a Mongo collection. The unique
// indexes created by EnsureIndexes guard cross-document races (a write that
// would fork an identity surfaces as a duplicate-key error) and the replace
// filter in Save guards same-document races on the provider binding; both
// are translated to ErrConflict.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	return &MongoRepository{col: col}
}

// EnsureIndexes creates the unique email index and the unique sparse
// providerId index. Safe to call on every startup.
func EnsureIndexes(ctx context.Context, col *mongo.Collection) error {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "providerId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	return err
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.Identity, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoRepository) FindByProviderID(ctx context.Context, providerID string) (*models.Identity, error) {
	return r.findOne(ctx, bson.M{"providerId": providerID})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.M) (*models.Identity, error) {
	var identity models.Identity
	if err := r.col.FindOne(ctx, filter).Decode(&identity); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &identity, nil
}

func (r *MongoRepository) Save(ctx context.Context, identity *models.Identity) (*models.Identity, error) {
	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = now

	if identity.ID == "" {
		identity.ID = uuid.NewString()
		if _, err := r.col.InsertOne(ctx, identity); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrConflict
			}
			return nil, err
		}
		return identity, nil
	}

	// Conditional replace: the stored providerId must be absent or already
	// equal to the incoming one. Two racing logins that both observed an
	// unlinked record cannot overwrite each other's binding; the loser's
	// filter matches nothing and the miss is reported as a conflict.
	filter := bson.M{"_id": identity.ID}
	if identity.ProviderID != "" {
		filter["$or"] = []bson.M{
			{"providerId": identity.ProviderID},
			{"providerId": bson.M{"$exists": false}},
		}
	} else {
		filter["providerId"] = bson.M{"$exists": false}
	}

	res, err := r.col.ReplaceOne(ctx, filter, identity)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	if res.MatchedCount == 0 {
		existing, err := r.findOne(ctx, bson.M{"_id": identity.ID})
		if err != nil {
			return nil, err
		}
		if existing != nil {
			// the record is bound to a different provider subject
			return nil, ErrConflict
		}
		// deleted between lookup and save; reinsert
		if _, err := r.col.InsertOne(ctx, identity); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrConflict
			}
			return nil, err
		}
	}
	return identity, nil
}

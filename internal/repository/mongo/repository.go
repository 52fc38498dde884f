package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mediastream/internal/domain"
)

type Repository struct {
	collection *mongo.Collection
}

type partDoc struct {
	Index           int     `bson:"index"`
	Handle          string  `bson:"handle"`
	DurationSeconds float64 `bson:"durationSeconds,omitempty"`
}

type assetDoc struct {
	ID              string    `bson:"_id"`
	Title           string    `bson:"title"`
	PrimaryHandle   string    `bson:"primaryHandle"`
	Parts           []partDoc `bson:"parts"`
	DurationSeconds float64   `bson:"durationSeconds"`
	SizeBytes       int64     `bson:"sizeBytes"`
	CreatedAt       int64     `bson:"createdAt"`
	UpdatedAt       int64     `bson:"updatedAt"`
}

func NewRepository(client *mongo.Client, dbName, collectionName string) *Repository {
	return &Repository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *Repository) EnsureIndexes(ctx context.Context) error {
	if r == nil || r.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "primaryHandle", Value: 1}}},
		{Keys: bson.D{{Key: "parts.handle", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	}
	_, err := r.collection.Indexes().CreateMany(ctx, models)
	return err
}

func (r *Repository) Create(ctx context.Context, a domain.Asset) error {
	doc := toDoc(a)
	_, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrAlreadyExists
		}
	}
	return err
}

func (r *Repository) Get(ctx context.Context, id domain.AssetID) (domain.Asset, error) {
	var doc assetDoc
	if err := r.collection.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Asset{}, domain.ErrNotFound
		}
		return domain.Asset{}, err
	}
	return fromDoc(doc), nil
}

// GetByHandle finds the asset whose primary or part handle matches.
func (r *Repository) GetByHandle(ctx context.Context, handle domain.Handle) (domain.Asset, error) {
	query := bson.M{"$or": bson.A{
		bson.M{"primaryHandle": string(handle)},
		bson.M{"parts.handle": string(handle)},
	}}
	var doc assetDoc
	if err := r.collection.FindOne(ctx, query).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Asset{}, domain.ErrNotFound
		}
		return domain.Asset{}, err
	}
	return fromDoc(doc), nil
}

func (r *Repository) List(ctx context.Context) ([]domain.Asset, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []assetDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	assets := make([]domain.Asset, 0, len(docs))
	for _, doc := range docs {
		assets = append(assets, fromDoc(doc))
	}
	return assets, nil
}

func (r *Repository) Delete(ctx context.Context, id domain.AssetID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDoc(a domain.Asset) assetDoc {
	parts := make([]partDoc, 0, len(a.Parts))
	for _, p := range a.Parts {
		parts = append(parts, partDoc{
			Index:           p.Index,
			Handle:          string(p.Handle),
			DurationSeconds: p.DurationSeconds,
		})
	}
	return assetDoc{
		ID:              string(a.ID),
		Title:           a.Title,
		PrimaryHandle:   string(a.PrimaryHandle),
		Parts:           parts,
		DurationSeconds: a.TotalDurationSeconds,
		SizeBytes:       a.SizeBytes,
		CreatedAt:       a.CreatedAt.Unix(),
		UpdatedAt:       a.UpdatedAt.Unix(),
	}
}

func fromDoc(doc assetDoc) domain.Asset {
	parts := make([]domain.Part, 0, len(doc.Parts))
	for _, p := range doc.Parts {
		parts = append(parts, domain.Part{
			Index:           p.Index,
			Handle:          domain.Handle(p.Handle),
			DurationSeconds: p.DurationSeconds,
		})
	}
	return domain.Asset{
		ID:                   domain.AssetID(doc.ID),
		Title:                doc.Title,
		PrimaryHandle:        domain.Handle(doc.PrimaryHandle),
		Parts:                parts,
		TotalDurationSeconds: doc.DurationSeconds,
		SizeBytes:            doc.SizeBytes,
		CreatedAt:            timeFromUnix(doc.CreatedAt),
		UpdatedAt:            timeFromUnix(doc.UpdatedAt),
	}
}

func timeFromUnix(value int64) time.Time {
	return time.Unix(value, 0).UTC()
}

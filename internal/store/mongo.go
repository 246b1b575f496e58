package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ConfidentPicks/confident-picks-sub001/internal/apperrors"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/metrics"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/models"
	"github.com/ConfidentPicks/confident-picks-sub001/internal/retry"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoOptions configures a Mongo store
type MongoOptions struct {
	URI      string
	Database string
	// CredentialsFile is a PEM file holding the TLS client certificate and key.
	CredentialsFile string
	Retry           retry.Policy
	Now             func() time.Time
}

// Mongo is a PickStore and Locker backed by MongoDB
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
	retry    retry.Policy
	now      func() time.Time
}

type lockDocument struct {
	ID         string    `bson:"_id"`
	Owner      string    `bson:"owner"`
	ExpiresAt  time.Time `bson:"expires_at"`
	AcquiredAt time.Time `bson:"acquired_at"`
}

// NewMongo connects, verifies the connection and ensures indexes.
func NewMongo(ctx context.Context, opts MongoOptions) (*Mongo, error) {
	uri, err := withClientCertificate(opts.URI, opts.CredentialsFile)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStoreIO, fmt.Errorf("failed to connect to MongoDB: %w", err))
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, apperrors.Wrap(apperrors.ErrStoreIO, fmt.Errorf("failed to ping MongoDB: %w", err))
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	m := &Mongo{
		client:   client,
		database: client.Database(opts.Database),
		retry:    opts.Retry,
		now:      now,
	}
	if err := m.ensureIndexes(connectCtx); err != nil {
		_ = m.Close()
		return nil, err
	}

	log.Info().Str("database", opts.Database).Msg("Connected to document store")
	return m, nil
}

// withClientCertificate adds TLS client certificate options to uri.
func withClientCertificate(uri, certFile string) (string, error) {
	if certFile == "" {
		return uri, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("invalid store URI: %w", err)
	}
	q := u.Query()
	q.Set("tls", "true")
	q.Set("tlsCertificateKeyFile", certFile)
	if q.Get("authMechanism") == "" {
		q.Set("authMechanism", "MONGODB-X509")
		q.Set("authSource", "$external")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	locks := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := m.collection(CollectionLocks).Indexes().CreateOne(ctx, locks); err != nil {
		return apperrors.Wrap(apperrors.ErrStoreIO, fmt.Errorf("failed to create lock TTL index: %w", err))
	}

	for _, name := range []string{CollectionLive, CollectionHistorical} {
		idx := mongo.IndexModel{Keys: bson.D{{Key: "season", Value: 1}, {Key: "week", Value: 1}}}
		if _, err := m.collection(name).Indexes().CreateOne(ctx, idx); err != nil {
			return apperrors.Wrap(apperrors.ErrStoreIO, fmt.Errorf("failed to create index on %s: %w", name, err))
		}
	}
	return nil
}

func (m *Mongo) collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Close disconnects from MongoDB.
func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// Health pings the primary.
func (m *Mongo) Health(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (*models.PublishedPick, error) {
	var pick *models.PublishedPick
	err := m.do(ctx, "get", collection, func(ctx context.Context) error {
		var doc models.PublishedPick
		err := m.collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			pick = nil
			return nil
		}
		if err != nil {
			return err
		}
		pick = &doc
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get pick %s from %s: %w", id, collection, err)
	}
	return pick, nil
}

func (m *Mongo) Put(ctx context.Context, collection string, pick *models.PublishedPick) error {
	err := m.do(ctx, "put", collection, func(ctx context.Context) error {
		_, err := m.collection(collection).ReplaceOne(ctx,
			bson.M{"_id": pick.ID}, pick, options.Replace().SetUpsert(true))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert pick %s into %s: %w", pick.ID, collection, err)
	}
	return nil
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	err := m.do(ctx, "delete", collection, func(ctx context.Context) error {
		_, err := m.collection(collection).DeleteOne(ctx, bson.M{"_id": id})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete pick %s from %s: %w", id, collection, err)
	}
	return nil
}

func (m *Mongo) Find(ctx context.Context, collection string, filter Filter) ([]*models.PublishedPick, error) {
	query := bson.M{}
	if filter.Season != 0 {
		query["season"] = filter.Season
	}
	if filter.Week != 0 {
		query["week"] = filter.Week
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	sortBy := options.Find().SetSort(bson.D{
		{Key: "week", Value: 1},
		{Key: "kickoff", Value: 1},
		{Key: "_id", Value: 1},
	})

	var picks []*models.PublishedPick
	err := m.do(ctx, "find", collection, func(ctx context.Context) error {
		cursor, err := m.collection(collection).Find(ctx, query, sortBy)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		picks = nil
		return cursor.All(ctx, &picks)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find picks in %s: %w", collection, err)
	}
	return picks, nil
}

// Acquire upserts the lock document only when it is expired or already ours.
// A live lease held by another owner makes the upsert collide on _id.
func (m *Mongo) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (time.Time, error) {
	now := m.now().UTC()
	expires := now.Add(ttl)

	filter := bson.M{
		"_id": name,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$lte": now}},
			bson.M{"owner": owner},
		},
	}
	update := bson.M{"$set": bson.M{"owner": owner, "expires_at": expires, "acquired_at": now}}

	_, err := m.collection(CollectionLocks).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err == nil {
		metrics.RecordStoreOperation("acquire", CollectionLocks, "success")
		return expires, nil
	}
	if mongo.IsDuplicateKeyError(err) {
		metrics.RecordStoreOperation("acquire", CollectionLocks, "held")
		var held lockDocument
		if ferr := m.collection(CollectionLocks).FindOne(ctx, bson.M{"_id": name}).Decode(&held); ferr == nil {
			return time.Time{}, apperrors.Wrap(apperrors.ErrLockHeld, lockHeldError(name, held.Owner, held.ExpiresAt))
		}
		return time.Time{}, apperrors.Wrap(apperrors.ErrLockHeld, lockHeldError(name, "", time.Time{}))
	}
	metrics.RecordStoreOperation("acquire", CollectionLocks, "error")
	return time.Time{}, apperrors.Wrap(apperrors.ErrStoreIO, fmt.Errorf("failed to acquire lock %s: %w", name, err))
}

func (m *Mongo) Release(ctx context.Context, name, owner string) error {
	_, err := m.collection(CollectionLocks).DeleteOne(ctx, bson.M{"_id": name, "owner": owner})
	if err != nil {
		metrics.RecordStoreOperation("release", CollectionLocks, "error")
		return apperrors.Wrap(apperrors.ErrStoreIO, fmt.Errorf("failed to release lock %s: %w", name, err))
	}
	metrics.RecordStoreOperation("release", CollectionLocks, "success")
	return nil
}

// do runs a store call under the retry policy. Only network errors and
// timeouts are retried.
func (m *Mongo) do(ctx context.Context, op, collection string, fn func(ctx context.Context) error) error {
	err := m.retry.Do(ctx, "store "+op, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
			return err
		}
		return retry.Permanent(err)
	})
	if err != nil {
		metrics.RecordStoreOperation(op, collection, "error")
		return apperrors.Wrap(apperrors.ErrStoreIO, err)
	}
	metrics.RecordStoreOperation(op, collection, "success")
	return nil
}

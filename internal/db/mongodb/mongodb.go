// Package mongodb provides the MongoDB-backed implementation of the storage
// interface. It keeps the users, url-shortener, and tokens collections and
// enforces the uniqueness invariants (user email, short code) with unique
// indexes so concurrent inserts fail instead of racing.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/patric-chuzhbe/linkshort/internal/db/storage"
	"github.com/patric-chuzhbe/linkshort/internal/models"
)

const (
	usersCollection     = "users"
	shortURLsCollection = "url-shortener"
	tokensCollection    = "tokens"
)

// MongoDB implements storage.Storage over a MongoDB database.
type MongoDB struct {
	client            *mongo.Client
	database          *mongo.Database
	connectionTimeout time.Duration
}

// New connects to MongoDB, verifies the connection, and creates the unique
// indexes the uniqueness invariants rely on.
func New(
	ctx context.Context,
	mongoURL string,
	databaseName string,
	connectionTimeout time.Duration,
) (*MongoDB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	result := &MongoDB{
		client:            client,
		database:          client.Database(databaseName),
		connectionTimeout: connectionTimeout,
	}

	if err := result.ensureIndexes(connectCtx); err != nil {
		return nil, fmt.Errorf("mongodb ensure indexes: %w", err)
	}

	return result, nil
}

func (db *MongoDB) ensureIndexes(ctx context.Context) error {
	_, err := db.database.Collection(usersCollection).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	)
	if err != nil {
		return err
	}

	_, err = db.database.Collection(shortURLsCollection).Indexes().CreateOne(
		ctx,
		mongo.IndexModel{
			Keys:    bson.D{{Key: "short_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	)

	return err
}

// CreateUser inserts a new user document. A duplicate email is reported as
// storage.ErrUniqueViolation.
func (db *MongoDB) CreateUser(ctx context.Context, usr *models.User) error {
	_, err := db.database.Collection(usersCollection).InsertOne(ctx, usr)
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrUniqueViolation
	}

	return err
}

// FindUserByEmail looks a user up by email.
func (db *MongoDB) FindUserByEmail(ctx context.Context, email string) (*models.User, bool, error) {
	var usr models.User
	err := db.database.Collection(usersCollection).
		FindOne(ctx, bson.M{"email": email}).
		Decode(&usr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &usr, true, nil
}

// FindUserByID looks a user up by its ID.
func (db *MongoDB) FindUserByID(ctx context.Context, userID string) (*models.User, bool, error) {
	var usr models.User
	err := db.database.Collection(usersCollection).
		FindOne(ctx, bson.M{"_id": userID}).
		Decode(&usr)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &usr, true, nil
}

// ActivateUser sets activated=true. Repeating the update is harmless.
func (db *MongoDB) ActivateUser(ctx context.Context, userID string) error {
	result, err := db.database.Collection(usersCollection).UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"activated": true}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	return nil
}

// UpdateUserPassword replaces the stored password hash.
func (db *MongoDB) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := db.database.Collection(usersCollection).UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"password_hash": passwordHash}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	return nil
}

// SaveResetToken upserts the token record keyed by user ID, so a concurrent
// re-issue resolves to last writer wins.
func (db *MongoDB) SaveResetToken(ctx context.Context, token *models.ResetToken) error {
	_, err := db.database.Collection(tokensCollection).ReplaceOne(
		ctx,
		bson.M{"_id": token.UserID},
		token,
		options.Replace().SetUpsert(true),
	)

	return err
}

// FindResetToken returns the live token record for the user, if any.
func (db *MongoDB) FindResetToken(ctx context.Context, userID string) (*models.ResetToken, bool, error) {
	var token models.ResetToken
	err := db.database.Collection(tokensCollection).
		FindOne(ctx, bson.M{"_id": userID}).
		Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &token, true, nil
}

// DeleteResetToken removes the token record for the user. Idempotent.
func (db *MongoDB) DeleteResetToken(ctx context.Context, userID string) error {
	_, err := db.database.Collection(tokensCollection).DeleteOne(ctx, bson.M{"_id": userID})

	return err
}

// InsertShortURL inserts a new mapping document. A duplicate short code is
// reported as storage.ErrUniqueViolation so the caller can retry generation.
func (db *MongoDB) InsertShortURL(ctx context.Context, record *models.ShortURL) error {
	_, err := db.database.Collection(shortURLsCollection).InsertOne(ctx, record)
	if mongo.IsDuplicateKeyError(err) {
		return storage.ErrUniqueViolation
	}

	return err
}

// FindShortURLByCode returns the mapping for the code, if any.
func (db *MongoDB) FindShortURLByCode(ctx context.Context, code string) (*models.ShortURL, bool, error) {
	var record models.ShortURL
	err := db.database.Collection(shortURLsCollection).
		FindOne(ctx, bson.M{"short_code": code}).
		Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	return &record, true, nil
}

// IsCodeExists reports whether the code is already taken.
func (db *MongoDB) IsCodeExists(ctx context.Context, code string) (bool, error) {
	count, err := db.database.Collection(shortURLsCollection).CountDocuments(
		ctx,
		bson.M{"short_code": code},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// IncrementClickCount atomically bumps the click counter of the mapping.
func (db *MongoDB) IncrementClickCount(ctx context.Context, code string) error {
	result, err := db.database.Collection(shortURLsCollection).UpdateOne(
		ctx,
		bson.M{"short_code": code},
		bson.M{"$inc": bson.M{"click_count": 1}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	return nil
}

// GetAllShortURLs returns every mapping ordered by creation time.
func (db *MongoDB) GetAllShortURLs(ctx context.Context) ([]models.ShortURL, error) {
	cursor, err := db.database.Collection(shortURLsCollection).Find(
		ctx,
		bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var result []models.ShortURL
	if err := cursor.All(ctx, &result); err != nil {
		return nil, err
	}

	return result, nil
}

// Ping verifies connectivity within the configured timeout.
func (db *MongoDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.client.Ping(ctxWithTimeout, nil)
}

// Close disconnects from MongoDB.
func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), db.connectionTimeout)
	defer cancel()

	return db.client.Disconnect(ctx)
}

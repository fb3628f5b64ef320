package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	connectRetryDelay = 5 * time.Second
	pingTimeout       = 5 * time.Second
)

// Connect dials MongoDB, retrying on a fixed delay until the server is
// reachable or ctx is canceled. This is the only retry loop in the
// whole service.
func Connect(ctx context.Context, log *logrus.Logger, uri string) (*mongo.Client, error) {
	for {
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
			err = client.Ping(pingCtx, nil)
			cancel()
			if err == nil {
				return client, nil
			}
			client.Disconnect(ctx)
		}

		log.WithField("error", err).Warn("Cannot reach MongoDB; retrying")
		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "Connect to MongoDB")
		case <-time.After(connectRetryDelay):
		}
	}
}

// Mongo implements Store on a MongoDB database.
type Mongo struct {
	users *mongo.Collection
	rooms *mongo.Collection
}

func NewMongo(client *mongo.Client, database string) *Mongo {
	db := client.Database(database)
	return &Mongo{
		users: db.Collection("users"),
		rooms: db.Collection("rooms"),
	}
}

// EnsureIndexes creates the unique email index. Safe to call on every
// startup.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return errors.Wrap(err, "Create user indexes")
}

func (m *Mongo) CreateUser(ctx context.Context, u User) error {
	_, err := m.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return errors.Wrap(err, "Insert user")
}

func (m *Mongo) UserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := m.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	return u, errors.Wrap(err, "Find user by email")
}

func (m *Mongo) UsersByID(ctx context.Context, ids []string) (map[string]User, error) {
	cursor, err := m.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, errors.Wrap(err, "Find users")
	}
	var users []User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Wrap(err, "Decode users")
	}

	byID := make(map[string]User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func (m *Mongo) CreateRoom(ctx context.Context, r Room) error {
	_, err := m.rooms.InsertOne(ctx, r)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return errors.Wrap(err, "Insert room")
}

func (m *Mongo) ListRooms(ctx context.Context) ([]Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := m.rooms.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "Find rooms")
	}
	var rooms []Room
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, errors.Wrap(err, "Decode rooms")
	}
	return rooms, nil
}

func (m *Mongo) AddMember(ctx context.Context, roomID, userID string) error {
	res, err := m.rooms.UpdateByID(ctx, roomID, bson.M{
		"$addToSet": bson.M{"members": userID},
	})
	if err != nil {
		return errors.Wrap(err, "Add room member")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

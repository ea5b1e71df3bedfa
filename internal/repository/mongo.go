package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yourorg/institute-portal/internal/models"
)

type MongoRepository struct {
	rooms         *mongo.Collection
	messages      *mongo.Collection
	notifications *mongo.Collection
	profiles      *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		rooms:         db.Collection("rooms"),
		messages:      db.Collection("messages"),
		notifications: db.Collection("notifications"),
		profiles:      db.Collection("profiles"),
	}
}

func (r *MongoRepository) ListRooms(ctx context.Context) ([]models.Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.rooms.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Room
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	room.CreatedAt = time.Now().UTC()
	_, err := r.rooms.InsertOne(ctx, room)
	return err
}

func (r *MongoRepository) ListMessages(ctx context.Context, roomID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.messages.Find(ctx, bson.M{"room_id": roomID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Message
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := r.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MongoRepository) InsertMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.ReadBy == nil {
		m.ReadBy = []string{m.SenderID}
	}
	m.CreatedAt = time.Now().UTC()
	_, err := r.messages.InsertOne(ctx, m)
	return err
}

// AddReader grows read_by atomically; $addToSet makes the union idempotent
// at the document level, so concurrent markers cannot lose each other's write.
func (r *MongoRepository) AddReader(ctx context.Context, messageID, readerID string) error {
	res, err := r.messages.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$addToSet": bson.M{"read_by": readerID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) ListNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cur, err := r.notifications.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) ListUnread(ctx context.Context, userID string) ([]models.Notification, error) {
	cur, err := r.notifications.Find(ctx, bson.M{"user_id": userID, "read": false})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	_, err := r.notifications.InsertOne(ctx, n)
	return err
}

func (r *MongoRepository) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := r.notifications.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) MarkCategoryRead(ctx context.Context, userID string, cat models.NotificationCategory) error {
	_, err := r.notifications.UpdateMany(ctx,
		bson.M{"user_id": userID, "type": cat, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	return err
}

func (r *MongoRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.notifications.UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	return err
}

func (r *MongoRepository) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := r.profiles.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) GetProfiles(ctx context.Context, ids []string) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := r.profiles.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Profile
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MongoRepository) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	err := r.profiles.FindOne(ctx, bson.M{"email": email}).Decode(&p)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *MongoRepository) UpsertProfile(ctx context.Context, p *models.Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := r.profiles.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, opts)
	return err
}

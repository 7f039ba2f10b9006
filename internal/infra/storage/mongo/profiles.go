package mongo

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"arrienda/internal/domain/chat"
)

var ErrProfileNotFound = errors.New("mongo: profile not found")

// ProfileStore keeps the public profile snapshot (display name, avatar) used
// to denormalize thread counterparts, plus per-user notification preferences.
type ProfileStore struct {
	profiles *mongo.Collection
	prefs    *mongo.Collection
}

func NewProfileStore(db *mongo.Database) *ProfileStore {
	return &ProfileStore{
		profiles: db.Collection("profiles"),
		prefs:    db.Collection("notification_prefs"),
	}
}

type profileDoc struct {
	ID          string    `bson:"_id"`
	DisplayName string    `bson:"display_name"`
	AvatarURL   string    `bson:"avatar_url,omitempty"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

// Get loads the public profile snapshot for a user.
func (s *ProfileStore) Get(ctx context.Context, userID string) (chat.UserRef, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return chat.UserRef{}, ErrProfileNotFound
	}
	var doc profileDoc
	err := s.profiles.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return chat.UserRef{}, ErrProfileNotFound
		}
		return chat.UserRef{}, err
	}
	return chat.UserRef{ID: doc.ID, DisplayName: doc.DisplayName, AvatarURL: doc.AvatarURL}, nil
}

// Upsert stores the profile snapshot, called whenever a user registers or
// edits their profile.
func (s *ProfileStore) Upsert(ctx context.Context, ref chat.UserRef) error {
	if strings.TrimSpace(ref.ID) == "" {
		return errors.New("mongo: profile id is required")
	}
	update := bson.M{"$set": bson.M{
		"display_name": ref.DisplayName,
		"avatar_url":   ref.AvatarURL,
		"updated_at":   time.Now().UTC(),
	}}
	_, err := s.profiles.UpdateByID(ctx, ref.ID, update, options.Update().SetUpsert(true))
	return err
}

type prefsDoc struct {
	ID         string    `bson:"_id"`
	NewMessage *bool     `bson:"new_message,omitempty"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// Preferences are the per-user notification toggles.
type Preferences struct {
	NewMessage bool `json:"new_message"`
}

// GetPreferences returns the user's toggles; absent documents default to
// everything enabled.
func (s *ProfileStore) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	prefs := Preferences{NewMessage: true}
	var doc prefsDoc
	err := s.prefs.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return prefs, nil
		}
		return prefs, err
	}
	if doc.NewMessage != nil {
		prefs.NewMessage = *doc.NewMessage
	}
	return prefs, nil
}

// SetPreferences upserts the user's toggles.
func (s *ProfileStore) SetPreferences(ctx context.Context, userID string, prefs Preferences) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("mongo: user id is required")
	}
	update := bson.M{"$set": bson.M{
		"new_message": prefs.NewMessage,
		"updated_at":  time.Now().UTC(),
	}}
	_, err := s.prefs.UpdateByID(ctx, userID, update, options.Update().SetUpsert(true))
	return err
}

// NewMessageEnabled is the notifier-facing view of the preferences.
func (s *ProfileStore) NewMessageEnabled(ctx context.Context, userID string) (bool, error) {
	prefs, err := s.GetPreferences(ctx, userID)
	if err != nil {
		return true, err
	}
	return prefs.NewMessage, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/notes-service/internal/domain"
)

const notesCollection = "notes"

type mongoNoteDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      primitive.ObjectID `bson:"userId"`
	Title       string             `bson:"title"`
	Content     map[string]any     `bson:"content"`
	ContentHTML string             `bson:"contentHtml,omitempty"`
	Tags        []string           `bson:"tags"`
	Reminder    *time.Time         `bson:"reminder"`
	TodoItems   []domain.TodoItem  `bson:"todoItems"`
	IsPinned    bool               `bson:"isPinned"`
	IsArchived  bool               `bson:"isArchived"`
	Color       string             `bson:"color"`
	Version     int64              `bson:"version"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d mongoNoteDoc) toDomain() domain.Note {
	content, _ := normalizeBSON(d.Content).(map[string]any)
	return domain.Note{
		ID:          d.ID.Hex(),
		UserID:      d.UserID.Hex(),
		Title:       d.Title,
		Content:     content,
		ContentHTML: d.ContentHTML,
		Tags:        d.Tags,
		Reminder:    d.Reminder,
		TodoItems:   d.TodoItems,
		IsPinned:    d.IsPinned,
		IsArchived:  d.IsArchived,
		Color:       d.Color,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type mongoNoteRepository struct {
	coll *mongo.Collection
}

// NewMongoNoteRepository returns a document-store implementation and ensures the listing index.
func NewMongoNoteRepository(ctx context.Context, db *mongo.Database) (NoteRepository, error) {
	coll := db.Collection(notesCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "isPinned", Value: -1}, {Key: "updatedAt", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	return &mongoNoteRepository{coll: coll}, nil
}

func (r *mongoNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	owner, err := primitive.ObjectIDFromHex(note.UserID)
	if err != nil {
		return fmt.Errorf("note owner %q: %w", note.UserID, err)
	}
	now := time.Now().UTC()
	doc := mongoNoteDoc{
		UserID:      owner,
		Title:       note.Title,
		Content:     note.Content,
		ContentHTML: note.ContentHTML,
		Tags:        nonNilTags(note.Tags),
		Reminder:    note.Reminder,
		TodoItems:   nonNilTodos(note.TodoItems),
		IsPinned:    note.IsPinned,
		IsArchived:  note.IsArchived,
		Color:       note.Color,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return err
	}
	note.ID = res.InsertedID.(primitive.ObjectID).Hex()
	note.Version = 1
	note.CreatedAt = now
	note.UpdatedAt = now
	return nil
}

func (r *mongoNoteRepository) GetByID(ctx context.Context, id string) (*domain.Note, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc mongoNoteDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	note := doc.toDomain()
	return &note, nil
}

func (r *mongoNoteRepository) List(ctx context.Context, filter NoteFilter) ([]domain.Note, error) {
	owner, err := primitive.ObjectIDFromHex(filter.UserID)
	if err != nil {
		return nil, nil
	}
	query := bson.M{"userId": owner}
	if filter.Tag != "" {
		query["tags"] = filter.Tag
	}
	if filter.HasReminder {
		query["reminder"] = bson.M{"$ne": nil}
	}
	if filter.IsPinned != nil {
		query["isPinned"] = *filter.IsPinned
	}
	if filter.IsArchived != nil {
		query["isArchived"] = *filter.IsArchived
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"contentHtml": pattern},
			bson.M{"tags": pattern},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "isPinned", Value: -1}, {Key: "updatedAt", Value: -1}})
	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []mongoNoteDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	notes := make([]domain.Note, 0, len(docs))
	for _, doc := range docs {
		notes = append(notes, doc.toDomain())
	}
	return notes, nil
}

func (r *mongoNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	filter, ok := ownedFilter(note.UserID, note.ID)
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, versionedFilter(filter, note.Version), bson.M{
		"$set": bson.M{
			"title":       note.Title,
			"content":     note.Content,
			"contentHtml": note.ContentHTML,
			"tags":        nonNilTags(note.Tags),
			"reminder":    note.Reminder,
			"todoItems":   nonNilTodos(note.TodoItems),
			"isPinned":    note.IsPinned,
			"isArchived":  note.IsArchived,
			"color":       note.Color,
			"updatedAt":   now,
		},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		exists, err := r.coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if exists > 0 {
			return ErrConflict
		}
		return ErrNotFound
	}
	note.Version++
	note.UpdatedAt = now
	return nil
}

func (r *mongoNoteRepository) Delete(ctx context.Context, userID, id string) error {
	filter, ok := ownedFilter(userID, id)
	if !ok {
		return ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoNoteRepository) TagCounts(ctx context.Context, userID string) ([]domain.TagCount, error) {
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []domain.TagCount{}, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": owner}}},
		{{Key: "$unwind", Value: "$tags"}},
		{{Key: "$group", Value: bson.M{"_id": "$tags", "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		{{Key: "$project", Value: bson.M{"_id": 0, "name": "$_id", "count": 1}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []struct {
		Name  string `bson:"name"`
		Count int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]domain.TagCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.TagCount{Name: row.Name, Count: row.Count})
	}
	return out, nil
}

func ownedFilter(userID, id string) (bson.M, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, false
	}
	owner, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, false
	}
	return bson.M{"_id": oid, "userId": owner}, true
}

// versionedFilter narrows filter to one version. Documents written before
// versioning have no field and read back as version 0.
func versionedFilter(filter bson.M, version int64) bson.M {
	out := bson.M{}
	for k, v := range filter {
		out[k] = v
	}
	if version == 0 {
		out["version"] = bson.M{"$exists": false}
	} else {
		out["version"] = version
	}
	return out
}

// normalizeBSON turns driver container types back into plain JSON-shaped values.
func normalizeBSON(v any) any {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeBSON(e.Value)
		}
		return m
	case primitive.M:
		return normalizeBSON(map[string]any(t))
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = normalizeBSON(val)
		}
		return m
	case primitive.A:
		return normalizeBSON([]any(t))
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeBSON(val)
		}
		return out
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return v
	}
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nonNilTodos(items []domain.TodoItem) []domain.TodoItem {
	if items == nil {
		return []domain.TodoItem{}
	}
	return items
}

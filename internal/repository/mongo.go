package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	assignmentsCollection = "assignments"
	submissionsCollection = "submissions"
	usersCollection       = "users"

	duplicateKeyCode = 11000
)

type MongoRepository struct {
	db     *mongo.Database
	logger zerolog.Logger
}

func NewMongoRepositories(db *mongo.Database, logger zerolog.Logger) Repositories {
	base := &MongoRepository{db: db, logger: logger}
	return Repositories{
		Assignments: &mongoAssignmentRepository{base, db.Collection(assignmentsCollection)},
		Submissions: &mongoSubmissionRepository{base, db.Collection(submissionsCollection)},
		Users:       &mongoUserRepository{base, db.Collection(usersCollection)},
	}
}

// EnsureIndexes creates the unique indexes the engine relies on for replay safety.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger zerolog.Logger) error {
	indexes := map[string]mongo.IndexModel{
		usersCollection: {
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		submissionsCollection: {
			Keys:    bson.D{{Key: "assignment_id", Value: 1}, {Key: "student_username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		assignmentsCollection: {
			Keys: bson.D{{Key: "tutor", Value: 1}},
		},
	}

	for collection, model := range indexes {
		name, err := db.Collection(collection).Indexes().CreateOne(ctx, model)
		if err != nil {
			return fmt.Errorf("failed to create index on %s: %w", collection, err)
		}
		logger.Debug().Str("collection", collection).Str("index", name).Msg("Index ensured")
	}

	projection := mongo.IndexModel{Keys: bson.D{{Key: "assignment_submissions.assignment._id", Value: 1}}}
	if _, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, projection); err != nil {
		return fmt.Errorf("failed to create projection index: %w", err)
	}

	return nil
}

// onlyDuplicateKeys reports whether every write error in a bulk failure is a
// unique index conflict.
func onlyDuplicateKeys(err error) bool {
	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) {
		return mongo.IsDuplicateKeyError(err)
	}
	if bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return false
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

type mongoAssignmentRepository struct {
	*MongoRepository
	collection *mongo.Collection
}

func (r *mongoAssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID.IsZero() {
		assignment.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctx, assignment)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *mongoAssignmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error) {
	assignment := &models.Assignment{}
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(assignment)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *mongoAssignmentRepository) GetByTutor(ctx context.Context, tutor string) ([]models.Assignment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"tutor": tutor}, opts)
	if err != nil {
		return nil, err
	}

	var assignments []models.Assignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *mongoAssignmentRepository) Replace(ctx context.Context, assignment *models.Assignment) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": assignment.ID}, assignment)
	return err
}

func (r *mongoAssignmentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

type mongoSubmissionRepository struct {
	*MongoRepository
	collection *mongo.Collection
}

func (r *mongoSubmissionRepository) GetByAssignmentAndStudent(ctx context.Context, assignmentID primitive.ObjectID, student string) (*models.Submission, error) {
	filter := bson.M{"assignment_id": assignmentID, "student_username": student}

	submission := &models.Submission{}
	err := r.collection.FindOne(ctx, filter).Decode(submission)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return submission, nil
}

func (r *mongoSubmissionRepository) GetByAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.Submission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "student_username", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"assignment_id": assignmentID}, opts)
	if err != nil {
		return nil, err
	}

	var submissions []models.Submission
	if err := cursor.All(ctx, &submissions); err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *mongoSubmissionRepository) InsertMany(ctx context.Context, submissions []models.Submission) error {
	if len(submissions) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(submissions))
	for _, submission := range submissions {
		if submission.ID.IsZero() {
			submission.ID = primitive.NewObjectID()
		}
		docs = append(docs, submission)
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && onlyDuplicateKeys(err) {
		r.logger.Debug().Msg("Skipped submissions that already exist")
		return nil
	}
	return err
}

func (r *mongoSubmissionRepository) Replace(ctx context.Context, submission *models.Submission) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": submission.ID}, submission)
	return err
}

func (r *mongoSubmissionRepository) DeleteByAssignmentAndStudents(ctx context.Context, assignmentID primitive.ObjectID, students []string) (int, error) {
	if len(students) == 0 {
		return 0, nil
	}

	filter := bson.M{
		"assignment_id":    assignmentID,
		"student_username": bson.M{"$in": students},
	}

	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int(result.DeletedCount), nil
}

type mongoUserRepository struct {
	*MongoRepository
	collection *mongo.Collection
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	user := &models.User{}
	err := r.collection.FindOne(ctx, filter).Decode(user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *mongoUserRepository) find(ctx context.Context, filter bson.M) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *mongoUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateKey
	}
	return err
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *mongoUserRepository) GetByUsernames(ctx context.Context, usernames []string) ([]models.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	return r.find(ctx, bson.M{"username": bson.M{"$in": usernames}})
}

func (r *mongoUserRepository) GetByProjectedAssignment(ctx context.Context, assignmentID primitive.ObjectID) ([]models.User, error) {
	return r.find(ctx, bson.M{"assignment_submissions.assignment._id": assignmentID})
}

func (r *mongoUserRepository) Replace(ctx context.Context, user *models.User) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	return err
}

func (r *mongoUserRepository) ReplaceMany(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(users))
	for i := range users {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": users[i].ID}).
			SetReplacement(users[i]))
	}

	result, err := r.collection.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return err
	}

	r.logger.Debug().
		Int64("matched", result.MatchedCount).
		Int64("modified", result.ModifiedCount).
		Msg("Users replaced")
	return nil
}

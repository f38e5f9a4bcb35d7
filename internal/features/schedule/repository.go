package schedule

import (
	"context"
	"errors"
	"time"

	"go-catalog-sync/internal/common/models"
	"go-catalog-sync/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("sync schedule not found")

type ScheduleRepository interface {
	Get(ctx context.Context, tenantID primitive.ObjectID) (*SyncSchedule, error)
	Upsert(ctx context.Context, schedule *SyncSchedule) error
	SetEnabled(ctx context.Context, tenantID primitive.ObjectID, enabled bool, nextRunAt *time.Time) error
	Delete(ctx context.Context, tenantID primitive.ObjectID) error
	ListDue(ctx context.Context, now time.Time, limit int64) ([]SyncSchedule, error)
	RecordRun(ctx context.Context, tenantID primitive.ObjectID, status models.SyncStatus, finishedAt time.Time, nextRunAt *time.Time) error
}

type ScheduleRepositoryImpl struct {
	collection *mongo.Collection
}

func NewScheduleRepository(db *database.MongodbDB) *ScheduleRepositoryImpl {
	return &ScheduleRepositoryImpl{
		collection: db.DB.Collection("sync_schedules"),
	}
}

func (r *ScheduleRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "enabled", Value: 1}, {Key: "next_run_at", Value: 1}},
		},
	})
	return err
}

func (r *ScheduleRepositoryImpl) Get(ctx context.Context, tenantID primitive.ObjectID) (*SyncSchedule, error) {
	var schedule SyncSchedule
	err := r.collection.FindOne(ctx, bson.M{"tenant_id": tenantID}).Decode(&schedule)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

// Upsert writes configuration fields and next_run_at; run counters are untouched
func (r *ScheduleRepositoryImpl) Upsert(ctx context.Context, schedule *SyncSchedule) error {
	now := time.Now()

	set := bson.M{
		"enabled":             schedule.Enabled,
		"schedule_expression": schedule.ScheduleExpression,
		"timezone":            schedule.Timezone,
		"sync_products":       schedule.SyncProducts,
		"update_feed":         schedule.UpdateFeed,
		"notify_on_success":   schedule.NotifyOnSuccess,
		"notify_on_error":     schedule.NotifyOnError,
		"notify_email":        schedule.NotifyEmail,
		"updated_at":          now,
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":          primitive.NewObjectID(),
			"tenant_id":    schedule.TenantID,
			"total_runs":   0,
			"success_runs": 0,
			"failed_runs":  0,
			"created_at":   now,
		},
	}
	if schedule.NextRunAt != nil {
		set["next_run_at"] = *schedule.NextRunAt
	} else {
		update["$unset"] = bson.M{"next_run_at": ""}
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return r.collection.FindOneAndUpdate(ctx, bson.M{"tenant_id": schedule.TenantID}, update, opts).Decode(schedule)
}

func (r *ScheduleRepositoryImpl) SetEnabled(ctx context.Context, tenantID primitive.ObjectID, enabled bool, nextRunAt *time.Time) error {
	update := bson.M{
		"$set": bson.M{"enabled": enabled, "updated_at": time.Now()},
	}
	if nextRunAt != nil {
		update["$set"].(bson.M)["next_run_at"] = *nextRunAt
	} else {
		update["$unset"] = bson.M{"next_run_at": ""}
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"tenant_id": tenantID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ScheduleRepositoryImpl) Delete(ctx context.Context, tenantID primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDue returns enabled schedules whose next run has passed, oldest first.
// A missing next_run_at sorts first and counts as due.
func (r *ScheduleRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int64) ([]SyncSchedule, error) {
	filter := dueFilter(now)
	opts := options.Find().SetSort(bson.D{{Key: "next_run_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var schedules []SyncSchedule
	if err = cursor.All(ctx, &schedules); err != nil {
		return nil, err
	}

	return schedules, nil
}

// RecordRun bumps counters with $inc so concurrent runs never lose updates
func (r *ScheduleRepositoryImpl) RecordRun(ctx context.Context, tenantID primitive.ObjectID, status models.SyncStatus, finishedAt time.Time, nextRunAt *time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"tenant_id": tenantID}, recordRunUpdate(status, finishedAt, nextRunAt))
	return err
}

func dueFilter(now time.Time) bson.M {
	return bson.M{
		"enabled": true,
		"$or": bson.A{
			bson.M{"next_run_at": nil},
			bson.M{"next_run_at": bson.M{"$lte": now}},
		},
	}
}

func recordRunUpdate(status models.SyncStatus, finishedAt time.Time, nextRunAt *time.Time) bson.M {
	inc := bson.M{"total_runs": 1}
	if status == models.SyncStatusSuccess {
		inc["success_runs"] = 1
	} else {
		// PARTIAL counts as failed so total_runs = success_runs + failed_runs
		inc["failed_runs"] = 1
	}

	set := bson.M{
		"last_run_at": finishedAt,
		"last_status": status,
		"updated_at":  time.Now(),
	}
	if nextRunAt != nil {
		set["next_run_at"] = *nextRunAt
	}

	return bson.M{"$inc": inc, "$set": set}
}

// database/query.go
package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/feedmill/gdeltflow/models"
)

// FindRecords pulls every stored record of one table whose datetime column
// falls inside [from, to), projected without the store id so the result is
// pure feed data.
func FindRecords(ctx context.Context, table models.Table, from, to time.Time) (models.TableProjection, error) {
	proj := models.TableProjection{
		Table:   table,
		Columns: table.ReducedColumns(),
		From:    from,
		To:      to,
	}

	filter := bson.M{
		table.DatetimeColumn(): bson.M{
			"$gte": from,
			"$lt":  to,
		},
	}
	opts := options.Find().
		SetProjection(bson.M{"_id": 0}).
		SetSort(bson.D{{Key: table.DatetimeColumn(), Value: 1}})

	cur, err := Collection(table).Find(ctx, filter, opts)
	if err != nil {
		return proj, fmt.Errorf("querying %s records: %w", table, err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc map[string]interface{}
		if err := cur.Decode(&doc); err != nil {
			return proj, fmt.Errorf("decoding %s record: %w", table, err)
		}
		proj.Records = append(proj.Records, doc)
	}
	if err := cur.Err(); err != nil {
		return proj, fmt.Errorf("iterating %s records: %w", table, err)
	}
	return proj, nil
}

// CountRecords returns the number of stored records for one table.
func CountRecords(ctx context.Context, table models.Table) (int64, error) {
	n, err := Collection(table).EstimatedDocumentCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("counting %s records: %w", table, err)
	}
	return n, nil
}

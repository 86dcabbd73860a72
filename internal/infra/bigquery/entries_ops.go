package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// GetEntriesWithClient returns the rows for the given keys. Absent keys have
// no row.
func GetEntriesWithClient(ctx context.Context, client *bigquery.Client, table string, keys []string) ([]EntryRow, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	q := client.Query(fmt.Sprintf(`
		SELECT key, value, updated_ts
		FROM %s
		WHERE key IN UNNEST(@keys)
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "keys", Value: keys},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetEntriesWithClient: query read: %w", err)
	}

	var rows []EntryRow
	for {
		var r EntryRow
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetEntriesWithClient: iter next: %w", err)
		}
		rows = append(rows, r)
	}
	return rows, nil
}

// UpsertEntriesWithClient writes every entry in a single MERGE statement, so
// the batch lands atomically.
func UpsertEntriesWithClient(ctx context.Context, client *bigquery.Client, table string, entries map[string][]byte, now time.Time) error {
	if len(entries) == 0 {
		return nil
	}
	keys, values := splitEntries(entries)

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (
			SELECT key, @values[OFFSET(off)] AS value
			FROM UNNEST(@keys) AS key WITH OFFSET off
		) S
		ON T.key = S.key
		WHEN MATCHED THEN
			UPDATE SET value = S.value, updated_ts = @updated_ts
		WHEN NOT MATCHED THEN
			INSERT (key, value, updated_ts) VALUES (S.key, S.value, @updated_ts)
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "keys", Value: keys},
		{Name: "values", Value: values},
		{Name: "updated_ts", Value: now},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("UpsertEntriesWithClient: %w", err)
	}
	return nil
}

// DeleteEntriesWithClient deletes the rows for the given keys.
func DeleteEntriesWithClient(ctx context.Context, client *bigquery.Client, table string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE key IN UNNEST(@keys)
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "keys", Value: keys},
	}

	if _, err := runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteEntriesWithClient: %w", err)
	}
	return nil
}

// EnsureTableWithClient creates the entries table if it does not exist.
func EnsureTableWithClient(ctx context.Context, client *bigquery.Client, datasetID, table string) error {
	schema, err := bigquery.InferSchema(EntryRow{})
	if err != nil {
		return fmt.Errorf("EnsureTableWithClient: infer schema: %w", err)
	}

	err = client.Dataset(datasetID).Table(table).Create(ctx, &bigquery.TableMetadata{
		Name:        table,
		Description: "Household ledger collections, one row per key",
		Schema:      schema,
	})
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return fmt.Errorf("EnsureTableWithClient: create table: %w", err)
	}
	return nil
}

// LockKey is the row key a named lock is held under. It cannot collide with a
// collection key.
func LockKey(name string) string {
	return "__lock__/" + name
}

// AcquireLockWithClient inserts the lock row for name holding token, or takes
// it over when its holder last wrote it before staleBefore. It reports
// whether this call now holds the lock.
func AcquireLockWithClient(ctx context.Context, client *bigquery.Client, table, name string, token []byte, now, staleBefore time.Time) (bool, error) {
	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @key AS key) S
		ON T.key = S.key
		WHEN MATCHED AND T.updated_ts < @stale_before THEN
			UPDATE SET value = @token, updated_ts = @now
		WHEN NOT MATCHED THEN
			INSERT (key, value, updated_ts) VALUES (@key, @token, @now)
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "key", Value: LockKey(name)},
		{Name: "token", Value: token},
		{Name: "now", Value: now},
		{Name: "stale_before", Value: staleBefore},
	}

	affected, err := runDML(ctx, q)
	if isConcurrentUpdate(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("AcquireLockWithClient: %w", err)
	}
	return affected == 1, nil
}

// ReleaseLockWithClient deletes the lock row for name if it still holds token.
// It reports whether the row was deleted.
func ReleaseLockWithClient(ctx context.Context, client *bigquery.Client, table, name string, token []byte) (bool, error) {
	q := client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE key = @key AND value = @token
	`, table))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "key", Value: LockKey(name)},
		{Name: "token", Value: token},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return false, fmt.Errorf("ReleaseLockWithClient: %w", err)
	}
	return affected == 1, nil
}

// isConcurrentUpdate reports whether BigQuery aborted a DML statement because
// another statement changed the table at the same time.
func isConcurrentUpdate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Could not serialize access")
}

// runDML runs q and returns how many rows it changed.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}
	if status.Statistics != nil {
		if qs, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return qs.NumDMLAffectedRows, nil
		}
	}
	return 0, nil
}

// splitEntries returns keys in sorted order with their values at the same
// offsets.
func splitEntries(entries map[string][]byte) ([]string, [][]byte) {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = entries[k]
	}
	return keys, values
}

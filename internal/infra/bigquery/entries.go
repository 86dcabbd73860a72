package bigquery

import (
	"fmt"
	"time"
)

// DefaultTable is the table holding ledger entries when none is configured.
const DefaultTable = "kv_store"

// EntryRow is one key of the ledger store.
type EntryRow struct {
	Key       string    `bigquery:"key"`        // REQUIRED
	Value     []byte    `bigquery:"value"`      // REQUIRED BYTES
	UpdatedTS time.Time `bigquery:"updated_ts"` // REQUIRED
}

// TableRef returns the backquoted fully qualified table name.
func TableRef(projectID, datasetID, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", projectID, datasetID, table)
}

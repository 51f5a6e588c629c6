package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/guieduc/guieduc/internal/kv"
	"github.com/guieduc/guieduc/internal/schema"
)

// Backup is the snapshot taken before a schema wipe.
type Backup struct {
	CreatedAt  schema.Millis     `json:"createdAt"`
	FromSchema string            `json:"fromSchema"`
	ToSchema   string            `json:"toSchema"`
	Data       map[string]string `json:"data"`
}

// Keys returns the backed-up keys in order.
func (b Backup) Keys() []string {
	keys := make([]string, 0, len(b.Data))
	for k := range b.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// LoadBackup reads the last schema-wipe backup. ok is false when none was
// ever taken.
func LoadBackup(ctx context.Context, ns kv.Namespace) (Backup, bool, error) {
	e, ok, err := ns.Get(ctx, schema.BackupKey)
	if err != nil {
		return Backup{}, false, fmt.Errorf("failed to read backup: %w", err)
	}
	if !ok {
		return Backup{}, false, nil
	}
	var b Backup
	if err := json.Unmarshal([]byte(e.Value), &b); err != nil {
		return Backup{}, false, fmt.Errorf("failed to decode backup: %w", err)
	}
	return b, true, nil
}

// RestoreBackup writes every key of the last backup back verbatim and
// returns how many were written. The data is in the old schema's shape;
// restoring only makes sense into a build that reads it.
func RestoreBackup(ctx context.Context, ns kv.Namespace) (int, error) {
	b, ok, err := LoadBackup(ctx, ns)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("no backup to restore")
	}
	n := 0
	for _, k := range b.Keys() {
		if err := ns.Set(ctx, k, b.Data[k]); err != nil {
			return n, fmt.Errorf("failed to restore %s: %w", k, err)
		}
		n++
	}
	return n, nil
}

package schema

import "strings"

// KeyPrefix marks the keys that belong to the application namespace.
// Export, import and the schema wipe operate on exactly these keys.
const KeyPrefix = "guieduc:"

const (
	// DataKey holds the single blob with every record. Its presence is
	// what makes the local store "non-empty".
	DataKey = KeyPrefix + "data"

	// QueueKey holds the outbound event queue.
	QueueKey = KeyPrefix + "queue"
)

// Version guard markers. They sit outside KeyPrefix so that a schema wipe
// does not delete them.
const (
	VersionKey = "guieduc_version"
	SchemaKey  = "guieduc_schema"
	BackupKey  = "guieduc_backup"
)

// Keys of the retired per-entity layout. Only detected, never read.
const (
	LegacyAlunosKey      = KeyPrefix + "alunos"
	LegacyChamadasPrefix = KeyPrefix + "chamadas:"
)

// IsAppKey reports whether key belongs to the application namespace.
func IsAppKey(key string) bool {
	return strings.HasPrefix(key, KeyPrefix)
}

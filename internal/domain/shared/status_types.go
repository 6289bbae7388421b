package shared

// SyncStatus is the ledger sync state of a record as tracked by the journal
type SyncStatus string

const (
	SyncStatusPending   SyncStatus = "PENDING"
	SyncStatusSynced    SyncStatus = "SYNCED"
	SyncStatusUnsynced  SyncStatus = "UNSYNCED"
	SyncStatusCancelled SyncStatus = "CANCELLED"
)

// IntegrityStatus is the result of comparing a record against its ledger entry
type IntegrityStatus string

const (
	IntegrityStatusVerified  IntegrityStatus = "VERIFIED"
	IntegrityStatusTampered  IntegrityStatus = "TAMPERED"
	IntegrityStatusNotSynced IntegrityStatus = "NOT_SYNCED"
)

// SyncOperation names the coordinator entry point that produced an outcome
type SyncOperation string

const (
	SyncOperationCreate SyncOperation = "CREATE"
	SyncOperationResync SyncOperation = "RESYNC"
)

// AuditTrigger records why an integrity check ran
type AuditTrigger string

const (
	AuditTriggerEvent AuditTrigger = "EVENT"
	AuditTriggerSweep AuditTrigger = "SWEEP"
	AuditTriggerAPI   AuditTrigger = "API"
	AuditTriggerCLI   AuditTrigger = "CLI"
)

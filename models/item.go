package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TrackedItem is the unit of change detection: one local file or one
// registered remote document. Identity is the absolute path or canonical URL
// and is unique within a project.
type TrackedItem struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectAlias string             `bson:"project_alias" json:"project_alias"`
	Identity     string             `bson:"identity" json:"identity"`
	ContentHash  string             `bson:"content_hash,omitempty" json:"content_hash,omitempty"`
	Status       string             `bson:"status" json:"status"`
	Title        string             `bson:"title,omitempty" json:"title,omitempty"`
	StrategyUsed string             `bson:"strategy_used,omitempty" json:"strategy_used,omitempty"`
	LastError    string             `bson:"last_error,omitempty" json:"last_error,omitempty"`
	LastSyncedAt time.Time          `bson:"last_synced_at" json:"last_synced_at"`
	Deleted      bool               `bson:"deleted" json:"deleted"`
	DeletedAt    *time.Time         `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`

	// Current enrichment, fully replaced on each successful re-enrichment.
	Enrichment *EnrichmentResult `bson:"enrichment,omitempty" json:"enrichment,omitempty"`
}

// EnrichmentResult is a model-generated description of an item's content.
// At most one current result exists per live TrackedItem.
type EnrichmentResult struct {
	SummaryText     string    `bson:"summary_text" json:"summary_text"`
	GeneratingModel string    `bson:"generating_model" json:"generating_model"`
	GeneratedAt     time.Time `bson:"generated_at" json:"generated_at"`
}

// TrackedItem status constants
const (
	StatusPending   = "pending"
	StatusAcquiring = "acquiring"
	StatusEnriching = "enriching"
	StatusChunked   = "chunked"
	StatusFailed    = "failed"
)

// IsRemote reports whether an identity refers to a remote document rather
// than a local file.
func IsRemote(identity string) bool {
	return strings.HasPrefix(identity, "http://") || strings.HasPrefix(identity, "https://")
}

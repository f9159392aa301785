package store

import (
	"context"
	"time"

	"github.com/yangwenmai/aiworkspace/internal/model"
)

// ArtifactRecorder records generated artifacts as they are produced.
type ArtifactRecorder interface {
	RecordArtifact(ctx context.Context, a model.Artifact) error
}

// ArtifactLookup finds a recorded artifact by file name.
type ArtifactLookup interface {
	GetArtifactByName(ctx context.Context, name string) (*model.Artifact, error)
}

// ArtifactIndex is what the HTTP layer needs: record replies, then check
// them before serving.
type ArtifactIndex interface {
	ArtifactRecorder
	ArtifactLookup
}

// ExpiredPurger lists and removes ledger entries past their expiry.
type ExpiredPurger interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]model.Artifact, error)
	DeleteArtifact(ctx context.Context, id string) error
}

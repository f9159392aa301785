package model

import "time"

// Artifact kind constants
const (
	ArtifactSpeech = "speech"
)

// Artifact is a generated output file retained for the client to fetch.
type Artifact struct {
	ID        string `json:"id"`
	Name      string `json:"name"` // basename inside the uploads directory
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

// NewArtifact creates an Artifact that expires ttl after now.
func NewArtifact(id, name, kind, path string, ttl time.Duration) Artifact {
	now := time.Now().UTC()
	return Artifact{
		ID:        id,
		Name:      name,
		Kind:      kind,
		Path:      path,
		CreatedAt: now.Format(time.RFC3339),
		ExpiresAt: now.Add(ttl).Format(time.RFC3339),
	}
}

// Expired reports whether the artifact's retention window has passed at now.
// An unparseable expiry counts as expired.
func (a Artifact) Expired(now time.Time) bool {
	exp, err := time.Parse(time.RFC3339, a.ExpiresAt)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}

package status

import "context"

// Store is the external status-update collaborator: it flips a broadcast's
// live flag and playback path for the REST layer to read. The core never
// reads it back.
type Store interface {
	// SetLive marks a broadcast live with its playback path.
	SetLive(ctx context.Context, roomID, playbackPath string) error
	// ClearLive marks a broadcast not-live and clears its playback path.
	ClearLive(ctx context.Context, roomID string) error
	Close() error
}

package job

import (
	"context"
	"time"
)

// MessageHandle is an opaque, transport-specific reference to a posted
// chat message (spec.md §3's status-msg field).
type MessageHandle = interface{}

// ChatTransport is the Worker's view of the out-of-scope chat collaborator
// (spec.md §1/§6: command dispatch is a black box, but the engine still
// needs to post/edit/delete messages and upload a leeched file as a
// native video). Its method set is a superset of progress.Transport so a
// ChatTransport value satisfies that interface directly.
type ChatTransport interface {
	PostMessage(ctx context.Context, ownerID int64, text string) (MessageHandle, error)
	EditMessage(ctx context.Context, handle MessageHandle, text string) error
	DeleteMessage(ctx context.Context, handle MessageHandle) error
	PostVideo(ctx context.Context, ownerID int64, path string, width, height int, duration time.Duration, caption string) error
}

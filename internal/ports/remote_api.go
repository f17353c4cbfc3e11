package ports

import (
	"context"

	"github.com/bnema/rigpilot/internal/domain"
)

// RemoteAPI is the game server. PerformAction returns either the
// authoritative fields the action changed or an error; a
// *domain.ActionError carries the server's classification, anything else is
// treated as transient.
type RemoteAPI interface {
	FetchSnapshot(ctx context.Context) (domain.Snapshot, error)
	PerformAction(ctx context.Context, rigID domain.RigID, kind domain.ActionKind) (domain.RigUpdate, error)
}

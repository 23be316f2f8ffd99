package health

import (
	"context"
	"fmt"
	"time"

	"github.com/dalagero/SBND-RunCo/internal/livetime"
)

// ReadyCheck validates IFBeam DB reachability by querying a short
// trailing window. The spill content of the probe window is
// irrelevant; only a transport or parse failure marks the service
// not ready.
func ReadyCheck(ctx context.Context, src livetime.POTSource) error {
	if src == nil {
		return fmt.Errorf("ifbeam client not initialized")
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	now := time.Now().UTC()
	if _, err := src.POTInterval(probeCtx, now.Add(-time.Minute), now); err != nil {
		return fmt.Errorf("ifbeam probe failed: %w", err)
	}
	return nil
}

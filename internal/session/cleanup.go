package session

import (
	"context"
	"time"

	"github.com/whisper/flashscope/internal/log"
)

// DefaultPurgeInterval is how often StartPurge removes expired sessions.
const DefaultPurgeInterval = 1 * time.Minute

// Purger is a Backend that cannot expire sessions on its own.
type Purger interface {
	Purge(ctx context.Context) (int, error)
}

// StartPurge removes expired sessions from p every interval until ctx is
// cancelled. Redis expires keys itself and needs no purge loop.
func StartPurge(ctx context.Context, p Purger, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("[session] purge loop stopped")
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if err != nil {
				log.Warnf("[session] purge failed: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("[session] purged %d expired sessions", n)
			}
		}
	}
}

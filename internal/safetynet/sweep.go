package safetynet

import (
	"context"
	"fmt"
	"log"
	"time"
)

// #region sweep

// SweepExpired marks entries past their expiry as non-revertible. The
// rows stay readable for audit; only the undo opportunity is withdrawn.
func (n *Net) SweepExpired(now time.Time) (int, error) {
	res, err := n.db.Exec(
		`UPDATE safety_net_entries SET expired = 1
		 WHERE expired = 0 AND expires_at <= ?`,
		now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	count, _ := res.RowsAffected()
	return int(count), nil
}

// CompactBlobs deletes snapshot payloads referenced only by entries that
// expired before the cutoff. Entry and image rows are kept: the audit
// trail stays intact, only the heavy pre-image bytes are reclaimed.
func (n *Net) CompactBlobs(cutoff time.Time) (int, error) {
	res, err := n.db.Exec(
		`DELETE FROM snapshot_blobs WHERE hash NOT IN (
			SELECT i.hash FROM snapshot_images i
			JOIN safety_net_entries e ON e.snapshot_ref = i.snapshot_ref
			WHERE i.hash IS NOT NULL
			  AND (e.expired = 0 OR e.expires_at > ?)
		)`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("compact blobs: %w", err)
	}
	count, _ := res.RowsAffected()
	return int(count), nil
}

// StartSweep runs the expiry sweep on the given interval until ctx is
// done. Each pass is two bounded statements, so the sweep never stalls
// foreground snapshot commits for long.
func (n *Net) StartSweep(ctx context.Context, interval, retention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := time.Now().UTC()
				if count, err := n.SweepExpired(now); err != nil {
					log.Printf("[SAFETYNET] sweep failed: %v", err)
				} else if count > 0 {
					log.Printf("[SAFETYNET] marked %d entries expired", count)
				}
				if _, err := n.CompactBlobs(now.Add(-retention)); err != nil {
					log.Printf("[SAFETYNET] compaction failed: %v", err)
				}
			}
		}
	}()
}

// #endregion sweep

package room

import (
	"context"
	"fmt"
)

// Reconcile compares every persisted room with the platform and tears down
// rooms that are empty or whose voice channel is gone. It catches records
// left behind when a delete failed for reasons other than not-found.
// Rooms younger than the grace period are skipped so a room is never swept
// between being persisted and its owner arriving.
func (m *Manager) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	rooms, err := m.store.ListAllRooms(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list rooms: %w", err)
	}

	cutoff := m.now().Add(-m.opts.ReconcileGrace)

	for _, r := range rooms {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		if r.CreatedAt.After(cutoff) {
			report.Skipped++
			continue
		}

		residents, err := m.residents(ctx, r)
		if err != nil {
			m.log.Warn("reconcile: failed to count residents",
				"room_id", r.ID,
				"error", err)
			report.Failed++
			continue
		}
		if residents > 0 {
			continue
		}

		if err := m.teardown(ctx, r.VoiceChannelID); err != nil {
			report.Failed++
			continue
		}
		report.TornDown++
	}

	m.log.Info("reconcile finished",
		"checked", report.Checked,
		"torn_down", report.TornDown,
		"skipped", report.Skipped,
		"failed", report.Failed)

	return report, nil
}

package engine

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Rollback unwinds every resource in the manifest, cheapest and least
// depended-upon first: alarms, then volumes (detach if attached, wait, delete),
// then instances (terminate, no wait). It never fails: each resource's
// failure is isolated, recorded as a warning, and the sweep continues. This
// narrows, but does not eliminate, the window for orphaned billable
// resources.
func (e *Engine) Rollback(ctx context.Context, m *Manifest) []RollbackWarning {
	if m.Empty() {
		return nil
	}
	log.Info().Int("instances", len(m.InstanceIDs)).Int("volumes", len(m.VolumeIDs)).
		Int("alarms", len(m.AlarmNames)).Msg("rolling back created resources")

	var warnings []RollbackWarning
	warn := func(kind, id string, err error) {
		w := RollbackWarning{Kind: kind, ID: id, Err: err}
		log.Warn().Err(err).Str("kind", kind).Str("id", id).Msg("rollback step failed; continuing")
		warnings = append(warnings, w)
	}

	// Alarms are deleted one by one so a single bad name cannot sink the rest.
	for _, name := range m.AlarmNames {
		if err := e.gw.DeleteAlarms(ctx, []string{name}); err != nil {
			warn("alarm", name, err)
		}
	}

	for _, volumeID := range m.VolumeIDs {
		if err := e.rollbackVolume(ctx, volumeID); err != nil {
			warn("volume", volumeID, err)
		}
	}

	if len(m.InstanceIDs) > 0 {
		// Fire and forget: termination is asynchronous and there is nothing
		// useful to do with a wait here.
		if err := e.gw.TerminateInstances(ctx, m.InstanceIDs); err != nil {
			for _, id := range m.InstanceIDs {
				warn("instance", id, err)
			}
		}
	}
	return warnings
}

func (e *Engine) rollbackVolume(ctx context.Context, volumeID string) error {
	volumes, err := e.gw.DescribeVolumes(ctx, []string{volumeID})
	if err != nil {
		return err
	}
	for _, v := range volumes {
		if v.State == "in-use" && len(v.Attachments) > 0 {
			if err := e.gw.DetachVolume(ctx, volumeID); err != nil {
				return err
			}
			if err := e.gw.WaitVolumeAvailable(ctx, volumeID); err != nil {
				return err
			}
		}
	}
	return e.gw.DeleteVolume(ctx, volumeID)
}

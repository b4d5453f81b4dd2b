package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/stratus-dev/stratus/internal/cloud"
	"github.com/stratus-dev/stratus/internal/spec"
)

// DeleteDeclared tears down the live resources matching the declared instance
// names. Unlike rollback it re-derives the resource set from the cloud, not
// from a creation manifest: it removes whatever currently answers to the
// declared names, whoever created it.
//
// Attached volumes are not deleted explicitly; teardown relies on each
// volume's delete-on-termination attribute. A volume with that attribute
// disabled survives termination; the ids involved are logged so the gap is
// visible.
func (e *Engine) DeleteDeclared(ctx context.Context, s *spec.Specification) error {
	if err := spec.Validate(s); err != nil {
		return err
	}
	log.Info().Msg("starting resource deletion")

	var instanceIDs []string
	var attachedVolumes []string
	var alarmNames []string

	for i := range s.Instances {
		in := &s.Instances[i]
		matches, err := e.gw.DescribeInstances(ctx, cloud.InstanceFilter{
			Name:   in.Name,
			States: cloud.LiveStates,
		})
		if err != nil {
			log.Warn().Err(err).Str("name", in.Name).Msg("lookup failed; skipping name")
			continue
		}
		for _, inst := range matches {
			instanceIDs = append(instanceIDs, inst.ID)
			for _, bd := range inst.BlockDevices {
				attachedVolumes = append(attachedVolumes, bd.VolumeID)
			}
		}
		if in.IdleShutdown != nil {
			alarmNames = append(alarmNames, AlarmName(in.Name))
		}
	}

	if err := e.gw.DeleteAlarms(ctx, alarmNames); err != nil {
		log.Warn().Err(err).Strs("alarms", alarmNames).Msg("alarm deletion failed; continuing")
	}

	if len(instanceIDs) == 0 {
		log.Info().Msg("no live instances matched the specification")
		return nil
	}

	if err := e.gw.TerminateInstances(ctx, instanceIDs); err != nil {
		return err
	}
	if err := e.gw.WaitInstancesTerminated(ctx, instanceIDs); err != nil {
		return err
	}

	if len(attachedVolumes) > 0 {
		log.Warn().Strs("volume_ids", attachedVolumes).
			Msg("volumes left to delete-on-termination; any with the attribute disabled will survive")
	}
	log.Info().Strs("instance_ids", instanceIDs).Msg("resource deletion completed")
	return nil
}

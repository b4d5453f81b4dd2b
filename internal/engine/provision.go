package engine

import (
	"context"
	"fmt"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/stratus-dev/stratus/internal/cloud"
	"github.com/stratus-dev/stratus/internal/spec"
)

// alarmPeriodMinutes is the fixed metric period the evaluation window is
// divided by.
const alarmPeriodMinutes = 5

// AlarmName derives the idle-shutdown alarm name for a declared instance.
func AlarmName(instanceName string) string {
	return instanceName + "-idle-shutdown"
}

// EvaluationPeriods converts declared evaluation minutes into alarm periods:
// integer division by the 5-minute metric period, with a floor of one because
// a zero-period alarm is rejected by the monitoring API.
func EvaluationPeriods(evaluationMinutes int) int {
	periods := evaluationMinutes / alarmPeriodMinutes
	if periods < 1 {
		periods = 1
	}
	return periods
}

// Provision validates the specification and drives it to "fully provisioned",
// or rolls back everything this run created and returns a *ProvisionError
// wrapping the original failure.
//
// The idempotency gate is all-or-nothing: if any declared name already has a
// live match, the whole run is treated as satisfied and nothing is created.
func (e *Engine) Provision(ctx context.Context, s *spec.Specification) (*Result, error) {
	if err := spec.Validate(s); err != nil {
		return nil, err
	}

	existing := e.Probe(ctx, s)
	if existing.Any() {
		log.Warn().Int("matches", len(existing.Instances)).
			Msg("found existing instances; skipping creation to maintain idempotency")
		res := &Result{AlreadyProvisioned: true, Existing: existing, Manifest: NewManifest()}
		for _, inst := range existing.Instances {
			res.Connections = append(res.Connections, connectionInfo(inst))
		}
		return res, nil
	}

	manifest := NewManifest()
	for i := range s.Instances {
		if err := e.provisionInstance(ctx, &s.Instances[i], manifest); err != nil {
			log.Error().Err(err).Str("name", s.Instances[i].Name).Msg("provisioning failed; rolling back")
			warnings := e.Rollback(ctx, manifest)
			return nil, &ProvisionError{
				Err:              err,
				Manifest:         manifest,
				RolledBack:       true,
				RollbackWarnings: warnings,
			}
		}
	}

	connections, err := e.connections(ctx, manifest.InstanceIDs)
	if err != nil {
		// Everything was created; a failed final describe should not unwind it.
		log.Warn().Err(err).Msg("created resources but could not fetch connection info")
	}
	log.Info().Int("instances", len(manifest.InstanceIDs)).Int("volumes", len(manifest.VolumeIDs)).
		Int("alarms", len(manifest.AlarmNames)).Msg("provisioning completed")
	return &Result{Manifest: manifest, Connections: connections}, nil
}

// provisionInstance runs the per-instance state machine: create, wait for
// running, create/attach volumes, create the idle-shutdown alarm. Every
// created id is appended to the manifest immediately after the create call
// returns, before any wait, so a timeout still rolls back a real, billable
// resource.
func (e *Engine) provisionInstance(ctx context.Context, in *spec.Instance, manifest *Manifest) error {
	userData, err := buildBootstrap(in, e.now())
	if err != nil {
		return fmt.Errorf("assemble bootstrap for %s: %w", in.Name, err)
	}

	params := cloud.CreateInstanceParams{
		Name:             in.Name,
		ImageID:          in.ImageID,
		InstanceType:     in.InstanceType,
		KeyName:          in.KeyName,
		SecurityGroupIDs: in.SecurityGroupIDs,
		SubnetID:         in.SubnetID,
		Tags:             e.standardTags(in.Tags),
		UserData:         userData,
		SpotMarket:       in.MarketTypeOrDefault() == "spot",
		SpotMaxPrice:     in.SpotMaxPrice,
	}
	if in.IAMRole != nil {
		params.IAMRole = *in.IAMRole
	}

	instanceID, err := e.gw.CreateInstance(ctx, params)
	if err != nil {
		return err
	}
	manifest.AddInstance(instanceID)

	log.Info().Str("instance_id", instanceID).Str("name", in.Name).Msg("waiting for instance to run")
	if err := e.gw.WaitInstanceRunning(ctx, instanceID); err != nil {
		return err
	}

	if len(in.Volumes) > 0 {
		if err := e.provisionVolumes(ctx, in, instanceID, manifest); err != nil {
			return err
		}
	}

	if in.IdleShutdown != nil {
		if err := e.ensureAlarm(ctx, in, instanceID, manifest); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) provisionVolumes(ctx context.Context, in *spec.Instance, instanceID string, manifest *Manifest) error {
	az, err := e.availabilityZone(ctx, instanceID)
	if err != nil {
		return err
	}

	for _, v := range in.Volumes {
		device := v.DeviceOrDefault()
		volumeID, err := e.gw.CreateVolume(ctx, cloud.CreateVolumeParams{
			Name:             fmt.Sprintf("%s-%s", in.Name, path.Base(device)),
			AvailabilityZone: az,
			SizeGB:           v.SizeGB,
			Type:             v.TypeOrDefault(),
			IOPS:             v.IOPS,
			Encrypted:        v.Encrypted,
			Tags:             e.standardTags(in.Tags),
		})
		if err != nil {
			return err
		}
		manifest.AddVolume(volumeID)

		if err := e.gw.WaitVolumeAvailable(ctx, volumeID); err != nil {
			return err
		}
		if err := e.gw.AttachVolume(ctx, volumeID, instanceID, device); err != nil {
			return err
		}
	}
	return nil
}

// ensureAlarm creates the idle-shutdown alarm unless one with the derived
// name already exists. A pre-existing alarm is reused and deliberately kept
// out of the manifest: this run did not create it, so rollback must not
// delete it.
func (e *Engine) ensureAlarm(ctx context.Context, in *spec.Instance, instanceID string, manifest *Manifest) error {
	name := AlarmName(in.Name)
	existing, err := e.gw.DescribeAlarms(ctx, []string{name})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Info().Str("alarm", name).Msg("alarm already exists; reusing")
		return nil
	}

	err = e.gw.CreateAlarm(ctx, cloud.CreateAlarmParams{
		Name:              name,
		InstanceID:        instanceID,
		Threshold:         *in.IdleShutdown.CPUThreshold,
		EvaluationPeriods: EvaluationPeriods(in.IdleShutdown.EvaluationMinutes),
		Action:            in.IdleShutdown.ActionOrDefault(),
	})
	if err != nil {
		return err
	}
	manifest.AddAlarm(name)
	return nil
}

func (e *Engine) availabilityZone(ctx context.Context, instanceID string) (string, error) {
	instances, err := e.gw.DescribeInstances(ctx, cloud.InstanceFilter{IDs: []string{instanceID}})
	if err != nil {
		return "", err
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("instance %s not found while resolving availability zone", instanceID)
	}
	return instances[0].AvailabilityZone, nil
}

func (e *Engine) connections(ctx context.Context, ids []string) ([]ConnectionInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	instances, err := e.gw.DescribeInstances(ctx, cloud.InstanceFilter{IDs: ids})
	if err != nil {
		return nil, err
	}
	out := make([]ConnectionInfo, 0, len(instances))
	for _, inst := range instances {
		out = append(out, connectionInfo(inst))
	}
	return out, nil
}

package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"

	"github.com/stratus-dev/stratus/internal/cloud"
	"github.com/stratus-dev/stratus/internal/poll"
)

// CreateVolume creates a volume in the given availability zone and returns
// its id without waiting for it to become available.
func (c *Client) CreateVolume(ctx context.Context, p cloud.CreateVolumeParams) (string, error) {
	input := &ec2.CreateVolumeInput{
		AvailabilityZone: aws.String(p.AvailabilityZone),
		Size:             aws.Int32(int32(p.SizeGB)),
		VolumeType:       ec2types.VolumeType(p.Type),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeVolume,
			Tags:         tagList(p.Name, p.Tags),
		}},
	}
	// IOPS is only meaningful for gp3/io1/io2.
	switch p.Type {
	case "gp3", "io1", "io2":
		if p.IOPS > 0 {
			input.Iops = aws.Int32(int32(p.IOPS))
		}
	}
	if p.Encrypted {
		input.Encrypted = aws.Bool(true)
	}

	out, err := c.ec2.CreateVolume(ctx, input)
	if err != nil {
		return "", cloud.WrapOp("CreateVolume", err)
	}
	id := aws.ToString(out.VolumeId)
	log.Info().Str("volume_id", id).Str("az", p.AvailabilityZone).Int("size_gb", p.SizeGB).Msg("created volume")
	return id, nil
}

// WaitVolumeAvailable blocks until the volume reaches the available state.
// It is used both after creation and after a detach during rollback.
func (c *Client) WaitVolumeAvailable(ctx context.Context, id string) error {
	return poll.Until(ctx, fmt.Sprintf("volume %s available", id), poll.DefaultInterval, poll.DefaultAttempts,
		func(ctx context.Context) (bool, error) {
			out, err := c.ec2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{VolumeIds: []string{id}})
			if err != nil {
				return false, cloud.WrapOp("DescribeVolumes", err)
			}
			for _, v := range out.Volumes {
				if v.State == ec2types.VolumeStateAvailable {
					return true, nil
				}
				if v.State == ec2types.VolumeStateError {
					return false, cloud.WrapOp("DescribeVolumes",
						fmt.Errorf("volume %s entered error state", id))
				}
			}
			return false, nil
		})
}

// AttachVolume attaches a volume at the declared device path.
func (c *Client) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	_, err := c.ec2.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(device),
	})
	if err != nil {
		return cloud.WrapOp("AttachVolume", err)
	}
	log.Info().Str("volume_id", volumeID).Str("instance_id", instanceID).Str("device", device).Msg("attached volume")
	return nil
}

// DetachVolume detaches a volume from whatever instance holds it.
func (c *Client) DetachVolume(ctx context.Context, volumeID string) error {
	_, err := c.ec2.DetachVolume(ctx, &ec2.DetachVolumeInput{VolumeId: aws.String(volumeID)})
	if err != nil {
		return cloud.WrapOp("DetachVolume", err)
	}
	return nil
}

// DeleteVolume removes a volume. A volume that no longer exists is not an
// error; rollback may race instance termination cleanup.
func (c *Client) DeleteVolume(ctx context.Context, id string) error {
	_, err := c.ec2.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(id)})
	if err != nil {
		if apiErrorCode(err) == "InvalidVolume.NotFound" {
			return nil
		}
		return cloud.WrapOp("DeleteVolume", err)
	}
	log.Info().Str("volume_id", id).Msg("deleted volume")
	return nil
}

// DescribeVolumes returns flat records for the given ids; ids that no longer
// exist are simply absent from the result.
func (c *Client) DescribeVolumes(ctx context.Context, ids []string) ([]cloud.Volume, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	out, err := c.ec2.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{VolumeIds: ids})
	if err != nil {
		if apiErrorCode(err) == "InvalidVolume.NotFound" {
			return nil, nil
		}
		return nil, cloud.WrapOp("DescribeVolumes", err)
	}
	var result []cloud.Volume
	for _, v := range out.Volumes {
		vol := cloud.Volume{
			ID:     aws.ToString(v.VolumeId),
			State:  string(v.State),
			SizeGB: int(aws.ToInt32(v.Size)),
			Type:   string(v.VolumeType),
		}
		for _, a := range v.Attachments {
			vol.Attachments = append(vol.Attachments, cloud.Attachment{
				InstanceID: aws.ToString(a.InstanceId),
				Device:     aws.ToString(a.Device),
			})
		}
		result = append(result, vol)
	}
	return result, nil
}

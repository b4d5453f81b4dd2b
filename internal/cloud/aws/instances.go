package aws

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog/log"

	"github.com/stratus-dev/stratus/internal/cloud"
	"github.com/stratus-dev/stratus/internal/poll"
)

// CreateInstance launches a single instance and returns its id without
// waiting for it to run.
func (c *Client) CreateInstance(ctx context.Context, p cloud.CreateInstanceParams) (string, error) {
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(p.ImageID),
		InstanceType: ec2types.InstanceType(p.InstanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags:         tagList(p.Name, p.Tags),
		}},
	}
	if p.KeyName != "" {
		input.KeyName = aws.String(p.KeyName)
	}
	if len(p.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = p.SecurityGroupIDs
	}
	if p.SubnetID != "" {
		input.SubnetId = aws.String(p.SubnetID)
	}
	if p.IAMRole != "" {
		input.IamInstanceProfile = &ec2types.IamInstanceProfileSpecification{
			Name: aws.String(p.IAMRole),
		}
	}
	if p.SpotMarket {
		spot := &ec2types.SpotMarketOptions{SpotInstanceType: ec2types.SpotInstanceTypeOneTime}
		if p.SpotMaxPrice != "" {
			spot.MaxPrice = aws.String(p.SpotMaxPrice)
		}
		input.InstanceMarketOptions = &ec2types.InstanceMarketOptionsRequest{
			MarketType:  ec2types.MarketTypeSpot,
			SpotOptions: spot,
		}
	}
	if p.UserData != "" {
		// The EC2 API requires user data pre-encoded.
		input.UserData = aws.String(base64.StdEncoding.EncodeToString([]byte(p.UserData)))
	}

	out, err := c.ec2.RunInstances(ctx, input)
	if err != nil {
		return "", cloud.WrapOp("RunInstances", err)
	}
	if len(out.Instances) == 0 || out.Instances[0].InstanceId == nil {
		return "", cloud.WrapOp("RunInstances", fmt.Errorf("no instance returned for %s", p.Name))
	}
	id := *out.Instances[0].InstanceId
	log.Info().Str("instance_id", id).Str("name", p.Name).Msg("created instance")
	return id, nil
}

// WaitInstanceRunning blocks until the instance reaches the running state.
func (c *Client) WaitInstanceRunning(ctx context.Context, id string) error {
	return poll.Until(ctx, fmt.Sprintf("instance %s running", id), poll.DefaultInterval, poll.DefaultAttempts,
		func(ctx context.Context) (bool, error) {
			out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{id}})
			if err != nil {
				return false, cloud.WrapOp("DescribeInstances", err)
			}
			state := instanceState(out)
			switch state {
			case ec2types.InstanceStateNameRunning:
				return true, nil
			case ec2types.InstanceStateNameTerminated, ec2types.InstanceStateNameShuttingDown:
				return false, cloud.WrapOp("DescribeInstances",
					fmt.Errorf("instance %s entered state %s while waiting for running", id, state))
			default:
				return false, nil
			}
		})
}

// DescribeInstances resolves the filter into flat instance records.
func (c *Client) DescribeInstances(ctx context.Context, f cloud.InstanceFilter) ([]cloud.Instance, error) {
	input := &ec2.DescribeInstancesInput{}
	if len(f.IDs) > 0 {
		input.InstanceIds = f.IDs
	}
	if f.Name != "" {
		input.Filters = append(input.Filters, ec2types.Filter{
			Name: aws.String("tag:Name"), Values: []string{f.Name},
		})
	}
	if len(f.States) > 0 {
		input.Filters = append(input.Filters, ec2types.Filter{
			Name: aws.String("instance-state-name"), Values: f.States,
		})
	}

	var result []cloud.Instance
	paginator := ec2.NewDescribeInstancesPaginator(c.ec2, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, cloud.WrapOp("DescribeInstances", err)
		}
		for _, res := range page.Reservations {
			for _, inst := range res.Instances {
				result = append(result, convertInstance(inst))
			}
		}
	}
	return result, nil
}

// TerminateInstances issues termination without waiting.
func (c *Client) TerminateInstances(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: ids})
	if err != nil {
		return cloud.WrapOp("TerminateInstances", err)
	}
	log.Info().Strs("instance_ids", ids).Msg("terminated instances")
	return nil
}

// WaitInstancesTerminated blocks until every instance reports terminated.
func (c *Client) WaitInstancesTerminated(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return poll.Until(ctx, "instances terminated", poll.TerminateInterval, poll.TerminateAttempts,
		func(ctx context.Context) (bool, error) {
			out, err := c.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: ids})
			if err != nil {
				return false, cloud.WrapOp("DescribeInstances", err)
			}
			for _, res := range out.Reservations {
				for _, inst := range res.Instances {
					if inst.State == nil || inst.State.Name != ec2types.InstanceStateNameTerminated {
						return false, nil
					}
				}
			}
			return true, nil
		})
}

// ConsoleOutput returns the decoded console text for an instance.
func (c *Client) ConsoleOutput(ctx context.Context, instanceID string) (string, error) {
	out, err := c.ec2.GetConsoleOutput(ctx, &ec2.GetConsoleOutputInput{InstanceId: aws.String(instanceID)})
	if err != nil {
		return "", cloud.WrapOp("GetConsoleOutput", err)
	}
	if out.Output == nil {
		return "", nil
	}
	decoded, err := base64.StdEncoding.DecodeString(*out.Output)
	if err != nil {
		// Some platforms return plain text already.
		return *out.Output, nil
	}
	return string(decoded), nil
}

func instanceState(out *ec2.DescribeInstancesOutput) ec2types.InstanceStateName {
	for _, res := range out.Reservations {
		for _, inst := range res.Instances {
			if inst.State != nil {
				return inst.State.Name
			}
		}
	}
	return ""
}

func convertInstance(inst ec2types.Instance) cloud.Instance {
	out := cloud.Instance{
		ID:        aws.ToString(inst.InstanceId),
		State:     string(ec2types.InstanceStateNamePending),
		PublicIP:  aws.ToString(inst.PublicIpAddress),
		PublicDNS: aws.ToString(inst.PublicDnsName),
		PrivateIP: aws.ToString(inst.PrivateIpAddress),
		KeyName:   aws.ToString(inst.KeyName),
	}
	if inst.State != nil {
		out.State = string(inst.State.Name)
	}
	if inst.Placement != nil {
		out.AvailabilityZone = aws.ToString(inst.Placement.AvailabilityZone)
	}
	for _, tag := range inst.Tags {
		if aws.ToString(tag.Key) == "Name" {
			out.Name = aws.ToString(tag.Value)
		}
	}
	for _, bdm := range inst.BlockDeviceMappings {
		if bdm.Ebs == nil {
			continue
		}
		out.BlockDevices = append(out.BlockDevices, cloud.BlockDevice{
			Device:   aws.ToString(bdm.DeviceName),
			VolumeID: aws.ToString(bdm.Ebs.VolumeId),
		})
	}
	return out
}

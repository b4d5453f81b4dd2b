package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog/log"

	"github.com/stratus-dev/stratus/internal/cloud"
)

// alarmPeriodSeconds is the fixed CPUUtilization metric period.
const alarmPeriodSeconds = 300

// CreateAlarm creates a low-CPU alarm whose action stops or terminates the
// instance. Missing data is treated as not breaching so a freshly booted
// instance with no datapoints yet cannot trigger a shutdown.
func (c *Client) CreateAlarm(ctx context.Context, p cloud.CreateAlarmParams) error {
	action := fmt.Sprintf("arn:aws:automate:%s:ec2:%s", c.region, p.Action)
	_, err := c.cw.PutMetricAlarm(ctx, &cloudwatch.PutMetricAlarmInput{
		AlarmName:          aws.String(p.Name),
		AlarmDescription:   aws.String(fmt.Sprintf("%s instance %s when CPU stays below %v%%", p.Action, p.InstanceID, p.Threshold)),
		Namespace:          aws.String("AWS/EC2"),
		MetricName:         aws.String("CPUUtilization"),
		Statistic:          cwtypes.StatisticAverage,
		Period:             aws.Int32(alarmPeriodSeconds),
		EvaluationPeriods:  aws.Int32(int32(p.EvaluationPeriods)),
		Threshold:          aws.Float64(p.Threshold),
		ComparisonOperator: cwtypes.ComparisonOperatorLessThanThreshold,
		TreatMissingData:   aws.String("notBreaching"),
		AlarmActions:       []string{action},
		Dimensions: []cwtypes.Dimension{{
			Name:  aws.String("InstanceId"),
			Value: aws.String(p.InstanceID),
		}},
	})
	if err != nil {
		return cloud.WrapOp("PutMetricAlarm", err)
	}
	log.Info().Str("alarm", p.Name).Str("instance_id", p.InstanceID).Str("action", p.Action).Msg("created idle-shutdown alarm")
	return nil
}

// DescribeAlarms returns the alarms that exist among the given names.
func (c *Client) DescribeAlarms(ctx context.Context, names []string) ([]cloud.Alarm, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out, err := c.cw.DescribeAlarms(ctx, &cloudwatch.DescribeAlarmsInput{AlarmNames: names})
	if err != nil {
		return nil, cloud.WrapOp("DescribeAlarms", err)
	}
	var result []cloud.Alarm
	for _, a := range out.MetricAlarms {
		alarm := cloud.Alarm{Name: aws.ToString(a.AlarmName)}
		for _, d := range a.Dimensions {
			if aws.ToString(d.Name) == "InstanceId" {
				alarm.InstanceID = aws.ToString(d.Value)
			}
		}
		result = append(result, alarm)
	}
	return result, nil
}

// DeleteAlarms removes the named alarms; unknown names are ignored by the API.
func (c *Client) DeleteAlarms(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}
	_, err := c.cw.DeleteAlarms(ctx, &cloudwatch.DeleteAlarmsInput{AlarmNames: names})
	if err != nil {
		return cloud.WrapOp("DeleteAlarms", err)
	}
	log.Info().Strs("alarms", names).Msg("deleted alarms")
	return nil
}

package cloud

import "context"

// Instance is the gateway's view of a live compute instance.
type Instance struct {
	ID               string
	Name             string
	State            string
	AvailabilityZone string
	PublicIP         string
	PublicDNS        string
	PrivateIP        string
	KeyName          string
	BlockDevices     []BlockDevice
}

// BlockDevice is one attached volume as reported by the instance.
type BlockDevice struct {
	Device   string
	VolumeID string
}

// Volume is the gateway's view of a block-storage volume.
type Volume struct {
	ID          string
	State       string
	SizeGB      int
	Type        string
	Attachments []Attachment
}

// Attachment records which instance a volume is attached to.
type Attachment struct {
	InstanceID string
	Device     string
}

// Alarm is the gateway's view of a threshold alarm.
type Alarm struct {
	Name       string
	InstanceID string
}

// CreateInstanceParams carries everything needed to launch one instance.
type CreateInstanceParams struct {
	Name             string
	ImageID          string
	InstanceType     string
	KeyName          string
	SecurityGroupIDs []string
	SubnetID         string
	IAMRole          string
	SpotMarket       bool
	SpotMaxPrice     string
	Tags             map[string]string
	UserData         string
}

// CreateVolumeParams carries everything needed to create one volume.
type CreateVolumeParams struct {
	Name             string
	AvailabilityZone string
	SizeGB           int
	Type             string
	IOPS             int
	Encrypted        bool
	Tags             map[string]string
}

// CreateAlarmParams declares a low-CPU alarm acting on a single instance.
type CreateAlarmParams struct {
	Name              string
	InstanceID        string
	Threshold         float64
	EvaluationPeriods int
	Action            string // "stop" or "terminate"
}

// InstanceFilter selects instances by id, Name tag, and lifecycle states.
// Zero-value fields are ignored.
type InstanceFilter struct {
	IDs    []string
	Name   string
	States []string
}

// LiveStates are the instance states that count as "exists" for idempotency
// and teardown purposes. Terminated and shutting-down are deliberately
// excluded.
var LiveStates = []string{"running", "pending", "stopped"}

// Gateway is the cloud capability the orchestrator drives. Implementations
// translate these calls into provider API requests; all failures surface as
// *RemoteOpError. Wait methods block until the resource reaches the expected
// state or a bounded attempt budget is exhausted.
type Gateway interface {
	CreateInstance(ctx context.Context, p CreateInstanceParams) (string, error)
	WaitInstanceRunning(ctx context.Context, id string) error
	DescribeInstances(ctx context.Context, f InstanceFilter) ([]Instance, error)
	TerminateInstances(ctx context.Context, ids []string) error
	WaitInstancesTerminated(ctx context.Context, ids []string) error

	CreateVolume(ctx context.Context, p CreateVolumeParams) (string, error)
	WaitVolumeAvailable(ctx context.Context, id string) error
	AttachVolume(ctx context.Context, volumeID, instanceID, device string) error
	DetachVolume(ctx context.Context, volumeID string) error
	DeleteVolume(ctx context.Context, id string) error
	DescribeVolumes(ctx context.Context, ids []string) ([]Volume, error)

	CreateAlarm(ctx context.Context, p CreateAlarmParams) error
	DescribeAlarms(ctx context.Context, names []string) ([]Alarm, error)
	DeleteAlarms(ctx context.Context, names []string) error

	ConsoleOutput(ctx context.Context, instanceID string) (string, error)
}

package spec

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Specification is the top-level declarative document: an ordered list of
// instance declarations plus an optional AWS profile selector.
type Specification struct {
	Profile   string     `yaml:"profile,omitempty"`
	Instances []Instance `yaml:"instances"`
}

// Instance declares one compute instance. Name doubles as the idempotency key
// (matched against the Name tag of live instances).
type Instance struct {
	Name             string            `yaml:"name"`
	InstanceType     string            `yaml:"instance_type"`
	ImageID          string            `yaml:"image_id"`
	KeyName          string            `yaml:"key_name,omitempty"`
	SecurityGroupIDs []string          `yaml:"security_group_ids,omitempty"`
	SubnetID         string            `yaml:"subnet_id,omitempty"`
	MarketType       string            `yaml:"market_type,omitempty"`
	SpotMaxPrice     string            `yaml:"spot_max_price,omitempty"`
	Tags             map[string]string `yaml:"tags,omitempty"`
	Bootstrap        *Bootstrap        `yaml:"bootstrap,omitempty"`
	IdleShutdown     *IdleShutdown     `yaml:"idle_shutdown,omitempty"`
	// IAMRole is a pointer so that an explicitly empty value can be rejected
	// while an absent one is simply skipped.
	IAMRole *string  `yaml:"iam_role,omitempty"`
	Volumes []Volume `yaml:"volumes,omitempty"`
}

// Bootstrap describes where the user-supplied boot script comes from.
// Exactly one of ScriptPath or InlineScript must be set.
type Bootstrap struct {
	ScriptPath   string `yaml:"script_path,omitempty"`
	InlineScript string `yaml:"inline_script,omitempty"`
}

// IdleShutdown declares a CPU-utilization alarm that stops or terminates the
// instance after a sustained idle period.
type IdleShutdown struct {
	// CPUThreshold is a pointer because 0 is a legal threshold and the field
	// is required when the policy is declared.
	CPUThreshold      *float64 `yaml:"cpu_threshold"`
	EvaluationMinutes int      `yaml:"evaluation_minutes"`
	Action            string   `yaml:"action,omitempty"`
}

// Volume declares one block-storage volume attached to its parent instance.
type Volume struct {
	SizeGB       int    `yaml:"size_gb"`
	Type         string `yaml:"type,omitempty"`
	IOPS         int    `yaml:"iops,omitempty"`
	Encrypted    bool   `yaml:"encrypted,omitempty"`
	Device       string `yaml:"device,omitempty"`
	MountPoint   string `yaml:"mount_point,omitempty"`
	Filesystem   string `yaml:"filesystem,omitempty"`
	MountOptions string `yaml:"mount_options,omitempty"`
}

// Defaults applied after parsing, before validation.
const (
	DefaultMarketType   = "on-demand"
	DefaultAction       = "stop"
	DefaultVolumeType   = "gp3"
	DefaultDevice       = "/dev/sdf"
	DefaultFilesystem   = "ext4"
	DefaultMountOptions = "defaults"
)

// MarketTypeOrDefault returns the declared market type or on-demand.
func (in *Instance) MarketTypeOrDefault() string {
	if in.MarketType == "" {
		return DefaultMarketType
	}
	return in.MarketType
}

// ActionOrDefault returns the declared idle-shutdown action or stop.
func (is *IdleShutdown) ActionOrDefault() string {
	if is.Action == "" {
		return DefaultAction
	}
	return is.Action
}

// TypeOrDefault returns the declared volume type or gp3.
func (v *Volume) TypeOrDefault() string {
	if v.Type == "" {
		return DefaultVolumeType
	}
	return v.Type
}

// DeviceOrDefault returns the declared device path or /dev/sdf.
func (v *Volume) DeviceOrDefault() string {
	if v.Device == "" {
		return DefaultDevice
	}
	return v.Device
}

// FilesystemOrDefault returns the declared filesystem or ext4.
func (v *Volume) FilesystemOrDefault() string {
	if v.Filesystem == "" {
		return DefaultFilesystem
	}
	return v.Filesystem
}

// MountOptionsOrDefault returns the declared mount options or "defaults".
func (v *Volume) MountOptionsOrDefault() string {
	if v.MountOptions == "" {
		return DefaultMountOptions
	}
	return v.MountOptions
}

// UserScript resolves the bootstrap body: either the inline text or the
// contents of the referenced file.
func (b *Bootstrap) UserScript() (string, error) {
	if b.InlineScript != "" {
		return b.InlineScript, nil
	}
	data, err := os.ReadFile(b.ScriptPath)
	if err != nil {
		return "", fmt.Errorf("read bootstrap script: %w", err)
	}
	return string(data), nil
}

// Load reads and parses a specification file. It does not validate; callers
// run Validate before acting on the result.
func Load(path string) (*Specification, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open specification: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a specification from a reader.
func Parse(r io.Reader) (*Specification, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read specification: %w", err)
	}
	var s Specification
	if err := yaml.Unmarshal(content, &s); err != nil {
		return nil, fmt.Errorf("parse specification: %w", err)
	}
	return &s, nil
}

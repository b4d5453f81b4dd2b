package spec

import (
	"fmt"
	"strings"
)

// ValidationError describes a malformed specification. Instance is the index
// of the offending instance declaration, or -1 for top-level problems.
type ValidationError struct {
	Instance int
	Field    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.Instance < 0 {
		return fmt.Sprintf("invalid specification: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid specification: instance %d: %s: %s", e.Instance, e.Field, e.Message)
}

var volumeTypes = map[string]bool{
	"gp2": true, "gp3": true, "io1": true, "io2": true, "st1": true, "sc1": true,
}

var filesystems = map[string]bool{
	"ext4": true, "xfs": true, "btrfs": true,
}

// reservedMountPoints are system paths a declared volume may never shadow.
var reservedMountPoints = map[string]bool{
	"/": true, "/boot": true, "/etc": true, "/usr": true,
	"/bin": true, "/sbin": true, "/lib": true, "/lib64": true,
}

// Validate checks the specification and returns the first violation found.
// It is a pure function: no remote calls, no mutation.
func Validate(s *Specification) error {
	if len(s.Instances) == 0 {
		return &ValidationError{Instance: -1, Field: "instances", Message: "missing required field"}
	}
	for i := range s.Instances {
		if err := validateInstance(i, &s.Instances[i]); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAll collects the first violation of every instance, so a caller can
// report more than one problem at once. The top-level instances check still
// short-circuits.
func ValidateAll(s *Specification) []error {
	if len(s.Instances) == 0 {
		return []error{&ValidationError{Instance: -1, Field: "instances", Message: "missing required field"}}
	}
	var errs []error
	for i := range s.Instances {
		if err := validateInstance(i, &s.Instances[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func validateInstance(i int, in *Instance) error {
	for _, f := range []struct{ name, value string }{
		{"name", in.Name},
		{"instance_type", in.InstanceType},
		{"image_id", in.ImageID},
	} {
		if f.value == "" {
			return &ValidationError{Instance: i, Field: f.name, Message: "missing required field"}
		}
	}

	if in.Bootstrap != nil {
		hasPath := in.Bootstrap.ScriptPath != ""
		hasInline := in.Bootstrap.InlineScript != ""
		if hasPath == hasInline {
			return &ValidationError{Instance: i, Field: "bootstrap",
				Message: "exactly one of script_path or inline_script must be set"}
		}
	}

	switch in.MarketTypeOrDefault() {
	case "on-demand", "spot":
	default:
		return &ValidationError{Instance: i, Field: "market_type",
			Message: fmt.Sprintf("must be on-demand or spot, got %q", in.MarketType)}
	}

	if is := in.IdleShutdown; is != nil {
		if is.CPUThreshold == nil {
			return &ValidationError{Instance: i, Field: "idle_shutdown.cpu_threshold", Message: "missing required field"}
		}
		if *is.CPUThreshold < 0 || *is.CPUThreshold > 100 {
			return &ValidationError{Instance: i, Field: "idle_shutdown.cpu_threshold",
				Message: fmt.Sprintf("must be within [0,100], got %v", *is.CPUThreshold)}
		}
		if is.EvaluationMinutes <= 0 {
			return &ValidationError{Instance: i, Field: "idle_shutdown.evaluation_minutes",
				Message: "must be a positive integer"}
		}
		switch is.ActionOrDefault() {
		case "stop", "terminate":
		default:
			return &ValidationError{Instance: i, Field: "idle_shutdown.action",
				Message: fmt.Sprintf("must be stop or terminate, got %q", is.Action)}
		}
	}

	if in.IAMRole != nil && *in.IAMRole == "" {
		return &ValidationError{Instance: i, Field: "iam_role", Message: "must be a non-empty string"}
	}

	for vi := range in.Volumes {
		if err := validateVolume(i, vi, &in.Volumes[vi]); err != nil {
			return err
		}
	}
	return nil
}

func validateVolume(i, vi int, v *Volume) error {
	field := func(name string) string { return fmt.Sprintf("volumes[%d].%s", vi, name) }

	if v.SizeGB <= 0 {
		return &ValidationError{Instance: i, Field: field("size_gb"), Message: "must be a positive integer"}
	}
	if v.Type != "" && !volumeTypes[v.Type] {
		return &ValidationError{Instance: i, Field: field("type"),
			Message: fmt.Sprintf("unsupported volume type %q", v.Type)}
	}
	if v.MountPoint != "" {
		if !strings.HasPrefix(v.MountPoint, "/") {
			return &ValidationError{Instance: i, Field: field("mount_point"),
				Message: fmt.Sprintf("must be an absolute path, got %q", v.MountPoint)}
		}
		if reservedMountPoints[v.MountPoint] {
			return &ValidationError{Instance: i, Field: field("mount_point"),
				Message: fmt.Sprintf("%s is a reserved system path", v.MountPoint)}
		}
	}
	if v.Filesystem != "" && !filesystems[v.Filesystem] {
		return &ValidationError{Instance: i, Field: field("filesystem"),
			Message: fmt.Sprintf("unsupported filesystem %q", v.Filesystem)}
	}
	if v.Device != "" && !strings.HasPrefix(v.Device, "/dev/") {
		return &ValidationError{Instance: i, Field: field("device"),
			Message: fmt.Sprintf("must be a path under /dev/, got %q", v.Device)}
	}
	return nil
}

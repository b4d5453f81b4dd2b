package spec

import (
	"errors"
	"strings"
	"testing"
)

func validSpec() *Specification {
	threshold := 10.0
	role := "dev-instance-role"
	return &Specification{
		Instances: []Instance{
			{
				Name:         "web-1",
				InstanceType: "t3.micro",
				ImageID:      "ami-12345678",
				KeyName:      "dev-key",
				MarketType:   "on-demand",
				Tags:         map[string]string{"env": "dev"},
				Bootstrap:    &Bootstrap{InlineScript: "echo hello"},
				IdleShutdown: &IdleShutdown{CPUThreshold: &threshold, EvaluationMinutes: 15},
				IAMRole:      &role,
				Volumes: []Volume{
					{SizeGB: 20, Type: "gp3", Device: "/dev/sdf", MountPoint: "/data", Encrypted: true},
				},
			},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := Validate(validSpec()); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
}

func TestValidateMissingInstances(t *testing.T) {
	err := Validate(&Specification{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Instance != -1 || verr.Field != "instances" {
		t.Fatalf("unexpected error location: %+v", verr)
	}
}

func TestValidateRejections(t *testing.T) {
	threshold := func(v float64) *float64 { return &v }
	strptr := func(s string) *string { return &s }

	cases := []struct {
		name    string
		mutate  func(*Specification)
		field   string
		message string
	}{
		{"missing name", func(s *Specification) { s.Instances[0].Name = "" }, "name", "missing"},
		{"missing instance_type", func(s *Specification) { s.Instances[0].InstanceType = "" }, "instance_type", "missing"},
		{"missing image_id", func(s *Specification) { s.Instances[0].ImageID = "" }, "image_id", "missing"},
		{"bootstrap both sources", func(s *Specification) {
			s.Instances[0].Bootstrap = &Bootstrap{ScriptPath: "/tmp/x.sh", InlineScript: "echo"}
		}, "bootstrap", "exactly one"},
		{"bootstrap neither source", func(s *Specification) {
			s.Instances[0].Bootstrap = &Bootstrap{}
		}, "bootstrap", "exactly one"},
		{"bad market type", func(s *Specification) { s.Instances[0].MarketType = "reserved" }, "market_type", "on-demand or spot"},
		{"missing cpu_threshold", func(s *Specification) {
			s.Instances[0].IdleShutdown = &IdleShutdown{EvaluationMinutes: 10}
		}, "idle_shutdown.cpu_threshold", "missing"},
		{"threshold too high", func(s *Specification) {
			s.Instances[0].IdleShutdown.CPUThreshold = threshold(101)
		}, "idle_shutdown.cpu_threshold", "[0,100]"},
		{"threshold negative", func(s *Specification) {
			s.Instances[0].IdleShutdown.CPUThreshold = threshold(-1)
		}, "idle_shutdown.cpu_threshold", "[0,100]"},
		{"zero evaluation minutes", func(s *Specification) {
			s.Instances[0].IdleShutdown.EvaluationMinutes = 0
		}, "idle_shutdown.evaluation_minutes", "positive"},
		{"bad action", func(s *Specification) {
			s.Instances[0].IdleShutdown.Action = "hibernate"
		}, "idle_shutdown.action", "stop or terminate"},
		{"empty iam_role", func(s *Specification) { s.Instances[0].IAMRole = strptr("") }, "iam_role", "non-empty"},
		{"non-positive volume size", func(s *Specification) { s.Instances[0].Volumes[0].SizeGB = 0 }, "volumes[0].size_gb", "positive"},
		{"bad volume type", func(s *Specification) { s.Instances[0].Volumes[0].Type = "magnetic" }, "volumes[0].type", "unsupported"},
		{"relative mount point", func(s *Specification) { s.Instances[0].Volumes[0].MountPoint = "data" }, "volumes[0].mount_point", "absolute"},
		{"reserved mount point", func(s *Specification) { s.Instances[0].Volumes[0].MountPoint = "/etc" }, "volumes[0].mount_point", "reserved"},
		{"bad filesystem", func(s *Specification) { s.Instances[0].Volumes[0].Filesystem = "zfs" }, "volumes[0].filesystem", "unsupported"},
		{"bad device", func(s *Specification) { s.Instances[0].Volumes[0].Device = "sdf" }, "volumes[0].device", "/dev/"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validSpec()
			tc.mutate(s)
			err := Validate(s)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Instance != 0 {
				t.Errorf("expected instance index 0, got %d", verr.Instance)
			}
			if verr.Field != tc.field {
				t.Errorf("expected field %q, got %q", tc.field, verr.Field)
			}
			if !strings.Contains(verr.Message, tc.message) {
				t.Errorf("expected message containing %q, got %q", tc.message, verr.Message)
			}
		})
	}
}

func TestValidateAllAggregates(t *testing.T) {
	s := validSpec()
	second := s.Instances[0]
	second.Name = "web-2"
	second.InstanceType = ""
	s.Instances = append(s.Instances, second)
	s.Instances[0].ImageID = ""

	errs := ValidateAll(s)
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	var verr *ValidationError
	if !errors.As(errs[1], &verr) || verr.Instance != 1 {
		t.Fatalf("expected second error at instance 1, got %v", errs[1])
	}
}

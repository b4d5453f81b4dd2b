package spec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleSpec = `profile: dev
instances:
  - name: worker-1
    instance_type: t3.large
    image_id: ami-0abcdef12
    market_type: spot
    spot_max_price: "0.05"
    tags:
      team: data
    bootstrap:
      inline_script: |
        pip install -r requirements.txt
    idle_shutdown:
      cpu_threshold: 5
      evaluation_minutes: 30
      action: terminate
    volumes:
      - size_gb: 100
        type: gp3
        iops: 4000
        encrypted: true
        device: /dev/sdg
        mount_point: /scratch
        filesystem: xfs
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spec.yaml")
	if err := os.WriteFile(path, []byte(sampleSpec), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Profile != "dev" {
		t.Errorf("expected profile dev, got %q", s.Profile)
	}
	if len(s.Instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(s.Instances))
	}

	in := s.Instances[0]
	if in.Name != "worker-1" || in.InstanceType != "t3.large" {
		t.Errorf("unexpected instance: %+v", in)
	}
	if in.MarketTypeOrDefault() != "spot" || in.SpotMaxPrice != "0.05" {
		t.Errorf("unexpected market options: %+v", in)
	}
	if in.IdleShutdown == nil || *in.IdleShutdown.CPUThreshold != 5 || in.IdleShutdown.ActionOrDefault() != "terminate" {
		t.Errorf("unexpected idle_shutdown: %+v", in.IdleShutdown)
	}
	if len(in.Volumes) != 1 {
		t.Fatalf("expected 1 volume, got %d", len(in.Volumes))
	}
	v := in.Volumes[0]
	if v.SizeGB != 100 || v.IOPS != 4000 || !v.Encrypted || v.MountPoint != "/scratch" {
		t.Errorf("unexpected volume: %+v", v)
	}
	if err := Validate(s); err != nil {
		t.Errorf("sample spec should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	v := Volume{SizeGB: 10}
	if v.TypeOrDefault() != "gp3" {
		t.Errorf("expected gp3, got %s", v.TypeOrDefault())
	}
	if v.DeviceOrDefault() != "/dev/sdf" {
		t.Errorf("expected /dev/sdf, got %s", v.DeviceOrDefault())
	}
	if v.FilesystemOrDefault() != "ext4" {
		t.Errorf("expected ext4, got %s", v.FilesystemOrDefault())
	}
	if v.MountOptionsOrDefault() != "defaults" {
		t.Errorf("expected defaults, got %s", v.MountOptionsOrDefault())
	}

	in := Instance{}
	if in.MarketTypeOrDefault() != "on-demand" {
		t.Errorf("expected on-demand, got %s", in.MarketTypeOrDefault())
	}
	is := IdleShutdown{}
	if is.ActionOrDefault() != "stop" {
		t.Errorf("expected stop, got %s", is.ActionOrDefault())
	}
}

func TestBootstrapUserScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boot.sh")
	if err := os.WriteFile(path, []byte("#!/bin/bash\necho from-file\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	fromFile := Bootstrap{ScriptPath: path}
	body, err := fromFile.UserScript()
	if err != nil {
		t.Fatalf("UserScript failed: %v", err)
	}
	if !strings.Contains(body, "from-file") {
		t.Errorf("unexpected body: %q", body)
	}

	inline := Bootstrap{InlineScript: "echo inline"}
	body, err = inline.UserScript()
	if err != nil || body != "echo inline" {
		t.Errorf("unexpected inline result: %q, %v", body, err)
	}

	missing := Bootstrap{ScriptPath: filepath.Join(t.TempDir(), "gone.sh")}
	if _, err := missing.UserScript(); err == nil {
		t.Error("expected error for missing script file")
	}
}

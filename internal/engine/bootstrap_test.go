package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/stratus-dev/stratus/internal/spec"
)

var bootstrapNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func TestBuildBootstrapEmptyWhenNothingDeclared(t *testing.T) {
	in := &spec.Instance{Name: "web-1"}
	script, err := buildBootstrap(in, bootstrapNow)
	if err != nil {
		t.Fatal(err)
	}
	if script != "" {
		t.Fatalf("expected empty user data, got %q", script)
	}

	// A volume without a mount point does not warrant a script either.
	in.Volumes = []spec.Volume{{SizeGB: 10}}
	script, err = buildBootstrap(in, bootstrapNow)
	if err != nil {
		t.Fatal(err)
	}
	if script != "" {
		t.Fatalf("expected empty user data for unmounted volume, got %q", script)
	}
}

func TestBuildBootstrapSectionOrder(t *testing.T) {
	inline := "echo hello from userland"
	in := &spec.Instance{
		Name:      "web-1",
		Bootstrap: &spec.Bootstrap{InlineScript: inline},
		Volumes: []spec.Volume{
			{SizeGB: 20, MountPoint: "/data", Device: "/dev/sdf"},
		},
	}

	script, err := buildBootstrap(in, bootstrapNow)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(script, "#!/bin/bash\n") {
		t.Fatal("script must start with a bash shebang")
	}

	logging := strings.Index(script, bootstrapLogFile)
	start := strings.Index(script, bootstrapStartMarker)
	mount := strings.Index(script, "mount -t ext4")
	user := strings.Index(script, inline)
	verify := strings.Index(script, "mountpoint -q /data")
	end := strings.Index(script, bootstrapEndMarker)

	for name, idx := range map[string]int{
		"logging setup": logging,
		"start marker":  start,
		"mount stanza":  mount,
		"user script":   user,
		"verification":  verify,
		"end marker":    end,
	} {
		if idx < 0 {
			t.Fatalf("section %q missing from script:\n%s", name, script)
		}
	}
	if !(logging < start && start < mount && mount < user && user < verify && verify < end) {
		t.Fatalf("sections out of order (logging=%d start=%d mount=%d user=%d verify=%d end=%d):\n%s",
			logging, start, mount, user, verify, end, script)
	}
}

func TestBuildBootstrapMountStanza(t *testing.T) {
	in := &spec.Instance{
		Name: "db-1",
		Volumes: []spec.Volume{
			{SizeGB: 100, MountPoint: "/var/lib/pg", Device: "/dev/sdg", Filesystem: "xfs", MountOptions: "noatime"},
		},
	}
	script, err := buildBootstrap(in, bootstrapNow)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"for i in $(seq 1 60); do [ -b /dev/sdg ] && break; sleep 2; done",
		"if ! blkid /dev/sdg >/dev/null 2>&1; then mkfs -t xfs /dev/sdg; fi",
		"mkdir -p /var/lib/pg",
		"mount -t xfs -o noatime /dev/sdg /var/lib/pg",
		"echo \"/dev/sdg /var/lib/pg xfs noatime 0 2\" >> /etc/fstab",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("missing %q in script:\n%s", want, script)
		}
	}
}

func TestBuildBootstrapMountsOnlyNoUserScript(t *testing.T) {
	in := &spec.Instance{
		Name:    "cache-1",
		Volumes: []spec.Volume{{SizeGB: 10, MountPoint: "/cache"}},
	}
	script, err := buildBootstrap(in, bootstrapNow)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(script, bootstrapStartMarker) || !strings.Contains(script, bootstrapEndMarker) {
		t.Fatal("markers must bracket a mounts-only script")
	}
	if strings.Contains(script, "# User-supplied script") {
		t.Fatal("no user-script section expected")
	}
	// Default device for the first volume.
	if !strings.Contains(script, "/dev/sdf") {
		t.Fatalf("expected default device in script:\n%s", script)
	}
}

package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/stratus-dev/stratus/internal/spec"
)

// Console-output markers. The monitor scrapes the text between them, so they
// are part of the bootstrap contract, not just decoration.
const (
	bootstrapStartMarker = "User Data Script Execution Started"
	bootstrapEndMarker   = "User Data Script Execution Completed"
	bootstrapLogFile     = "/var/log/user-data-execution.log"
)

// buildBootstrap assembles the user-data script for one instance. Sections
// appear in fixed order: header, logging setup, start marker, volume mount
// stanzas, the user-supplied body, mount verification, completion banner.
// It returns "" when the instance declares neither a bootstrap script nor a
// mounted volume.
func buildBootstrap(in *spec.Instance, now time.Time) (string, error) {
	var mounted []spec.Volume
	for _, v := range in.Volumes {
		if v.MountPoint != "" {
			mounted = append(mounted, v)
		}
	}
	if in.Bootstrap == nil && len(mounted) == 0 {
		return "", nil
	}

	userScript := ""
	if in.Bootstrap != nil {
		body, err := in.Bootstrap.UserScript()
		if err != nil {
			return "", err
		}
		userScript = body
	}

	var b strings.Builder
	fmt.Fprintf(&b, "#!/bin/bash\n")
	fmt.Fprintf(&b, "# Bootstrap for instance %s\n", in.Name)
	fmt.Fprintf(&b, "# Generated: %s\n\n", now.UTC().Format(time.RFC3339))

	fmt.Fprintf(&b, "LOG_FILE=%q\n", bootstrapLogFile)
	b.WriteString("exec > >(tee -a \"$LOG_FILE\")\nexec 2>&1\n\n")

	fmt.Fprintf(&b, "echo \"===== %s =====\"\n", bootstrapStartMarker)
	b.WriteString("echo \"Timestamp: $(date)\"\n")
	fmt.Fprintf(&b, "echo \"Instance Name: %s\"\n\n", in.Name)

	for _, v := range mounted {
		writeMountStanza(&b, v)
	}

	if userScript != "" {
		b.WriteString("# User-supplied script\n")
		b.WriteString(userScript)
		if !strings.HasSuffix(userScript, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(mounted) > 0 {
		writeMountVerification(&b, mounted)
	}

	fmt.Fprintf(&b, "echo \"%s\"\n", bootstrapEndMarker)
	b.WriteString("echo \"Timestamp: $(date)\"\n")
	return b.String(), nil
}

// writeMountStanza emits the format-if-needed, mount, and fstab steps for one
// volume, guarded by a device-presence poll: the attach call returns before
// the device node shows up inside the guest.
func writeMountStanza(b *strings.Builder, v spec.Volume) {
	device := v.DeviceOrDefault()
	fs := v.FilesystemOrDefault()
	opts := v.MountOptionsOrDefault()

	fmt.Fprintf(b, "# Mount %s at %s\n", device, v.MountPoint)
	fmt.Fprintf(b, "for i in $(seq 1 60); do [ -b %s ] && break; sleep 2; done\n", device)
	fmt.Fprintf(b, "if [ ! -b %s ]; then echo \"device %s never appeared\"; exit 1; fi\n", device, device)
	fmt.Fprintf(b, "if ! blkid %s >/dev/null 2>&1; then mkfs -t %s %s; fi\n", device, fs, device)
	fmt.Fprintf(b, "mkdir -p %s\n", v.MountPoint)
	fmt.Fprintf(b, "mount -t %s -o %s %s %s\n", fs, opts, device, v.MountPoint)
	fmt.Fprintf(b, "echo \"%s %s %s %s 0 2\" >> /etc/fstab\n\n", device, v.MountPoint, fs, opts)
}

// writeMountVerification asserts every declared mount point is active after
// the user script ran, so a script that unmounted or shadowed one fails loudly.
func writeMountVerification(b *strings.Builder, mounted []spec.Volume) {
	b.WriteString("# Verify declared mount points\n")
	for _, v := range mounted {
		fmt.Fprintf(b, "mountpoint -q %s || { echo \"mount verification failed: %s\"; exit 1; }\n", v.MountPoint, v.MountPoint)
	}
	b.WriteString("echo \"All declared mount points verified\"\n\n")
}

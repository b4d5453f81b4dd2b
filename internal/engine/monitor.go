package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/stratus-dev/stratus/internal/cloud"
	"github.com/stratus-dev/stratus/internal/spec"
)

// noBootstrapLogs is returned when the console output carries no marker.
const noBootstrapLogs = "No user data execution logs found in console output."

// BootstrapLogs fetches console output for every declared instance that
// carries a bootstrap descriptor and extracts the section between the
// execution markers. Per-instance failures land in the result map instead of
// aborting the sweep.
func (e *Engine) BootstrapLogs(ctx context.Context, s *spec.Specification) map[string]string {
	logs := make(map[string]string)
	for i := range s.Instances {
		in := &s.Instances[i]
		if in.Bootstrap == nil {
			continue
		}
		matches, err := e.gw.DescribeInstances(ctx, cloud.InstanceFilter{
			Name:   in.Name,
			States: []string{"running"},
		})
		if err != nil {
			logs[in.Name] = fmt.Sprintf("failed to find instance: %v", err)
			continue
		}
		if len(matches) == 0 {
			logs[in.Name] = "no running instance found"
			continue
		}
		for _, inst := range matches {
			console, err := e.gw.ConsoleOutput(ctx, inst.ID)
			if err != nil {
				logs[in.Name] = fmt.Sprintf("failed to retrieve logs: %v", err)
				continue
			}
			log.Info().Str("instance_id", inst.ID).Str("name", in.Name).Msg("retrieved console output")
			logs[in.Name] = ExtractBootstrapLog(console)
		}
	}
	return logs
}

// ExtractBootstrapLog returns the console lines between the bootstrap start
// and end markers, inclusive.
func ExtractBootstrapLog(console string) string {
	if !strings.Contains(console, bootstrapStartMarker) {
		return noBootstrapLogs
	}
	var captured []string
	capturing := false
	for _, line := range strings.Split(console, "\n") {
		if strings.Contains(line, bootstrapStartMarker) {
			capturing = true
		}
		if capturing {
			captured = append(captured, line)
		}
		if strings.Contains(line, bootstrapEndMarker) && capturing {
			break
		}
	}
	return strings.Join(captured, "\n")
}

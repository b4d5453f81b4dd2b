package engine

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/stratus-dev/stratus/internal/cloud"
	"github.com/stratus-dev/stratus/internal/spec"
)

// ExistingSet is the result of the idempotency probe: live resources whose
// Name tag matches a declared instance. It is read-only and used solely to
// decide skip-vs-create.
type ExistingSet struct {
	Instances []cloud.Instance
}

// Any reports whether the probe found at least one live match.
func (s *ExistingSet) Any() bool { return len(s.Instances) > 0 }

// Probe looks up non-terminated instances for every declared name. A describe
// failure for one name is logged and counted as "no match": a transient
// lookup error should not block provisioning, at the cost of best-effort
// rather than guaranteed idempotency.
func (e *Engine) Probe(ctx context.Context, s *spec.Specification) *ExistingSet {
	existing := &ExistingSet{}
	for i := range s.Instances {
		name := s.Instances[i].Name
		matches, err := e.gw.DescribeInstances(ctx, cloud.InstanceFilter{
			Name:   name,
			States: cloud.LiveStates,
		})
		if err != nil {
			log.Warn().Err(err).Str("name", name).Msg("existence check failed; treating as no match")
			continue
		}
		for _, inst := range matches {
			log.Info().Str("instance_id", inst.ID).Str("name", name).Str("state", inst.State).
				Msg("found existing instance")
			existing.Instances = append(existing.Instances, inst)
		}
	}
	return existing
}

// Connections returns connection info for every live instance matching a
// declared name. Lookup failures for individual names are skipped the same
// way the probe skips them.
func (e *Engine) Connections(ctx context.Context, s *spec.Specification) ([]ConnectionInfo, error) {
	existing := e.Probe(ctx, s)
	out := make([]ConnectionInfo, 0, len(existing.Instances))
	for _, inst := range existing.Instances {
		out = append(out, connectionInfo(inst))
	}
	return out, nil
}

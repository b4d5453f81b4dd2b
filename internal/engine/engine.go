// Package engine sequences the multi-step provisioning of declared instances,
// volumes and idle-shutdown alarms, and unwinds everything it created when a
// step fails.
package engine

import (
	"time"

	"github.com/stratus-dev/stratus/internal/cloud"
)

// CreatedByTag marks every resource this tool creates.
const CreatedByTag = "stratus"

// Engine drives a cloud gateway through provision, teardown and monitoring
// runs. It holds no per-run state; each run owns its manifest.
type Engine struct {
	gw  cloud.Gateway
	now func() time.Time
}

// New builds an engine over the given gateway.
func New(gw cloud.Gateway) *Engine {
	return &Engine{gw: gw, now: time.Now}
}

// ConnectionInfo is what a caller needs to reach a provisioned instance.
type ConnectionInfo struct {
	Name      string
	ID        string
	State     string
	PublicIP  string
	PublicDNS string
	PrivateIP string
	KeyName   string
}

// Result is the outcome of a successful (or short-circuited) provisioning run.
type Result struct {
	// AlreadyProvisioned is set when the idempotency gate found live matches
	// and the run created nothing.
	AlreadyProvisioned bool
	Existing           *ExistingSet
	Manifest           *Manifest
	Connections        []ConnectionInfo
}

func connectionInfo(inst cloud.Instance) ConnectionInfo {
	return ConnectionInfo{
		Name:      inst.Name,
		ID:        inst.ID,
		State:     inst.State,
		PublicIP:  inst.PublicIP,
		PublicDNS: inst.PublicDNS,
		PrivateIP: inst.PrivateIP,
		KeyName:   inst.KeyName,
	}
}

// standardTags merges the user's tags with the bookkeeping tags stamped on
// every created resource.
func (e *Engine) standardTags(userTags map[string]string) map[string]string {
	tags := map[string]string{
		"CreatedBy": CreatedByTag,
		"CreatedAt": e.now().UTC().Format(time.RFC3339),
	}
	for k, v := range userTags {
		tags[k] = v
	}
	return tags
}

package engine

// Manifest records, strictly in creation order, every resource the current
// run actually created. Pre-existing resources are never added, which is what
// makes handing it to rollback safe. It is a value owned by a single
// Provision call, never engine state.
type Manifest struct {
	InstanceIDs []string
	VolumeIDs   []string
	AlarmNames  []string
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest { return &Manifest{} }

// AddInstance appends an instance id created by this run.
func (m *Manifest) AddInstance(id string) { m.InstanceIDs = append(m.InstanceIDs, id) }

// AddVolume appends a volume id created by this run.
func (m *Manifest) AddVolume(id string) { m.VolumeIDs = append(m.VolumeIDs, id) }

// AddAlarm appends an alarm name created by this run.
func (m *Manifest) AddAlarm(name string) { m.AlarmNames = append(m.AlarmNames, name) }

// Empty reports whether the run created nothing.
func (m *Manifest) Empty() bool {
	return len(m.InstanceIDs) == 0 && len(m.VolumeIDs) == 0 && len(m.AlarmNames) == 0
}

package models

import (
	"strings"
	"time"
)

// PowerState is the locally tracked lifecycle state of an orchestrator-managed server.
type PowerState string

const (
	StateInstalling PowerState = "installing"
	StateOffline    PowerState = "offline"
	StateStarting   PowerState = "starting"
	StateRunning    PowerState = "running"
	StateRestarting PowerState = "restarting"
	StateStopping   PowerState = "stopping"
	// StateRemoved marks a record the orchestrator stopped reporting. Terminal
	// for power actions; the record itself is kept so telemetry history stays
	// linked to the same internal id.
	StateRemoved PowerState = "removed"
)

// Valid reports whether s is one of the defined power states.
func (s PowerState) Valid() bool {
	switch s {
	case StateInstalling, StateOffline, StateStarting, StateRunning,
		StateRestarting, StateStopping, StateRemoved:
		return true
	}
	return false
}

// PowerStateFromStatus maps the orchestrator's reported status string to the
// local enum. Unknown statuses fall back to offline; the next reconciliation
// pass corrects the state once the orchestrator reports something recognizable.
func PowerStateFromStatus(status string) PowerState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "running", "online":
		return StateRunning
	case "starting":
		return StateStarting
	case "stopping":
		return StateStopping
	case "restarting":
		return StateRestarting
	case "installing", "install_in_progress":
		return StateInstalling
	default:
		return StateOffline
	}
}

// ServerRecord is the local representation of one externally-managed server.
// The orchestrator owns existence and resource limits; internal id and owner
// are assigned on first creation and never change afterwards.
type ServerRecord struct {
	ID              int64      `json:"id"`
	ExternalID      string     `json:"external_id"`
	OwnerID         int64      `json:"owner_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Node            string     `json:"node"`
	GameType        string     `json:"game_type"`
	PowerState      PowerState `json:"power_state"`
	Host            string     `json:"host"`
	Port            int        `json:"port"`
	LimitMemoryMB   int64      `json:"limit_memory_mb"`
	LimitDiskMB     int64      `json:"limit_disk_mb"`
	LimitCPUPercent int        `json:"limit_cpu_percent"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Copy returns a deep copy so callers can mutate safely.
func (r *ServerRecord) Copy() *ServerRecord {
	if r == nil {
		return nil
	}
	dup := *r
	return &dup
}

// ApplyRemote overwrites every orchestrator-sourced field from a reported
// server. Internal id, owner id and creation time are deliberately untouched.
func (r *ServerRecord) ApplyRemote(remote RemoteServer) {
	r.Name = remote.Name
	r.Description = remote.Description
	r.Node = remote.Node
	r.GameType = remote.GameType
	r.Host = remote.Allocation.Host
	r.Port = remote.Allocation.Port
	r.LimitMemoryMB = remote.Limits.MemoryMB
	r.LimitDiskMB = remote.Limits.DiskMB
	r.LimitCPUPercent = remote.Limits.CPUPercent
	r.PowerState = PowerStateFromStatus(remote.Status)
}

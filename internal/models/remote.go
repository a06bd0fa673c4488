package models

// RemoteServer is the orchestrator's wire representation of one server as
// returned by its client API.
type RemoteServer struct {
	Identifier  string           `json:"identifier"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Node        string           `json:"node"`
	GameType    string           `json:"game_type"`
	Status      string           `json:"status"`
	Allocation  RemoteAllocation `json:"allocation"`
	Limits      RemoteLimits     `json:"limits"`
}

// RemoteAllocation is the network endpoint the orchestrator assigned.
type RemoteAllocation struct {
	Host string `json:"ip"`
	Port int    `json:"port"`
}

// RemoteLimits are the orchestrator-assigned resource ceilings.
type RemoteLimits struct {
	MemoryMB   int64 `json:"memory"`
	DiskMB     int64 `json:"disk"`
	CPUPercent int   `json:"cpu"`
}

// RemoteUsage is one point-in-time resource reading reported by the
// orchestrator for a server.
type RemoteUsage struct {
	State       string  `json:"current_state"`
	CPUPercent  float64 `json:"cpu_absolute"`
	MemoryBytes int64   `json:"memory_bytes"`
	DiskBytes   int64   `json:"disk_bytes"`
}

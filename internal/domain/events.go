package domain

import "time"

// Fault is an append-only record of a fault-definition hit reported by an
// agent. Checked is toggled by operator review, never by the core.
type Fault struct {
	ID                int64
	ComputerID        int64
	FaultDefinitionID int64
	Result            string
	Checked           bool
	CreatedAt         time.Time
}

// ErrorEvent is an append-only record of an agent- or protocol-reported
// error against a computer.
type ErrorEvent struct {
	ID          int64
	ComputerID  int64
	ProjectID   int64
	Description string
	Checked     bool
	CreatedAt   time.Time
}

// Migration records a computer entering a project.
type Migration struct {
	ID         int64
	ComputerID int64
	ProjectID  int64
	CreatedAt  time.Time
}

// StatusLog records a computer status transition.
type StatusLog struct {
	ID         int64
	ComputerID int64
	Status     string
	CreatedAt  time.Time
}

// Synchronization records one completed sync session.
type Synchronization struct {
	ID          int64
	ComputerID  int64
	UserID      int64
	ProjectID   int64
	Consumer    string
	PMSStatusOK bool
	Start       time.Time
	End         time.Time
}

// PackageHistory tracks install/uninstall times of a package on a computer.
// Switching project marks every installed row uninstalled "now".
type PackageHistory struct {
	ID            int64
	ComputerID    int64
	Package       string
	InstallDate   time.Time
	UninstallDate *time.Time
}

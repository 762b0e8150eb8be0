package domain

// Effect is a side effect decided by domain logic but executed by the
// caller after the owning unit of work commits. Keeping effects as data
// instead of firing them in place makes reconciliation testable and removes
// action-at-a-distance.
type Effect interface {
	effect()
}

// NotifyEffect asks the notifier collaborator to deliver a message.
type NotifyEffect struct {
	Message string
}

// ErrorEventEffect records a protocol or security error against a computer.
type ErrorEventEffect struct {
	ComputerID  int64
	ProjectID   int64
	Description string
}

// MigrationEffect records a computer entering a project.
type MigrationEffect struct {
	ComputerID int64
	ProjectID  int64
}

// StatusLogEffect records a status transition.
type StatusLogEffect struct {
	ComputerID int64
	Status     string
}

// UninstallHistoryEffect marks all installed package-history rows of a
// computer as uninstalled now (project switch invalidates the inventory).
type UninstallHistoryEffect struct {
	ComputerID int64
}

// RevokeTargetingEffect clears the computer's tags and every CID-scoped
// inclusion/exclusion membership.
type RevokeTargetingEffect struct {
	ComputerID int64
}

func (NotifyEffect) effect()           {}
func (ErrorEventEffect) effect()       {}
func (MigrationEffect) effect()        {}
func (StatusLogEffect) effect()        {}
func (UninstallHistoryEffect) effect() {}
func (RevokeTargetingEffect) effect()  {}

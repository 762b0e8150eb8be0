package domain

import "time"

// Computer statuses. "unsubscribed" is terminal for sync purposes: a
// computer in that state is rejected before any command processing.
const (
	StatusIntended     = "intended"
	StatusReserved     = "reserved"
	StatusUnknown      = "unknown"
	StatusInRepair     = "in repair"
	StatusAvailable    = "available"
	StatusUnsubscribed = "unsubscribed"
)

// ProductiveStatuses are the statuses in which a computer is expected to be
// syncing. A sync from a computer outside this set is worth a notification.
var ProductiveStatuses = []string{StatusIntended, StatusReserved, StatusUnknown}

// InProductiveStatus reports whether s is one of ProductiveStatuses.
func InProductiveStatus(s string) bool {
	for _, p := range ProductiveStatuses {
		if s == p {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known computer status.
func ValidStatus(s string) bool {
	switch s {
	case StatusIntended, StatusReserved, StatusUnknown,
		StatusInRepair, StatusAvailable, StatusUnsubscribed:
		return true
	}
	return false
}

// RevokesTargeting reports whether entering status clears the computer's
// tags and every CID-scoped inclusion/exclusion membership. Decommissioning
// revokes targeting everywhere the computer was explicitly referenced.
func RevokesTargeting(status string) bool {
	return status == StatusAvailable || status == StatusUnsubscribed
}

// Platform groups projects by operating system family.
type Platform struct {
	ID   int64
	Name string
}

// Project is one OS+architecture release line. Computers belong to exactly
// one project; deployments are scoped to it.
type Project struct {
	ID                    int64
	Name                  string
	Slug                  string
	PlatformID            int64
	PMS                   string
	AutoRegisterComputers bool
}

// Computer is one managed machine. SyncAttributes is replaced wholesale on
// each successful sync; TagIDs is operator-assigned and survives syncs.
type Computer struct {
	ID        int64
	UUID      string
	Name      string
	FQDN      string
	ProjectID int64
	Status    string
	IP        string
	ForwardIP string
	SyncUser  string

	SyncAttributes []int64
	TagIDs         []int64

	LastHardwareCapture *time.Time
	SyncStartDate       *time.Time
	SyncEndDate         *time.Time
	CreatedAt           time.Time
	Comment             string
}

// EffectiveAttributes is the attribute set used for eligibility: assigned
// tags plus the attributes captured on the last sync.
func (c *Computer) EffectiveAttributes() AttrSet {
	s := NewAttrSet(c.TagIDs...)
	s.Add(c.SyncAttributes...)
	return s
}

// HardwareCaptureDue reports whether a hardware inventory should be
// requested from the agent: never captured, or older than period.
func (c *Computer) HardwareCaptureDue(now time.Time, period time.Duration) bool {
	if c.LastHardwareCapture == nil {
		return true
	}
	return now.Sub(*c.LastHardwareCapture) > period
}

// User is a sync account reported by the agent (graphical login).
type User struct {
	ID       int64
	Name     string
	FullName string
}

// LogicalDevice is a printing device targeted at computers by attribute.
type LogicalDevice struct {
	ID           int64
	Name         string
	DeviceID     int64
	AttributeIDs []int64
}

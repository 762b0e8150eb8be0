// Package redis keeps the volatile sync-side state: per-deployment
// ok/error computer sets, daily sync counters and the admission queue.
// Everything here is rebuildable from the sqlite store; losing it costs
// statistics, not correctness.
package redis

import (
	"fmt"
	"time"
)

const (
	// keyPrefixDeployment namespaces the per-deployment result sets.
	keyPrefixDeployment = "migasfree:deployments:"
	// keyPrefixSyncStats namespaces the per-day sync counter hashes.
	keyPrefixSyncStats = "migasfree:stats:syncs:"
	// keyAdmissionQueue is the FIFO of computers waiting to sync.
	keyAdmissionQueue = "migasfree:admission:queue"
	// keyAdmissionMembers mirrors the queue as a set for dedup.
	keyAdmissionMembers = "migasfree:admission:members"
	// keyAdmissionAdmitted holds the computers cleared to sync now.
	keyAdmissionAdmitted = "migasfree:admission:admitted"
)

// DeploymentOKKey is the set of computers that completed their last sync
// of the deployment successfully.
func DeploymentOKKey(deploymentID int64) string {
	return fmt.Sprintf("%s%d:ok", keyPrefixDeployment, deploymentID)
}

// DeploymentErrorKey is the set of computers whose last sync of the
// deployment failed.
func DeploymentErrorKey(deploymentID int64) string {
	return fmt.Sprintf("%s%d:error", keyPrefixDeployment, deploymentID)
}

// SyncStatsKey is the counter hash for one calendar day.
func SyncStatsKey(day time.Time) string {
	return keyPrefixSyncStats + day.Format("20060102")
}

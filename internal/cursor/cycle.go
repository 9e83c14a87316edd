package cursor

import (
	"github.com/corvusfs/fatstream/ferr"
	"github.com/corvusfs/fatstream/internal/fat"
)

// snapshotInterval is how often the cycle guard remembers the current
// cluster, in steps. Brent's algorithm only needs O(1) extra state: one
// remembered cluster, refreshed periodically, is enough to detect any cycle
// within the traversal budget below.
const snapshotInterval = 256

// CheckCycle walks the chain starting at firstCluster for up to
// maxClusterNum+1 steps, the way the source's check_cyclic_fat does, and
// returns a Loop error if it finds a repeated cluster or fails to reach EOF
// within that budget. It operates on a throwaway cursor; nothing the caller
// holds is perturbed.
func CheckCycle(table *fat.Table, dataStartOff, bytesPerCluster int64, firstCluster fat.ClusterID, maxClusterNum fat.ClusterID) error {
	walker := New(table, dataStartOff, bytesPerCluster, firstCluster)

	var snapshot fat.ClusterID
	for i := int64(0); i <= int64(maxClusterNum); i++ {
		if walker.Cluster == snapshot {
			return ferr.New(ferr.Loop)
		}
		if i&0xFF == 0 {
			snapshot = walker.Cluster
		}
		if err := walker.Advance(); err != nil {
			// Reached EOF (or a structurally invalid entry, which the
			// safe wrapper already collapsed to the same outcome) before
			// exhausting the step budget: no cycle.
			return nil
		}
	}

	// Completed the whole budget without ever reaching EOF: must be cyclic.
	return ferr.New(ferr.Loop)
}

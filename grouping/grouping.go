// Package grouping collapses a day's flat timer list into display units. It is
// a pure transform: recomputed from scratch on every data change, no I/O.
package grouping

import (
	"fmt"
	"strconv"

	"tickdash/api"
)

// noProject is the grouping sentinel for timers without an associated project.
const noProject = "no-project"

// Cluster is a runtime-only group of timers sharing the same description and
// project within one date. It is never persisted.
type Cluster struct {
	Description string
	ProjectKey  string
	Entries     []api.Timer

	// AggregateDuration is the sum of member durations in minutes; members
	// without a duration contribute 0.
	AggregateDuration float64
}

// Representative returns the member whose id identifies the cluster in the
// expanded-groups set.
func (c *Cluster) Representative() api.Timer {
	return c.Entries[0]
}

// Key returns the composite expand/collapse key for the cluster within a date
// group.
func (c *Cluster) Key(date string) string {
	return fmt.Sprintf("%s/%d", date, c.Representative().ID)
}

// DisplayUnit is either a single timer row or a collapsible cluster, never
// both.
type DisplayUnit struct {
	Single  *api.Timer
	Cluster *Cluster
}

func (u DisplayUnit) IsCluster() bool {
	return u.Cluster != nil
}

type groupKey struct {
	description string
	project     string
}

// GroupTimers partitions records by (description, project), preserving the
// order keys first appear and the original relative order inside each
// partition. Partitions of size one are emitted as plain rows; larger ones
// become clusters with their aggregate duration. Idempotent by construction.
func GroupTimers(records []api.Timer) []DisplayUnit {
	partitions := make(map[groupKey][]api.Timer, len(records))
	order := make([]groupKey, 0, len(records))

	for _, record := range records {
		key := keyFor(record)
		if _, seen := partitions[key]; !seen {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], record)
	}

	units := make([]DisplayUnit, 0, len(order))
	for _, key := range order {
		members := partitions[key]
		if len(members) == 1 {
			single := members[0]
			units = append(units, DisplayUnit{Single: &single})
			continue
		}

		total := 0.0
		for _, member := range members {
			total += memberDuration(member)
		}
		units = append(units, DisplayUnit{Cluster: &Cluster{
			Description:       key.description,
			ProjectKey:        key.project,
			Entries:           members,
			AggregateDuration: total,
		}})
	}
	return units
}

func keyFor(record api.Timer) groupKey {
	key := groupKey{project: noProject}
	if record.Description != nil {
		key.description = *record.Description
	}
	if record.Project != nil {
		key.project = strconv.FormatInt(record.Project.ID, 10)
	}
	return key
}

func memberDuration(record api.Timer) float64 {
	if record.Duration == nil {
		return 0
	}
	return *record.Duration
}

package grouping

import (
	"reflect"
	"testing"

	"tickdash/api"
)

func timerWith(id int64, description string, projectID int64, duration float64) api.Timer {
	timer := api.Timer{ID: id, Duration: &duration}
	if description != "" {
		timer.Description = &description
	}
	if projectID > 0 {
		timer.Project = &api.Project{ID: projectID}
	}
	return timer
}

func TestGroupTimers_ClustersMatchingRecordsAndKeepsSingletons(t *testing.T) {
	t.Parallel()

	records := []api.Timer{
		timerWith(1, "Coding", 5, 30),
		timerWith(2, "Review", 5, 15),
		timerWith(3, "Coding", 5, 45),
	}

	units := GroupTimers(records)
	if len(units) != 2 {
		t.Fatalf("expected 2 display units, got %d", len(units))
	}

	cluster := units[0].Cluster
	if cluster == nil {
		t.Fatalf("expected first unit to be a cluster, got %+v", units[0])
	}
	if len(cluster.Entries) != 2 {
		t.Fatalf("expected cluster of 2, got %d", len(cluster.Entries))
	}
	if cluster.Entries[0].ID != 1 || cluster.Entries[1].ID != 3 {
		t.Fatalf("cluster lost original order: %+v", cluster.Entries)
	}
	if cluster.AggregateDuration != 75 {
		t.Fatalf("expected aggregate duration 75, got %v", cluster.AggregateDuration)
	}

	single := units[1].Single
	if single == nil || single.ID != 2 {
		t.Fatalf("expected second unit to be the Review singleton, got %+v", units[1])
	}
}

func TestGroupTimers_SeparatesSameDescriptionAcrossProjects(t *testing.T) {
	t.Parallel()

	records := []api.Timer{
		timerWith(1, "Coding", 5, 10),
		timerWith(2, "Coding", 6, 10),
		timerWith(3, "Coding", 0, 10),
	}

	units := GroupTimers(records)
	if len(units) != 3 {
		t.Fatalf("expected 3 singleton units, got %d", len(units))
	}
	for i, unit := range units {
		if unit.IsCluster() {
			t.Fatalf("unit %d unexpectedly clustered: %+v", i, unit)
		}
	}
}

func TestGroupTimers_MissingDurationCountsAsZero(t *testing.T) {
	t.Parallel()

	first := timerWith(1, "Coding", 5, 30)
	second := api.Timer{ID: 2, Description: first.Description, Project: &api.Project{ID: 5}}

	units := GroupTimers([]api.Timer{first, second})
	if len(units) != 1 || !units[0].IsCluster() {
		t.Fatalf("expected a single cluster, got %+v", units)
	}
	if got := units[0].Cluster.AggregateDuration; got != 30 {
		t.Fatalf("expected aggregate duration 30, got %v", got)
	}
}

func TestGroupTimers_PreservesFirstSeenKeyOrder(t *testing.T) {
	t.Parallel()

	records := []api.Timer{
		timerWith(1, "B", 2, 5),
		timerWith(2, "A", 1, 5),
		timerWith(3, "B", 2, 5),
		timerWith(4, "C", 3, 5),
	}

	units := GroupTimers(records)
	if len(units) != 3 {
		t.Fatalf("expected 3 units, got %d", len(units))
	}
	if !units[0].IsCluster() || units[0].Cluster.Description != "B" {
		t.Fatalf("expected B cluster first, got %+v", units[0])
	}
	if units[1].Single == nil || units[1].Single.ID != 2 {
		t.Fatalf("expected A singleton second, got %+v", units[1])
	}
	if units[2].Single == nil || units[2].Single.ID != 4 {
		t.Fatalf("expected C singleton third, got %+v", units[2])
	}
}

func TestGroupTimers_Idempotent(t *testing.T) {
	t.Parallel()

	records := []api.Timer{
		timerWith(1, "Coding", 5, 30),
		timerWith(2, "Coding", 5, 45),
		timerWith(3, "Review", 5, 15),
		timerWith(4, "", 0, 5),
	}

	first := GroupTimers(records)
	second := GroupTimers(records)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("grouping is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestClusterKeyUsesDateAndRepresentativeID(t *testing.T) {
	t.Parallel()

	units := GroupTimers([]api.Timer{
		timerWith(7, "Coding", 5, 30),
		timerWith(9, "Coding", 5, 45),
	})
	if len(units) != 1 || !units[0].IsCluster() {
		t.Fatalf("expected one cluster, got %+v", units)
	}
	if got := units[0].Cluster.Key("2024-01-01"); got != "2024-01-01/7" {
		t.Fatalf("unexpected cluster key: %q", got)
	}
}

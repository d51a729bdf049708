package cron

import (
	"slices"
	"testing"
)

func maintenanceJobs(t *testing.T) (Job, Job) {
	t.Helper()
	purge, err := NewGuestCartPurgeJob(&stubPurger{}, nil)
	if err != nil {
		t.Fatalf("purge job: %v", err)
	}
	sweep, err := NewSessionSweepJob(&stubSweeper{})
	if err != nil {
		t.Fatalf("sweep job: %v", err)
	}
	return purge, sweep
}

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	purge, sweep := maintenanceJobs(t)

	registry := NewRegistry(sweep, nil, purge)

	want := []string{SessionSweepJobName, GuestCartPurgeJobName}
	if got := registry.Names(); !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRegistryJobsReturnsCopy(t *testing.T) {
	purge, _ := maintenanceJobs(t)
	registry := NewRegistry(purge)

	jobs := registry.Jobs()
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("registry exposed its internal slice")
	}
}

func TestRegistrySkipsSecondJobWithSameName(t *testing.T) {
	purge, _ := maintenanceJobs(t)
	again, _ := maintenanceJobs(t)

	registry := NewRegistry(purge)
	registry.Register(again)

	if jobs := registry.Jobs(); len(jobs) != 1 || jobs[0] != purge {
		t.Fatalf("expected only the first purge job, got %v", registry.Names())
	}
}

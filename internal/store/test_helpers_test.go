package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestJob creates a job for scope on data source "ds_0".
func createTestJob(t *testing.T, s *Store, scope, jobID string) Job {
	t.Helper()
	job, err := s.CreateJob(context.Background(), scope, jobID, "ds_0")
	if err != nil {
		t.Fatalf("CreateJob() failed: %v", err)
	}
	return job
}

package metrics

import (
	"testing"
)

func TestLibraryMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"BuildRunsTotal", BuildRunsTotal},
		{"BuildPhaseDuration", BuildPhaseDuration},
		{"BuildBooksTotal", BuildBooksTotal},
		{"SearchRunsTotal", SearchRunsTotal},
		{"LibraryBooksTotal", LibraryBooksTotal},
		{"LibraryActivity", LibraryActivity},
		{"LibraryEventsTotal", LibraryEventsTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInfrastructureMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"DBQueryTotal", DBQueryTotal},
		{"DBTransactionDuration", DBTransactionDuration},
		{"CoverCacheEntries", CoverCacheEntries},
		{"WatcherTriggersTotal", WatcherTriggersTotal},
		{"FilesystemRetryAttempts", FilesystemRetryAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

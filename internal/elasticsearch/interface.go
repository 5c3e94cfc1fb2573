package elasticsearch

import "context"

// Interface defines the contract for Elasticsearch client operations
// This interface allows for easy mocking in tests
type Interface interface {
	// Cluster operations
	ClusterInfo(ctx context.Context) (*ClusterInfo, error)

	// Snapshot operations
	ListSnapshots(ctx context.Context, repository string) ([]Snapshot, error)
	RestoreIndex(ctx context.Context, repository, snapshotName, index string) (int, error)

	// Index operations
	IndexExists(ctx context.Context, indices string) (bool, error)
	DeleteIndex(ctx context.Context, index string) (int, error)
}

// Ensure *Client implements Interface
var _ Interface = (*Client)(nil)

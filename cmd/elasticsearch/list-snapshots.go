package elasticsearch

import (
	"context"
	"fmt"

	"github.com/stackvista/es-restore/internal/elasticsearch"
	"github.com/stackvista/es-restore/internal/output"
)

// listSnapshots prints the latest successful snapshots of the repository with their indices
func (s *session) listSnapshots(ctx context.Context) error {
	repository := s.cfg.Elasticsearch.Repository
	s.log.Debugf("Fetching snapshots from repository '%s'...", repository)

	snapshots, err := s.esClient.ListSnapshots(ctx, repository)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	latest := elasticsearch.LatestSuccessful(snapshots, elasticsearch.DefaultRecentSnapshots)
	if len(latest) == 0 {
		s.log.Errorf("Successfully queried the snapshot repository, but no snapshots were found!")
		return nil
	}

	s.log.Infof("Listing up to the latest five snapshots:")

	return s.formatter.PrintTable(snapshotTable(latest))
}

func snapshotTable(snapshots []elasticsearch.Snapshot) output.Table {
	table := output.Table{
		Headers: []string{"SNAPSHOT", "INDEXES"},
		Rows:    make([][]string, 0, len(snapshots)),
	}

	for _, snapshot := range snapshots {
		table.Rows = append(table.Rows, []string{snapshot.Snapshot, snapshot.JoinIndices()})
	}

	return table
}

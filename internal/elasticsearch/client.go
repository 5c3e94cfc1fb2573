// Package elasticsearch provides a client for the snapshot and index operations
// used by the restore tool: cluster info, snapshot listing, index existence,
// index deletion and snapshot restore.
package elasticsearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	// AllIndices is the operator-facing sentinel for every index
	AllIndices = "all"
	// allIndicesPattern is what AllIndices maps to at the API boundary
	allIndicesPattern = "_all"

	// DefaultConnectTimeout bounds the initial connectivity check
	DefaultConnectTimeout = 5 * time.Second
	// DefaultRequestTimeout bounds every other request
	DefaultRequestTimeout = 30 * time.Second
)

var (
	// ErrTransport means the request never produced an HTTP response
	ErrTransport = errors.New("transport failure")
	// ErrStatus means the cluster answered with a status the operation cannot accept
	ErrStatus = errors.New("unexpected response status")
	// ErrDecode means the response body was not the expected JSON document
	ErrDecode = errors.New("malformed response")
)

// Client represents an Elasticsearch client
type Client struct {
	es             *esapi.API
	connectTimeout time.Duration
	requestTimeout time.Duration
}

// ClientConfig holds the connection settings for NewClient.
type ClientConfig struct {
	URL            string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// ClusterInfo is the subset of the root endpoint document the tool relies on
type ClusterInfo struct {
	Name        string `json:"name"`
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
	Version     struct {
		Number string `json:"number"`
	} `json:"version"`
}

// Snapshot represents an Elasticsearch snapshot
type Snapshot struct {
	Snapshot         string   `json:"snapshot"`
	UUID             string   `json:"uuid"`
	Repository       string   `json:"repository"`
	State            string   `json:"state"`
	StartTime        string   `json:"start_time"`
	StartTimeMillis  int64    `json:"start_time_in_millis"`
	EndTime          string   `json:"end_time"`
	EndTimeMillis    int64    `json:"end_time_in_millis"`
	DurationInMillis int64    `json:"duration_in_millis"`
	Indices          []string `json:"indices"`
	Failures         []any    `json:"failures"`
	Shards           struct {
		Total      int `json:"total"`
		Failed     int `json:"failed"`
		Successful int `json:"successful"`
	} `json:"shards"`
}

// SnapshotsResponse represents the response from Elasticsearch snapshots API
type SnapshotsResponse struct {
	Snapshots []Snapshot `json:"snapshots"`
	Total     int        `json:"total"`
	Remaining int        `json:"remaining"`
}

// NewClient creates a new Elasticsearch client
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Elasticsearch URL: %w", err)
	}

	// No product check: clusters that omit X-Elastic-Product are accepted
	tp, err := elastictransport.New(elastictransport.Config{
		URLs:         []*url.URL{u},
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	return &Client{
		es:             esapi.New(tp),
		connectTimeout: cfg.ConnectTimeout,
		requestTimeout: cfg.RequestTimeout,
	}, nil
}

// NormalizeIndices trims every name of a comma-separated index list and drops empty entries
func NormalizeIndices(indices string) string {
	var names []string
	for _, name := range strings.Split(indices, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

// ResolveIndex normalizes an index list and maps the "all" sentinel to the _all pattern
func ResolveIndex(index string) string {
	index = NormalizeIndices(index)
	if index == AllIndices {
		return allIndicesPattern
	}
	return index
}

// ClusterInfo retrieves the cluster name and version from the root endpoint
func (c *Client) ClusterInfo(ctx context.Context) (*ClusterInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	res, err := c.es.Info(c.es.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to reach cluster: %w", ErrTransport, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: elasticsearch returned error: %s", ErrStatus, res.String())
	}

	var info ClusterInfo
	if err := json.NewDecoder(res.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: failed to decode cluster info: %w", ErrDecode, err)
	}
	if info.ClusterName == "" {
		return nil, fmt.Errorf("%w: cluster info has no cluster_name", ErrDecode)
	}

	return &info, nil
}

// ListSnapshots retrieves all snapshots from a repository in the order the cluster returns them
func (c *Client) ListSnapshots(ctx context.Context, repository string) ([]Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	res, err := c.es.Snapshot.Get(
		repository,
		[]string{allIndicesPattern},
		c.es.Snapshot.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get snapshots: %w", ErrTransport, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: elasticsearch returned error: %s", ErrStatus, res.String())
	}

	var snapshotsResp SnapshotsResponse
	if err := json.NewDecoder(res.Body).Decode(&snapshotsResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", ErrDecode, err)
	}

	return snapshotsResp.Snapshots, nil
}

// IndexExists reports whether at least one of the comma-separated indices exists.
// Names are checked one HEAD request at a time and the first 200 wins.
func (c *Client) IndexExists(ctx context.Context, indices string) (bool, error) {
	for _, name := range strings.Split(NormalizeIndices(indices), ",") {
		if name == "" {
			continue
		}

		exists, err := c.indexExists(ctx, ResolveIndex(name))
		if err != nil {
			return false, err
		}
		if exists {
			return true, nil
		}
	}

	return false, nil
}

func (c *Client) indexExists(ctx context.Context, index string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	res, err := c.es.Indices.Exists(
		[]string{index},
		c.es.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("%w: failed to check index %s existence: %w", ErrTransport, index, err)
	}
	defer res.Body.Close()

	return res.StatusCode == http.StatusOK, nil
}

// DeleteIndex deletes an index and returns the response status code.
// A non-nil error means no response was received and the status is meaningless.
func (c *Client) DeleteIndex(ctx context.Context, index string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	index = ResolveIndex(index)
	res, err := c.es.Indices.Delete(
		[]string{index},
		c.es.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete index %s: %w", ErrTransport, index, err)
	}
	defer res.Body.Close()

	return res.StatusCode, nil
}

// RestoreIndex requests a restore of index from a snapshot and returns the response status code.
// Restoring "all" sends an empty body so every index in the snapshot is restored.
func (c *Client) RestoreIndex(ctx context.Context, repository, snapshotName, index string) (int, error) {
	body, err := restoreBody(index)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	res, err := c.es.Snapshot.Restore(
		repository,
		snapshotName,
		c.es.Snapshot.Restore.WithContext(ctx),
		c.es.Snapshot.Restore.WithBody(strings.NewReader(body)),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to restore snapshot %s: %w", ErrTransport, snapshotName, err)
	}
	defer res.Body.Close()

	return res.StatusCode, nil
}

// restoreBody builds the JSON request body for a restore of index
func restoreBody(index string) (string, error) {
	body := map[string]interface{}{}
	if index = NormalizeIndices(index); index != AllIndices {
		body["indices"] = index
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	return string(bodyJSON), nil
}

// Package sink publishes node scores to external time-series systems.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/allisonaustin/cluster-vis/internal/contract"
	"github.com/allisonaustin/cluster-vis/schema"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the InfluxDB measurement node scores are written to.
const Measurement = "node_anomaly"

// maxBatch bounds the points sent in one write request.
const maxBatch = 5000

// InfluxOptions locates the target bucket.
type InfluxOptions struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink writes one point per node score through the blocking write API.
type InfluxSink struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
}

var _ contract.ScoreSink = &InfluxSink{} // Compile-time check

// NewInflux returns a sink for the given server and bucket.
func NewInflux(opts InfluxOptions) (*InfluxSink, error) {
	if opts.URL == "" {
		return nil, errors.New("influx URL is required")
	}
	if opts.Org == "" || opts.Bucket == "" {
		return nil, errors.New("influx org and bucket are required")
	}
	client := influxdb2.NewClient(opts.URL, opts.Token)
	return &InfluxSink{
		client: client,
		writer: client.WriteAPIBlocking(opts.Org, opts.Bucket),
	}, nil
}

// NewFromConfig returns a sink when an InfluxDB URL is configured, and nil otherwise.
func NewFromConfig(cfg *contract.Config) (contract.ScoreSink, error) {
	if cfg == nil || cfg.InfluxURL == "" {
		return nil, nil
	}
	s, err := NewInflux(InfluxOptions{URL: cfg.InfluxURL, Token: cfg.InfluxToken, Org: cfg.InfluxOrg, Bucket: cfg.InfluxBucket})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Points converts scores to points stamped with at.
func Points(at time.Time, scores []schema.NodeScore) []*write.Point {
	points := make([]*write.Point, 0, len(scores))
	for _, s := range scores {
		points = append(points, influxdb2.NewPoint(
			Measurement,
			map[string]string{"node": s.NodeID, "feature": s.Feature},
			map[string]any{"score": s.Score},
			at,
		))
	}
	return points
}

// Publish writes the scores, at most maxBatch points per request.
func (s *InfluxSink) Publish(ctx context.Context, at time.Time, scores []schema.NodeScore) error {
	points := Points(at, scores)
	for start := 0; start < len(points); start += maxBatch {
		end := min(start+maxBatch, len(points))
		if err := s.writer.WritePoint(ctx, points[start:end]...); err != nil {
			return fmt.Errorf("failed to write %d scores to influxdb: %w", end-start, err)
		}
	}
	return nil
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

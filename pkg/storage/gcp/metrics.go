package gcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	monitoring "cloud.google.com/go/monitoring/apiv3/v2"
	monitoringpb "cloud.google.com/go/monitoring/apiv3/v2/monitoringpb"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

const (
	// total_bytes is sampled once a day, so a shorter window can miss the last sample
	usageWindow = 72 * time.Hour
	usageMetric = "storage.googleapis.com/storage/v2/total_bytes"
)

// ErrMetricsNotFound means the bucket reported no usage inside the window, which is normal for new buckets
var ErrMetricsNotFound = errors.New("usage metrics not found in the monitoring window")

// The Monitoring API is scoped to a project, which GCS object access does not need
var errNoProject = errors.New("no project id configured")

// bucketUsage asks Cloud Monitoring for the stored bytes of the configured bucket
func (g *GCPStorage) bucketUsage(ctx context.Context) (int64, error) {
	if g.cfg.ProjectID == "" {
		return -1, errNoProject
	}

	client, err := monitoring.NewMetricClient(ctx, g.credOpts...)
	if err != nil {
		return -1, fmt.Errorf("failed to create monitoring client: %w", err)
	}
	defer client.Close()

	g.logger.Debug("Querying bucket usage", "project", g.cfg.ProjectID)
	it := client.ListTimeSeries(ctx, usageRequest(g.cfg.ProjectID, g.cfg.Bucket, time.Now()))

	// The request sums every series into one per bucket; the first one with a point answers
	for {
		series, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return -1, ErrMetricsNotFound
		}
		if err != nil {
			return -1, fmt.Errorf("error reading usage of bucket %s: %w", g.cfg.Bucket, err)
		}
		if points := series.GetPoints(); len(points) > 0 {
			// Points are returned newest first
			return extractUsageValue(points[0].GetValue()), nil
		}
	}
}

// usageRequest builds a query that averages total_bytes over the window and sums across storage classes
func usageRequest(projectID, bucket string, now time.Time) *monitoringpb.ListTimeSeriesRequest {
	return &monitoringpb.ListTimeSeriesRequest{
		Name:   "projects/" + projectID,
		Filter: fmt.Sprintf(`metric.type=%q AND resource.labels.bucket_name=%q`, usageMetric, bucket),
		Interval: &monitoringpb.TimeInterval{
			StartTime: timestamppb.New(now.Add(-usageWindow)),
			EndTime:   timestamppb.New(now),
		},
		Aggregation: &monitoringpb.Aggregation{
			AlignmentPeriod:    durationpb.New(usageWindow),
			PerSeriesAligner:   monitoringpb.Aggregation_ALIGN_MEAN,
			CrossSeriesReducer: monitoringpb.Aggregation_REDUCE_SUM,
			GroupByFields:      []string{"resource.labels.bucket_name"},
		},
		View: monitoringpb.ListTimeSeriesRequest_FULL,
	}
}

// extractUsageValue reads a byte count from either numeric representation; anything else counts as empty
func extractUsageValue(v *monitoringpb.TypedValue) int64 {
	switch val := v.GetValue().(type) {
	case *monitoringpb.TypedValue_DoubleValue:
		return int64(math.Round(val.DoubleValue))
	case *monitoringpb.TypedValue_Int64Value:
		return val.Int64Value
	default:
		return 0
	}
}

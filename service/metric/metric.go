// Package metric reports operational measures as structured log lines, which
// the log pipeline turns into queryable series.
package metric

import (
	"context"

	"github.com/Veetaha/snowpity/service/logger"
	"github.com/sirupsen/logrus"
)

// Measures reported by the resolve pipeline.
const (
	ResolveDurationSeconds = "resolve_duration_seconds"
	CacheHit               = "tg_media_cache_hit"
	CacheMiss              = "tg_media_cache_miss"
	BlobUploaded           = "tg_media_blob_uploaded"
)

type Measure struct {
	Name  string
	Value float64
}

type MetricReporter struct {
	Record func(ctx context.Context, m Measure, tags map[string]string)
}

func NewLogMetricReporter() MetricReporter {
	return MetricReporter{Record: logMetricReporter{}.record}
}

type logMetricReporter struct{}

func (logMetricReporter) record(ctx context.Context, m Measure, tags map[string]string) {
	logger.For(ctx).WithFields(logrus.Fields{"metric": logrus.Fields{
		"metricName":  m.Name,
		"metricValue": m.Value,
		"metricTags":  tags,
	}}).Infof("reporting metric %s(val=%0.2f)", m.Name, m.Value)
}

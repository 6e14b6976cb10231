package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTransferMetrics(t *testing.T) {
	m := NewTransferMetrics(prometheus.NewRegistry())

	m.Started("upload")
	m.AddBytes("upload", 1024)
	m.AddBytes("upload", 512)
	m.Finished("upload", nil, 2*time.Second)

	m.Started("download")
	m.Finished("download", errors.New("boom"), time.Second)

	assert.Equal(t, float64(1536), testutil.ToFloat64(m.bytesTotal.WithLabelValues("upload")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transfersTotal.WithLabelValues("upload", OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.transfersTotal.WithLabelValues("download", OutcomeFailure)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.active.WithLabelValues("upload")))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *TransferMetrics
	assert.NotPanics(t, func() {
		m.Started("upload")
		m.AddBytes("upload", 1)
		m.Finished("upload", nil, time.Second)
	})
	assert.Nil(t, m.Registry())
}

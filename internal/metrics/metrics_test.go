package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDispatchIncrementsPerOperation(t *testing.T) {
	RecordDispatch("hstp.ping")
	assert.GreaterOrEqual(t, testutil.ToFloat64(messagesDispatchedTotal.WithLabelValues("hstp.ping")), float64(1))
}

func TestSetCorrelationPendingReportsGauge(t *testing.T) {
	SetCorrelationPending(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(correlationPending))
}

func TestSetActivitiesByStatusCoversEveryKnownStatus(t *testing.T) {
	SetActivitiesByStatus(map[string]int{"RUNNING": 2}, []string{"RUNNING", "COMPLETED"})
	assert.Equal(t, float64(2), testutil.ToFloat64(activitiesByStatus.WithLabelValues("RUNNING")))
	assert.Equal(t, float64(0), testutil.ToFloat64(activitiesByStatus.WithLabelValues("COMPLETED")))
}

func TestHandlerIsNonNil(t *testing.T) {
	assert.NotNil(t, Handler())
}

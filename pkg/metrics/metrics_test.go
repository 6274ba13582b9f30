package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDraftWrite(t *testing.T) {
	ok := testutil.ToFloat64(DraftWrites.WithLabelValues("success"))
	failed := testutil.ToFloat64(DraftWrites.WithLabelValues("failure"))

	ObserveDraftWrite(nil)
	ObserveDraftWrite(errors.New("disk full"))

	assert.Equal(t, ok+1, testutil.ToFloat64(DraftWrites.WithLabelValues("success")))
	assert.Equal(t, failed+1, testutil.ToFloat64(DraftWrites.WithLabelValues("failure")))
}

func TestObserveAnalysis(t *testing.T) {
	success := testutil.ToFloat64(AnalysisOutcomes.WithLabelValues("success"))
	fallback := testutil.ToFloat64(AnalysisOutcomes.WithLabelValues("fallback"))

	ObserveAnalysis(true)
	ObserveAnalysis(false)
	ObserveAnalysis(false)

	assert.Equal(t, success+1, testutil.ToFloat64(AnalysisOutcomes.WithLabelValues("success")))
	assert.Equal(t, fallback+2, testutil.ToFloat64(AnalysisOutcomes.WithLabelValues("fallback")))
}

func TestObserveStoreError(t *testing.T) {
	before := testutil.ToFloat64(StoreErrors.WithLabelValues("put"))
	ObserveStoreError("put")
	assert.Equal(t, before+1, testutil.ToFloat64(StoreErrors.WithLabelValues("put")))
}

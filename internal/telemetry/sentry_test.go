package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_EmptyDSN(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	assert.NotPanics(t, shutdown)
}

func TestStartSpan_ChildOfTransaction(t *testing.T) {
	ctx, root := StartTransaction(context.Background(), "kitguide ingest", "cli.ingest")
	defer root.End()

	childCtx, child := StartSpan(ctx, "service.CorpusBuilder.Build", SpanAttributes{
		RunID:      "run-1",
		PageNumber: 3,
		Labels:     []string{"A11", "B1-18"},
		Operation:  "ingest",
	})
	defer child.End()

	span := sentry.SpanFromContext(childCtx)
	require.NotNil(t, span)
	assert.Equal(t, "run-1", span.Tags["run_id"])
	assert.Equal(t, "3", span.Tags["page_number"])
	assert.Equal(t, "A11,B1-18", span.Data["labels"])
	assert.Equal(t, root.inner.SpanID, span.ParentSpanID)
}

func TestSpan_SetErrorWithoutClient(t *testing.T) {
	_, span := StartSpan(context.Background(), "service.Retriever.Retrieve", SpanAttributes{})

	assert.NotPanics(t, func() {
		span.SetError(errors.New("store down"))
		span.End()
	})
	assert.Equal(t, sentry.SpanStatusInternalError, span.inner.Status)
}

func TestCaptureAndBreadcrumbWithoutClient(t *testing.T) {
	assert.NotPanics(t, func() {
		CaptureError(context.Background(), errors.New("boom"))
		AddBreadcrumb(context.Background(), "ingest", "skipped page 2")
	})
}

package deploy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestLogFilter(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)

	filter, err := LogFilter(LogQuery{Service: "sales-intelligence-api"}, now)
	require.NoError(t, err)
	assert.Equal(t, `resource.type="cloud_run_revision" AND resource.labels.service_name="sales-intelligence-api"`, filter)

	filter, err = LogFilter(LogQuery{Service: "svc", Region: "us-central1", Since: time.Hour, MinSeverity: "warning"}, now)
	require.NoError(t, err)
	assert.Equal(t, `resource.type="cloud_run_revision" AND resource.labels.service_name="svc" AND resource.labels.location="us-central1" AND timestamp>="2025-11-10T11:00:00Z" AND severity>=WARNING`, filter)

	_, err = LogFilter(LogQuery{Service: "svc", MinSeverity: "loud"}, now)
	assert.Error(t, err)
}

func TestEntryMessage(t *testing.T) {
	assert.Equal(t, "plain line", entryMessage("plain line\n"))
	assert.Equal(t, "", entryMessage(nil))

	only, err := structpb.NewStruct(map[string]interface{}{"message": "starting server"})
	require.NoError(t, err)
	assert.Equal(t, "starting server", entryMessage(only))

	withAttrs, err := structpb.NewStruct(map[string]interface{}{"message": "request", "status": 200})
	require.NoError(t, err)
	msg := entryMessage(withAttrs)
	assert.Contains(t, msg, "request ")
	assert.Contains(t, msg, `"status":200`)

	noMessage, err := structpb.NewStruct(map[string]interface{}{"event": "x"})
	require.NoError(t, err)
	assert.Contains(t, entryMessage(noMessage), `"event":"x"`)
}

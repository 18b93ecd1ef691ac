package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberwatch/burnsight/internal/notification"
	"github.com/emberwatch/burnsight/internal/raster"
)

func batchItems(t *testing.T, before, after raster.Window, count int) []BatchItem {
	t.Helper()
	items := make([]BatchItem, count)
	for i := range items {
		items[i] = BatchItem{
			Name: "area",
			Request: Request{
				AOI:          coveringAOI(),
				BeforeWindow: before,
				AfterWindow:  after,
				BeforeSensor: "sentinel-2-l2a",
			},
		}
	}
	return items
}

func TestRunBatchPreservesOrder(t *testing.T) {
	before, after := testWindows()
	source := &fakeSource{scenes: map[time.Time]*raster.Raster{
		before.Start: sceneWithNBR(t, 0.70, before, nil),
		after.Start:  sceneWithNBR(t, 0.10, after, nil),
	}}
	engine := newTestEngine(source)

	items := batchItems(t, before, after, 5)
	for i := range items {
		items[i].Name = string(rune('a' + i))
	}

	results := engine.RunBatch(context.Background(), items, 3, nil)

	require.Len(t, results, 5)
	for i, br := range results {
		assert.Equal(t, items[i].Name, br.Name, "results come back in input order")
		require.NoError(t, br.Err)
		assert.NotNil(t, br.Result)
	}
}

func TestRunBatchIsolatesFailures(t *testing.T) {
	before, after := testWindows()
	source := &fakeSource{scenes: map[time.Time]*raster.Raster{
		before.Start: sceneWithNBR(t, 0.70, before, nil),
		after.Start:  sceneWithNBR(t, 0.10, after, nil),
	}}
	engine := newTestEngine(source)

	items := batchItems(t, before, after, 3)
	items[1].Request.BeforeSensor = "modis" // fails to resolve

	results := engine.RunBatch(context.Background(), items, 2, nil)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err, "one bad area fails alone")
	assert.NoError(t, results[2].Err)
}

func TestRunBatchNotifies(t *testing.T) {
	var posted []notification.DiscordMessage
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg notification.DiscordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		posted = append(posted, msg)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer webhook.Close()

	before, after := testWindows()
	source := &fakeSource{scenes: map[time.Time]*raster.Raster{
		before.Start: sceneWithNBR(t, 0.70, before, nil),
		after.Start:  sceneWithNBR(t, 0.10, after, nil),
	}}
	engine := newTestEngine(source)

	notifier := notification.Notifier{WebhookURL: webhook.URL}
	engine.RunBatch(context.Background(), batchItems(t, before, after, 2), 2, &notifier)

	require.Len(t, posted, 1)
	require.Len(t, posted[0].Embeds, 1)
	assert.Contains(t, posted[0].Embeds[0].Description, "2 areas assessed")
}

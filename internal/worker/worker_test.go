package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/backend"
	"storefront-service/internal/kvstore"
	"storefront-service/internal/orders"
)

func TestRefreshWorkerSyncsOnTick(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"total":   1,
			"data": []map[string]interface{}{
				{"_id": "o1", "orderNumber": "ORD-1"},
			},
		})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv := kvstore.NewMemory()
	require.NoError(t, kv.Put(ctx, kvstore.KeyAuthToken, []byte("tok")))
	bc := backend.NewClient(srv.URL, time.Second, kv)
	store := orders.NewStore(ctx, kv, bc, nil, 10)

	w := NewRefreshWorker(store, 10*time.Millisecond)
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(store.Orders()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on cancel")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt64(&hits), int64(1))
}

func TestRefreshWorkerDisabledWithoutInterval(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	bc := backend.NewClient("http://127.0.0.1:1", time.Second, kv)
	store := orders.NewStore(ctx, kv, bc, nil, 10)

	w := NewRefreshWorker(store, 0)
	done := make(chan struct{})
	go func() {
		w.Start(ctx) // returns immediately
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled worker should return immediately")
	}
}

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPostsText(t *testing.T) {
	var mu sync.Mutex
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		got = append(got, body["text"])
		mu.Unlock()
	}))
	defer srv.Close()

	n := New(srv.URL)
	wh, ok := n.(*Webhook)
	require.True(t, ok)
	wh.Notify(context.Background(), "BUY ETH-USDT")
	wh.Notify(context.Background(), "SELL ETH-USDT")
	wh.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"BUY ETH-USDT", "SELL ETH-USDT"}, got)
}

func TestWebhookFailureDoesNotPanic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	wh := New(srv.URL).(*Webhook)
	wh.Notify(context.Background(), "x")
	wh.Wait()
	assert.Error(t, wh.send(context.Background(), "x"))
}

func TestEmptyURLIsNoop(t *testing.T) {
	n := New("")
	assert.IsType(t, Noop{}, n)
	n.Notify(context.Background(), "ignored")
}

package lighthouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"decen-ai-backend/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	blobs := map[string][]byte{}

	mux.HandleFunc("/api/v0/add", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		cid := fmt.Sprintf("bafy-%d", len(blobs)+1)
		blobs[cid] = data
		fmt.Fprintf(w, `{"Name":"upload","Hash":%q,"Size":"%d"}`, cid, len(data))
	})
	mux.HandleFunc("/ipfs/", func(w http.ResponseWriter, r *http.Request) {
		cid := strings.TrimPrefix(r.URL.Path, "/ipfs/")
		data, ok := blobs[cid]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewClient("test-key", WithEndpoints(srv.URL+"/api/v0/add", srv.URL+"/ipfs"))
	return srv, client
}

func TestClientPutGet(t *testing.T) {
	_, client := newTestServer(t)
	ctx := context.Background()

	cid, err := client.Put(ctx, "churn.csv", []byte("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if cid == "" {
		t.Fatal("empty CID")
	}

	data, err := client.Get(ctx, cid)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "a,b\n1,2\n" {
		t.Errorf("Get = %q", data)
	}
}

func TestClientGetUnknownCID(t *testing.T) {
	_, client := newTestServer(t)

	_, err := client.Get(context.Background(), "bafy-ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get = %v, want wrapped ErrNotFound", err)
	}
}

func TestClientPutBadAPIKey(t *testing.T) {
	srv, _ := newTestServer(t)
	client := NewClient("wrong-key", WithEndpoints(srv.URL+"/api/v0/add", srv.URL+"/ipfs"))

	if _, err := client.Put(context.Background(), "x", []byte("data")); err == nil {
		t.Error("expected error for rejected API key")
	}
}

func TestClientGetEmptyCID(t *testing.T) {
	_, client := newTestServer(t)
	if _, err := client.Get(context.Background(), ""); err == nil {
		t.Error("expected error for empty CID")
	}
}

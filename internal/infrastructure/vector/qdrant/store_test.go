package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func TestIndexChunksUpsertPayload(t *testing.T) {
	var ensureCalled bool
	var upsertBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks":
			ensureCalled = true
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/chunks/points":
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&upsertBody); err != nil {
				t.Fatalf("decode upsert body: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	store := New(server.URL, "chunks")
	doc := &domain.Document{ID: "doc1", Filename: "report.pdf"}
	chunks := []domain.Chunk{{
		ID:         domain.ChunkID("doc1", 2, 0),
		DocumentID: "doc1",
		Page:       2,
		Ordinal:    0,
		Kind:       domain.ChunkKindText,
		Text:       "chunk text",
	}}
	if err := store.IndexChunks(context.Background(), doc, chunks, [][]float32{{0.1, 0.2}}); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	if !ensureCalled {
		t.Fatalf("expected ensure collection call")
	}

	points, ok := upsertBody["points"].([]interface{})
	if !ok || len(points) != 1 {
		t.Fatalf("unexpected upsert points: %#v", upsertBody["points"])
	}
	point := points[0].(map[string]interface{})
	if point["id"] != pointID("doc1:2:0") {
		t.Fatalf("point id = %v, want deterministic uuid for chunk id", point["id"])
	}
	payload := point["payload"].(map[string]interface{})
	if payload["doc_id"] != "doc1" || payload["chunk_id"] != "doc1:2:0" || payload["text"] != "chunk text" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if payload["page"].(float64) != 2 {
		t.Fatalf("payload page = %v", payload["page"])
	}
}

func TestPointIDDeterministic(t *testing.T) {
	if pointID("doc1:1:0") != pointID("doc1:1:0") {
		t.Fatalf("point id not stable")
	}
	if pointID("doc1:1:0") == pointID("doc1:1:1") {
		t.Fatalf("distinct chunks must map to distinct point ids")
	}
}

func TestSearchDecodesPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/chunks/points/search" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":[{"score":0.87,"payload":{"chunk_id":"doc1:3:1","doc_id":"doc1","filename":"report.pdf","page":3,"ordinal":1,"kind":"text","text":"found text"}}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := New(server.URL, "chunks")
	got, err := store.Search(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d", len(got))
	}
	r := got[0]
	if r.ChunkID != "doc1:3:1" || r.DocumentID != "doc1" || r.Filename != "report.pdf" {
		t.Fatalf("unexpected result: %+v", r)
	}
	if r.Page != 3 || r.Score != 0.87 || r.Text != "found text" {
		t.Fatalf("unexpected result fields: %+v", r)
	}
}

func TestSearchMissingCollectionIsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := New(server.URL, "chunks")
	got, err := store.Search(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("missing collection must read as empty, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no results, got %v", got)
	}
}

func TestDeleteDocumentSendsFilter(t *testing.T) {
	var deleteBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/chunks/points/delete" {
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&deleteBody); err != nil {
				t.Fatalf("decode delete body: %v", err)
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := New(server.URL, "chunks")
	if err := store.DeleteDocument(context.Background(), "doc1"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}

	filter := deleteBody["filter"].(map[string]interface{})
	must := filter["must"].([]interface{})
	cond := must[0].(map[string]interface{})
	if cond["key"] != "doc_id" {
		t.Fatalf("filter key = %v", cond["key"])
	}
	match := cond["match"].(map[string]interface{})
	if match["value"] != "doc1" {
		t.Fatalf("filter value = %v", match["value"])
	}
}

func TestStatsCountsPoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/collections/chunks/points/count" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"result":{"count":17}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	store := New(server.URL, "chunks")
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Chunks != 17 {
		t.Fatalf("chunks = %d, want 17", stats.Chunks)
	}
}

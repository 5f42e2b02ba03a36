package storage

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/LJTian/InTheLoop/internal/cache"
	"github.com/LJTian/InTheLoop/internal/processor"
)

func TestTrendingKey(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if got, want := trendingKey(at, 10), "intheloop:trending:1714564800000000000:10"; got != want {
		t.Fatalf("trendingKey = %q, want %q", got, want)
	}
	if trendingKey(at, 5) == trendingKey(at, 10) {
		t.Fatalf("topN must be part of the key")
	}
	if trendingKey(at, 10) == trendingKey(at.Add(300*time.Millisecond), 10) {
		t.Fatalf("snapshots within the same second must not share a key")
	}
}

func TestDecodeSnapshot(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := cache.Entry{
		Articles: []processor.Article{{
			Title: "t", Author: "N/A", Link: "https://example.com/1", Summary: "s",
			Category: "Technology", Site: "example.com", Published: at,
		}},
		ComputedAt: at,
	}
	bs, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, ok, err := decodeSnapshot(bs)
	if err != nil || !ok {
		t.Fatalf("decodeSnapshot = %v, %v", ok, err)
	}
	if !got.ComputedAt.Equal(at) || len(got.Articles) != 1 || !got.Articles[0].Published.Equal(at) {
		t.Fatalf("decoded = %+v", got)
	}
}

func TestDecodeSnapshotRejectsInvalid(t *testing.T) {
	if _, ok, err := decodeSnapshot([]byte(`{"articles":[]}`)); ok || err != nil {
		t.Fatalf("snapshot without timestamp should be ignored, got ok=%v err=%v", ok, err)
	}
	if _, _, err := decodeSnapshot([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

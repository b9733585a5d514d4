package tui

import (
	"errors"
	"fmt"
	"testing"
)

func TestModel(t *testing.T) {
	model := NewModel(14, 700)

	// Test starting a batch
	model.StartBatch(1, 100)
	if model.currentBatch != 1 {
		t.Errorf("Expected current batch 1, got %d", model.currentBatch)
	}
	if model.batchSize != 100 {
		t.Errorf("Expected batch size 100, got %d", model.batchSize)
	}

	// Test recording probes
	model.SetPending(5)
	model.RecordProbe("14/9330/4745", true, 3)
	model.RecordProbe("14/9331/4745", false, 0)
	model.RecordFailure("14/9332/4745", errors.New("max retry attempts (8) exceeded"))

	if model.probed != 3 {
		t.Errorf("Expected 3 probed tiles, got %d", model.probed)
	}
	if model.covered != 1 {
		t.Errorf("Expected 1 covered tile, got %d", model.covered)
	}
	if model.uncovered != 1 {
		t.Errorf("Expected 1 uncovered tile, got %d", model.uncovered)
	}
	if model.failed != 1 {
		t.Errorf("Expected 1 failed tile, got %d", model.failed)
	}
	if model.batchProbed != 3 {
		t.Errorf("Expected 3 tiles probed in batch, got %d", model.batchProbed)
	}
	if model.pending != 2 {
		t.Errorf("Expected pending backlog 2, got %d", model.pending)
	}

	// Test committing a batch
	model.RecordCommit(1)
	if model.batchesCommitted != 1 {
		t.Errorf("Expected 1 committed batch, got %d", model.batchesCommitted)
	}

	// Test log messages
	model.AddLogMessage("INFO", "Test message")
	if len(model.logMessages) != 1 {
		t.Errorf("Expected 1 log message, got %d", len(model.logMessages))
	}

	// Test recent outcomes
	recent := model.GetRecentOutcomes()
	if len(recent) != 3 {
		t.Fatalf("Expected 3 recent outcomes, got %d", len(recent))
	}
	if !recent[2].Failed {
		t.Error("Expected newest outcome to be the failed tile")
	}
	if recent[0].Tile != "14/9330/4745" {
		t.Errorf("Expected oldest outcome first, got %s", recent[0].Tile)
	}
}

func TestModelRecentOutcomeCap(t *testing.T) {
	model := NewModel(14, 700)

	for i := 0; i < 12; i++ {
		model.RecordProbe(fmt.Sprintf("14/%d/4745", 9000+i), i%2 == 0, i)
	}

	recent := model.GetRecentOutcomes()
	if len(recent) != model.maxRecent {
		t.Fatalf("Expected %d recent outcomes, got %d", model.maxRecent, len(recent))
	}
	if recent[len(recent)-1].Tile != "14/9011/4745" {
		t.Errorf("Expected newest outcome last, got %s", recent[len(recent)-1].Tile)
	}
}

func TestModelUnknownPending(t *testing.T) {
	model := NewModel(14, 700)

	// Unknown backlog must stay unknown as probes land
	model.RecordProbe("14/1/2", true, 1)
	if model.pending != -1 {
		t.Errorf("Expected pending to stay -1, got %d", model.pending)
	}
}

func TestFormatRate(t *testing.T) {
	tests := []struct {
		rate     float64
		expected string
	}{
		{0, "0.0 tiles/s"},
		{5.5, "5.5 tiles/s"},
		{12.34, "12.3 tiles/s"},
		{100, "100 tiles/s"},
		{708, "708 tiles/s"},
	}

	for _, test := range tests {
		result := FormatRate(test.rate)
		if result != test.expected {
			t.Errorf("FormatRate(%f) = %s, expected %s", test.rate, result, test.expected)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{-1, "?"},
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{123456, "123,456"},
		{1234567, "1,234,567"},
	}

	for _, test := range tests {
		result := FormatCount(test.n)
		if result != test.expected {
			t.Errorf("FormatCount(%d) = %s, expected %s", test.n, result, test.expected)
		}
	}
}

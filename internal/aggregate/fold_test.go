package aggregate

import (
	"testing"
	"time"

	"github.com/sentrychain/pulse/internal/store"
)

func TestFoldBasicFlow(t *testing.T) {
	start := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	events := []store.RawEvent{
		{From: "A", To: "B", Amount: "100", Block: 10, Timestamp: start},
		{From: "B", To: "C", Amount: "40", Block: 12, Timestamp: start.Add(time.Minute)},
	}

	agg := Fold("ethereum", "USDC", "1h", start, end, events, "")

	if agg.EventCount != 2 {
		t.Errorf("EventCount = %d, want 2", agg.EventCount)
	}
	if agg.InflowAmount != "140" {
		t.Errorf("InflowAmount = %s, want 140", agg.InflowAmount)
	}
	if agg.OutflowAmount != "140" {
		t.Errorf("OutflowAmount = %s, want 140", agg.OutflowAmount)
	}
	if agg.NetFlowAmount != "0" {
		t.Errorf("NetFlowAmount = %s, want 0", agg.NetFlowAmount)
	}
	if agg.FirstBlock != 10 || agg.LastBlock != 12 {
		t.Errorf("block range = [%d,%d], want [10,12]", agg.FirstBlock, agg.LastBlock)
	}
}

func TestFoldFocusActorDirectional(t *testing.T) {
	start := time.Now().UTC()
	events := []store.RawEvent{
		{From: "whale", To: "exchange", Amount: "500"},
		{From: "exchange", To: "whale", Amount: "200"},
		{From: "other", To: "other2", Amount: "1000"},
	}

	agg := Fold("ethereum", "USDC", "1h", start, start.Add(time.Hour), events, "whale")

	if agg.OutflowAmount != "500" {
		t.Errorf("OutflowAmount = %s, want 500 (whale->exchange)", agg.OutflowAmount)
	}
	if agg.InflowAmount != "200" {
		t.Errorf("InflowAmount = %s, want 200 (exchange->whale)", agg.InflowAmount)
	}
}

func TestFoldOrderIndependent(t *testing.T) {
	start := time.Now().UTC()
	a := []store.RawEvent{
		{From: "A", To: "B", Amount: "10"},
		{From: "C", To: "D", Amount: "20"},
	}
	b := []store.RawEvent{a[1], a[0]}

	fa := Fold("ethereum", "USDC", "1h", start, start.Add(time.Hour), a, "")
	fb := Fold("ethereum", "USDC", "1h", start, start.Add(time.Hour), b, "")

	if fa.NetFlowAmount != fb.NetFlowAmount || fa.EventCount != fb.EventCount {
		t.Error("Fold is not order-independent")
	}
}

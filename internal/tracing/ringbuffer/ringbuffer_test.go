package ringbuffer

import (
	"testing"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/chunklist"
)

func TestGetEmptyElementClaimsAndPublishRoundTrips(t *testing.T) {
	b, err := New(4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	idx, err := b.GetEmptyElement()
	if err != nil {
		t.Fatalf("GetEmptyElement: %v", err)
	}

	if got := b.StatusAt(idx); got != StatusAllocating {
		t.Fatalf("status after claim = %v, want StatusAllocating", got)
	}

	loc := chunklist.ShmLocation{Handle: 3, Offset: 128}
	b.Publish(idx, 11, 22, loc)

	if got := b.StatusAt(idx); got != StatusReady {
		t.Fatalf("status after publish = %v, want StatusReady", got)
	}

	slot := b.SlotAt(idx)
	if slot.ClientID != 11 || slot.ContextID != 22 || !slot.ChunkList.Equal(loc) {
		t.Fatalf("unexpected slot contents: %+v", slot)
	}
}

func TestGetEmptyElementFailsWhenFull(t *testing.T) {
	b, _ := New(2)

	if _, err := b.GetEmptyElement(); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	if _, err := b.GetEmptyElement(); err != nil {
		t.Fatalf("second claim: %v", err)
	}

	if _, err := b.GetEmptyElement(); err == nil {
		t.Fatal("expected failure once every slot is claimed")
	}
}

func TestFreeElementRollsBackClaim(t *testing.T) {
	b, _ := New(1)

	idx, err := b.GetEmptyElement()
	if err != nil {
		t.Fatalf("GetEmptyElement: %v", err)
	}

	b.FreeElement(idx)

	if got := b.StatusAt(idx); got != StatusEmpty {
		t.Fatalf("status after FreeElement = %v, want StatusEmpty", got)
	}

	if _, err := b.GetEmptyElement(); err != nil {
		t.Fatal("slot should be claimable again after FreeElement")
	}
}

func TestReclaimOnlyResetsReadySlots(t *testing.T) {
	b, _ := New(1)

	idx, _ := b.GetEmptyElement()

	if b.Reclaim(idx) {
		t.Fatal("reclaiming an Allocating (not yet published) slot should fail")
	}

	b.Publish(idx, 1, 1, chunklist.ShmLocation{})

	if !b.Reclaim(idx) {
		t.Fatal("reclaiming a Ready slot should succeed")
	}

	if got := b.StatusAt(idx); got != StatusEmpty {
		t.Fatalf("status after Reclaim = %v, want StatusEmpty", got)
	}
}

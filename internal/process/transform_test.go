package process

import (
	"fmt"
	"testing"
	"time"
)

func testBatchContext() BatchContext {
	return BatchContext{
		BatchID:    "batch-1",
		CustomerID: "cust-1",
		TenantID:   "tenant-1",
		Now:        func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func TestTransform_StampsAndOverwrites(t *testing.T) {
	bc := testBatchContext()
	in := map[string]any{
		"id":         "u1",
		"customerId": "spoofed",
		"tenantId":   "spoofed",
		"name":       "User",
	}

	out, err := Transform(in, bc)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if out["customerId"] != "cust-1" || out["tenantId"] != "tenant-1" {
		t.Errorf("per-record identity not overwritten: %v / %v", out["customerId"], out["tenantId"])
	}
	if out["processedAt"] != "2024-03-01T12:00:00Z" {
		t.Errorf("unexpected processedAt: %v", out["processedAt"])
	}
	if out["originalId"] != "u1" {
		t.Errorf("expected originalId u1, got %v", out["originalId"])
	}
	wantID := fmt.Sprintf("cust-1_tenant-1_%d", bc.now().UnixMilli())
	if out["id"] != wantID {
		t.Errorf("expected id %s, got %v", wantID, out["id"])
	}
	// Input must be untouched.
	if in["customerId"] != "spoofed" || in["id"] != "u1" {
		t.Error("input record was mutated")
	}
}

func TestTransform_GssIDRegeneratedOnlyWhenPresent(t *testing.T) {
	bc := testBatchContext()

	out, err := Transform(map[string]any{"id": "u1", "gssId": "old-id"}, bc)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if out["gssId"] == "old-id" || out["gssId"] == "" {
		t.Errorf("gssId not regenerated: %v", out["gssId"])
	}

	out, err = Transform(map[string]any{"id": "u1"}, bc)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if _, ok := out["gssId"]; ok {
		t.Error("gssId introduced on a record that never carried one")
	}
}

func TestTransform_NoID(t *testing.T) {
	out, err := Transform(map[string]any{"name": "User"}, testBatchContext())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if _, ok := out["originalId"]; ok {
		t.Error("originalId set without an inbound id")
	}
	if _, ok := out["id"]; ok {
		t.Error("composite id synthesized without an inbound id")
	}
}

func TestTransform_NilRecord(t *testing.T) {
	if _, err := Transform(nil, testBatchContext()); err == nil {
		t.Fatal("expected error for nil record")
	}
}

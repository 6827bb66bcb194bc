package process

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchContext carries the batch's authoritative identity into the
// record transform.
type BatchContext struct {
	BatchID    string
	CustomerID string
	TenantID   string

	// Now is injectable for tests; nil means time.Now.
	Now func() time.Time
}

func (bc BatchContext) now() time.Time {
	if bc.Now != nil {
		return bc.Now()
	}
	return time.Now()
}

// Transform applies the business transforms to one record and returns a
// new record, leaving the input untouched:
//
//   - stamp processedAt
//   - overwrite customerId/tenantId with the batch's authoritative
//     values (per-record copies are not trusted)
//   - regenerate gssId as a fresh value; inbound correlation ids are
//     not propagated across this stage
//   - preserve id as originalId and synthesize a composite id
func Transform(record map[string]any, bc BatchContext) (map[string]any, error) {
	if record == nil {
		return nil, fmt.Errorf("record is not a JSON object")
	}

	out := make(map[string]any, len(record)+3)
	for k, v := range record {
		out[k] = v
	}

	now := bc.now().UTC()
	out["processedAt"] = now.Format(time.RFC3339Nano)
	out["customerId"] = bc.CustomerID
	out["tenantId"] = bc.TenantID

	if _, ok := out["gssId"]; ok {
		out["gssId"] = uuid.NewString()
	}

	if id, ok := out["id"]; ok {
		out["originalId"] = id
		out["id"] = fmt.Sprintf("%s_%s_%d", bc.CustomerID, bc.TenantID, now.UnixMilli())
	}

	return out, nil
}

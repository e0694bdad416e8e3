package tracking

import (
	"time"

	"github.com/erwinnova/umkm-tracker/internal/shared/geo"
)

// LocationLog is one accepted position sample. Rows are immutable once
// written; SessionID is nil when the sample arrived outside a shift.
type LocationLog struct {
	ID         string    `json:"id"`
	SellerID   string    `json:"seller_id"`
	SessionID  *string   `json:"session_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
	Location   geo.Point `json:"location"`
}

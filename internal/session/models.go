package session

import "time"

// Session is one work shift, bounded by the seller opening and closing
// their storefront. EndTime stays nil while the shift is running.
type Session struct {
	ID              string     `json:"id"`
	SellerID        string     `json:"seller_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	TotalDistanceKm float64    `json:"total_distance_km"`
}

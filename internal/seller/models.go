package seller

import (
	"time"

	"github.com/erwinnova/umkm-tracker/internal/shared/geo"
)

type Seller struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	IsOpen       bool       `json:"is_open"`
	LastLocation *geo.Point `json:"last_location,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

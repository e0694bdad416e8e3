package tracking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/erwinnova/umkm-tracker/internal/db"
	"github.com/erwinnova/umkm-tracker/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Sampling policy thresholds: a sample is persisted only when it moved far
// enough or enough time passed since the last persisted sample.
const (
	minSampleInterval  = 2 * time.Minute
	minSampleDistanceM = 20.0
)

var ErrInvalidCoordinate = errors.New("invalid coordinate")

var timeNow = time.Now

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Ingest validates a raw sample and persists it if the sampling policy
// accepts it. A nil log with a nil error means the sample was skipped.
func (s *Service) Ingest(ctx context.Context, sellerID string, lat, lng float64, sessionID *string) (*LocationLog, error) {
	point := geo.Point{Lat: lat, Lng: lng}
	if !point.Valid() {
		return nil, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, lat, lng)
	}

	last, err := s.lastLog(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if last != nil && !accepts(*last, point) {
		return nil, nil
	}

	entry := LocationLog{
		ID:         uuid.NewString(),
		SellerID:   sellerID,
		SessionID:  sessionID,
		RecordedAt: timeNow(),
		Location:   point,
	}
	encoded := geo.EncodeEWKB(point)
	row := s.db.QueryRow(ctx, `
		INSERT INTO location_logs (id, seller_id, session_id, recorded_at, location)
		VALUES ($1,$2,$3,$4, ST_GeomFromEWKB($5))
		RETURNING recorded_at
	`, entry.ID, entry.SellerID, entry.SessionID, entry.RecordedAt, encoded)
	if err := row.Scan(&entry.RecordedAt); err != nil {
		return nil, err
	}

	_, _ = s.db.Exec(ctx, `
		UPDATE sellers SET last_location=ST_GeomFromEWKB($2), updated_at=now()
		WHERE id=$1
	`, sellerID, encoded)

	return &entry, nil
}

// accepts applies the sampling policy against the last persisted sample.
// Elapsed time is measured from the server clock, not the client's claimed
// sample time, so backfilled timestamps cannot inflate write volume.
func accepts(last LocationLog, p geo.Point) bool {
	if timeNow().Sub(last.RecordedAt) > minSampleInterval {
		return true
	}
	distM := geo.HaversineKm(last.Location.Lat, last.Location.Lng, p.Lat, p.Lng) * 1000
	return distM > minSampleDistanceM
}

func (s *Service) lastLog(ctx context.Context, sellerID string) (*LocationLog, error) {
	row := s.db.QueryRow(ctx, `
		SELECT recorded_at, ST_AsEWKB(location)
		FROM location_logs
		WHERE seller_id=$1
		ORDER BY recorded_at DESC
		LIMIT 1
	`, sellerID)

	var recordedAt time.Time
	var raw []byte
	if err := row.Scan(&recordedAt, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	point, err := geo.DecodePoint(raw)
	if err != nil {
		// unreadable geometry reads as "no previous sample"
		log.Printf("seller %s: last location unreadable: %v", sellerID, err)
		return nil, nil
	}
	return &LocationLog{SellerID: sellerID, RecordedAt: recordedAt, Location: point}, nil
}

// SessionLogs returns a session's accepted samples in chronological order.
// Rows with unreadable geometry are skipped, never abort the read.
func (s *Service) SessionLogs(ctx context.Context, sessionID string) ([]LocationLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, seller_id, session_id, recorded_at, ST_AsEWKB(location)
		FROM location_logs
		WHERE session_id=$1
		ORDER BY recorded_at
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []LocationLog
	for rows.Next() {
		var entry LocationLog
		var raw []byte
		if err := rows.Scan(&entry.ID, &entry.SellerID, &entry.SessionID, &entry.RecordedAt, &raw); err != nil {
			return nil, err
		}
		point, err := geo.DecodePoint(raw)
		if err != nil {
			log.Printf("session %s: skipping unreadable location log %s: %v", sessionID, entry.ID, err)
			continue
		}
		entry.Location = point
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

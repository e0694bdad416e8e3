package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/erwinnova/umkm-tracker/internal/db"
	"github.com/erwinnova/umkm-tracker/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrSessionNotFound = errors.New("session not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Open starts a new shift for the seller. If a shift is already running it
// is returned unchanged, so a seller never holds two open sessions.
func (s *Service) Open(ctx context.Context, sellerID string) (Session, error) {
	active, err := s.Active(ctx, sellerID)
	if err != nil {
		return Session{}, err
	}
	if active != nil {
		return *active, nil
	}

	sess := Session{
		ID:        uuid.NewString(),
		SellerID:  sellerID,
		StartTime: time.Now(),
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO sessions (id, seller_id, start_time, total_distance_km)
		VALUES ($1,$2,$3,0)
		RETURNING start_time
	`, sess.ID, sess.SellerID, sess.StartTime)
	if err := row.Scan(&sess.StartTime); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get returns a session by id.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, seller_id, start_time, end_time, total_distance_km
		FROM sessions WHERE id=$1
	`, id)

	var sess Session
	if err := row.Scan(&sess.ID, &sess.SellerID, &sess.StartTime, &sess.EndTime, &sess.TotalDistanceKm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	return sess, nil
}

// Active returns the seller's currently open session, or nil when the
// seller is off shift.
func (s *Service) Active(ctx context.Context, sellerID string) (*Session, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, seller_id, start_time, end_time, total_distance_km
		FROM sessions
		WHERE seller_id=$1 AND end_time IS NULL
		ORDER BY start_time DESC
		LIMIT 1
	`, sellerID)

	var sess Session
	if err := row.Scan(&sess.ID, &sess.SellerID, &sess.StartTime, &sess.EndTime, &sess.TotalDistanceKm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

// Close ends the seller's open session and recomputes its travel distance.
// Closing with no open session is a no-op.
func (s *Service) Close(ctx context.Context, sellerID string) (*Session, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE sessions SET end_time=$2
		WHERE id = (
			SELECT id FROM sessions
			WHERE seller_id=$1 AND end_time IS NULL
			ORDER BY start_time DESC
			LIMIT 1
		)
		RETURNING id, seller_id, start_time, end_time, total_distance_km
	`, sellerID, time.Now())

	var sess Session
	if err := row.Scan(&sess.ID, &sess.SellerID, &sess.StartTime, &sess.EndTime, &sess.TotalDistanceKm); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Printf("close requested for seller %s with no open session", sellerID)
			return nil, nil
		}
		return nil, err
	}

	km, err := s.RecomputeDistance(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	sess.TotalDistanceKm = km
	return &sess, nil
}

// RecomputeDistance walks the session's accepted samples in order and
// persists the haversine route total. Corrupt geometry rows are skipped.
func (s *Service) RecomputeDistance(ctx context.Context, sessionID string) (float64, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id=$1)`, sessionID).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrSessionNotFound
	}

	rows, err := s.db.Query(ctx, `
		SELECT ST_AsEWKB(location)
		FROM location_logs
		WHERE session_id=$1
		ORDER BY recorded_at
	`, sessionID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var route []geo.Point
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return 0, err
		}
		point, err := geo.DecodePoint(raw)
		if err != nil {
			log.Printf("session %s: skipping unreadable location: %v", sessionID, err)
			continue
		}
		route = append(route, point)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	km := geo.RouteKm(route)
	if _, err := s.db.Exec(ctx, `
		UPDATE sessions SET total_distance_km=$2 WHERE id=$1
	`, sessionID, km); err != nil {
		return 0, err
	}
	return km, nil
}

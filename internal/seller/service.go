package seller

import (
	"context"
	"errors"
	"log"

	"github.com/erwinnova/umkm-tracker/internal/db"
	"github.com/erwinnova/umkm-tracker/internal/session"
	"github.com/erwinnova/umkm-tracker/internal/shared/geo"

	"github.com/jackc/pgx/v5"
)

var ErrSellerNotFound = errors.New("seller not found")

type Service struct {
	db       db.Querier
	sessions *session.Service
}

func NewService(db db.Querier, sessions *session.Service) *Service {
	return &Service{db: db, sessions: sessions}
}

func (s *Service) Get(ctx context.Context, id string) (Seller, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, is_open, ST_AsEWKB(last_location), updated_at
		FROM sellers WHERE id=$1
	`, id)

	var seller Seller
	var raw []byte
	if err := row.Scan(&seller.ID, &seller.Name, &seller.IsOpen, &raw, &seller.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Seller{}, ErrSellerNotFound
		}
		return Seller{}, err
	}

	if len(raw) > 0 {
		point, err := geo.DecodePoint(raw)
		if err != nil {
			// unreadable geometry means no known location
			log.Printf("seller %s: last location unreadable: %v", id, err)
		} else {
			seller.LastLocation = &point
		}
	}
	return seller, nil
}

// SetOpen flips the storefront flag and drives the shift lifecycle: opening
// clocks the seller in, closing clocks them out and settles the shift's
// distance. Repeating the current state changes nothing.
func (s *Service) SetOpen(ctx context.Context, sellerID string, open bool) (Seller, *session.Session, error) {
	seller, err := s.Get(ctx, sellerID)
	if err != nil {
		return Seller{}, nil, err
	}

	if seller.IsOpen == open {
		if open {
			active, err := s.sessions.Active(ctx, sellerID)
			if err != nil {
				return Seller{}, nil, err
			}
			return seller, active, nil
		}
		return seller, nil, nil
	}

	if _, err := s.db.Exec(ctx, `
		UPDATE sellers SET is_open=$2, updated_at=now() WHERE id=$1
	`, sellerID, open); err != nil {
		return Seller{}, nil, err
	}
	seller.IsOpen = open

	if open {
		sess, err := s.sessions.Open(ctx, sellerID)
		if err != nil {
			return Seller{}, nil, err
		}
		return seller, &sess, nil
	}

	sess, err := s.sessions.Close(ctx, sellerID)
	if err != nil {
		return Seller{}, nil, err
	}
	return seller, sess, nil
}

package order

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNoLines       = errors.New("order has no lines")
	ErrBadLine       = errors.New("bad order line")
	ErrDuplicateLine = errors.New("duplicate product_id")
	ErrTotalOverflow = errors.New("total overflow")
	ErrNoOwner       = errors.New("order owner required")
)

// Service places orders. Payment is a placeholder: every accepted order is
// recorded as paid.
type Service struct {
	Store  Store
	Events Publisher
	Log    *zap.Logger

	now func() time.Time
}

func NewService(store Store, events Publisher, log *zap.Logger) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Store: store, Events: events, Log: log, now: time.Now}
}

func (s *Service) Place(ctx context.Context, owner string, lines []Line) (Order, error) {
	if owner == "" {
		return Order{}, ErrNoOwner
	}

	total, err := calculateTotal(lines)
	if err != nil {
		return Order{}, err
	}

	o := Order{
		ID:        "o_" + uuid.NewString(),
		Owner:     owner,
		Lines:     append([]Line(nil), lines...),
		Total:     total,
		Status:    StatusPaid,
		CreatedAt: s.now().UTC(),
	}

	if err := s.Store.Create(ctx, o); err != nil {
		return Order{}, fmt.Errorf("store order: %w", err)
	}

	if err := s.Events.PublishOrderPlaced(ctx, o); err != nil {
		s.Log.Warn("publish order.placed failed", zap.Error(err), zap.String("order_id", o.ID))
	}

	s.Log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("owner", owner),
		zap.Int("lines", len(o.Lines)),
		zap.Int64("total", o.Total),
	)

	return o, nil
}

func calculateTotal(lines []Line) (int64, error) {
	if len(lines) == 0 {
		return 0, ErrNoLines
	}

	seen := make(map[int]struct{}, len(lines))
	var total int64

	for _, l := range lines {
		if l.Quantity <= 0 || l.Price < 0 {
			return 0, ErrBadLine
		}
		if _, dup := seen[l.ProductID]; dup {
			return 0, ErrDuplicateLine
		}
		seen[l.ProductID] = struct{}{}

		if l.Price > 0 && int64(l.Quantity) > math.MaxInt64/l.Price {
			return 0, ErrTotalOverflow
		}
		line := l.Price * int64(l.Quantity)
		if total > math.MaxInt64-line {
			return 0, ErrTotalOverflow
		}
		total += line
	}

	return total, nil
}

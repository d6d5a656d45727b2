package capacity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind names a bookable quota.
type Kind string

const (
	KindCustomCake Kind = "custom_cake" // per day
	KindDIY        Kind = "diy"         // per day and session slot
)

var (
	ErrCapacityFull    = errors.New("capacity full")
	ErrNothingReserved = errors.New("nothing reserved to release")
	ErrUnknownKind     = errors.New("unknown capacity kind")
	ErrInvalidKey      = errors.New("invalid capacity key")
)

// Unbounded disables the upper limit of CounterTx.Add.
const Unbounded = -1

type Key struct {
	Kind Kind
	Date time.Time
	Slot string
}

func (k Key) String() string {
	s := string(k.Kind) + ":" + k.Date.Format(time.DateOnly)
	if slot := strings.TrimSpace(k.Slot); slot != "" {
		s += ":" + slot
	}
	return s
}

func (k Key) Validate() error {
	if k.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidKey)
	}
	slot := strings.TrimSpace(k.Slot)
	switch k.Kind {
	case KindCustomCake:
		if slot != "" {
			return fmt.Errorf("%w: %s is booked per day", ErrInvalidKey, k.Kind)
		}
	case KindDIY:
		if slot == "" {
			return fmt.Errorf("%w: %s needs a slot", ErrInvalidKey, k.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, k.Kind)
	}
	return nil
}

// CounterTx is a locked counter inside an open transaction: ensure the row,
// lock it, compare, then mutate through a conditional add.
type CounterTx interface {
	Ensure(ctx context.Context, key string) error
	Lock(ctx context.Context, key string) (int, error)
	// Add applies delta only when the result stays in [0, limit]; a
	// negative limit is Unbounded.
	Add(ctx context.Context, key string, delta, limit int) (int, bool, error)
}

type Store interface {
	InCounterTx(ctx context.Context, fn func(ctx context.Context, tx CounterTx) error) error
	ReadCounter(ctx context.Context, key string) (int, error)
}

type Limits map[Kind]int

type Usage struct {
	Key      string
	Reserved int
	Limit    int
}

func (u Usage) Remaining() int { return max(u.Limit-u.Reserved, 0) }

type Service struct {
	Store  Store
	Limits Limits
	Log    logrus.FieldLogger
}

func (s *Service) limit(k Key) (int, error) {
	if err := k.Validate(); err != nil {
		return 0, err
	}
	limit, ok := s.Limits[k.Kind]
	if !ok {
		return 0, fmt.Errorf("%w: no limit configured for %q", ErrUnknownKind, k.Kind)
	}
	return limit, nil
}

// Reserve books n units of k if the configured limit allows it.
func (s *Service) Reserve(ctx context.Context, k Key, n int) (Usage, error) {
	limit, err := s.limit(k)
	if err != nil {
		return Usage{}, err
	}
	if n <= 0 {
		return Usage{}, fmt.Errorf("%w: reserve count must be positive", ErrInvalidKey)
	}

	key := k.String()
	u := Usage{Key: key, Limit: limit}
	err = s.Store.InCounterTx(ctx, func(ctx context.Context, tx CounterTx) error {
		if err := tx.Ensure(ctx, key); err != nil {
			return err
		}
		cur, err := tx.Lock(ctx, key)
		if err != nil {
			return err
		}
		if cur+n > limit {
			u.Reserved = cur
			return fmt.Errorf("%w: %s has %d of %d", ErrCapacityFull, key, cur, limit)
		}
		v, ok, err := tx.Add(ctx, key, n, limit)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrCapacityFull, key)
		}
		u.Reserved = v
		return nil
	})
	if err != nil {
		return u, err
	}
	s.logger().WithFields(logrus.Fields{"key": key, "reserved": u.Reserved, "limit": limit}).Info("capacity reserved")
	return u, nil
}

// Release gives back n units of k, e.g. on cancellation.
func (s *Service) Release(ctx context.Context, k Key, n int) (Usage, error) {
	limit, err := s.limit(k)
	if err != nil {
		return Usage{}, err
	}
	if n <= 0 {
		return Usage{}, fmt.Errorf("%w: release count must be positive", ErrInvalidKey)
	}

	key := k.String()
	u := Usage{Key: key, Limit: limit}
	err = s.Store.InCounterTx(ctx, func(ctx context.Context, tx CounterTx) error {
		if err := tx.Ensure(ctx, key); err != nil {
			return err
		}
		cur, err := tx.Lock(ctx, key)
		if err != nil {
			return err
		}
		if cur < n {
			u.Reserved = cur
			return fmt.Errorf("%w: %s has %d, asked to release %d", ErrNothingReserved, key, cur, n)
		}
		v, ok, err := tx.Add(ctx, key, -n, Unbounded)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrNothingReserved, key)
		}
		u.Reserved = v
		return nil
	})
	if err != nil {
		return u, err
	}
	s.logger().WithFields(logrus.Fields{"key": key, "reserved": u.Reserved, "limit": limit}).Info("capacity released")
	return u, nil
}

func (s *Service) Usage(ctx context.Context, k Key) (Usage, error) {
	limit, err := s.limit(k)
	if err != nil {
		return Usage{}, err
	}
	key := k.String()
	n, err := s.Store.ReadCounter(ctx, key)
	if err != nil {
		return Usage{}, err
	}
	return Usage{Key: key, Reserved: n, Limit: limit}, nil
}

func (s *Service) logger() logrus.FieldLogger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

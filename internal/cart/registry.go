package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrNoOwner = errors.New("cart owner required")

const (
	defaultMaxSessions = 10_000
	defaultTTL         = 7 * 24 * time.Hour
	snapshotTimeout    = 2 * time.Second
)

type RegistryOptions struct {
	MaxSessions int
	TTL         time.Duration
	Log         *zap.Logger
	Metrics     *Metrics
}

// Registry owns one Store per cart owner. Stores idle for longer than TTL are
// dropped from memory; with persistent Snapshots they come back on the next
// access, otherwise the cart is gone.
type Registry struct {
	carts   *expirable.LRU[string, *entry]
	snaps   Snapshots
	loads   singleflight.Group
	addMu   sync.Mutex
	log     *zap.Logger
	metrics *Metrics
}

type entry struct {
	store  *Store
	detach func()
}

func NewRegistry(snaps Snapshots, opts RegistryOptions) *Registry {
	if snaps == nil {
		snaps = NopSnapshots{}
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = defaultMaxSessions
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}

	r := &Registry{
		snaps:   snaps,
		log:     opts.Log,
		metrics: opts.Metrics,
	}
	r.carts = expirable.NewLRU[string, *entry](opts.MaxSessions, r.onEvict, opts.TTL)
	return r
}

// Get returns the owner's cart, restoring it from its snapshot or creating an
// empty one when it is not in memory.
func (r *Registry) Get(ctx context.Context, owner string) (*Store, error) {
	s, ok, err := r.Peek(ctx, owner)
	if err != nil || ok {
		return s, err
	}
	return r.install(owner, NewStore()), nil
}

// Peek is Get without the empty cart: an owner with nothing in memory and no
// snapshot reports false and takes no slot.
func (r *Registry) Peek(ctx context.Context, owner string) (*Store, bool, error) {
	if owner == "" {
		return nil, false, ErrNoOwner
	}
	if s, ok := r.lookup(owner); ok {
		return s, true, nil
	}

	v, err, _ := r.loads.Do(owner, func() (any, error) {
		if s, ok := r.lookup(owner); ok {
			return s, nil
		}

		items, found, err := r.snaps.Load(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("load cart snapshot: %w", err)
		}
		if !found {
			return (*Store)(nil), nil
		}
		s := NewStoreFrom(items)
		if s.Len() == 0 {
			return (*Store)(nil), nil
		}
		return r.install(owner, s), nil
	})
	if err != nil {
		return nil, false, err
	}
	s := v.(*Store)
	return s, s != nil, nil
}

// Drop empties the owner's cart and forgets it, including any snapshot. The
// dropped Store stops persisting, so a request still holding it cannot bring
// the snapshot back.
func (r *Registry) Drop(ctx context.Context, owner string) error {
	if owner == "" {
		return ErrNoOwner
	}
	if e, ok := r.carts.Peek(owner); ok {
		e.detach()
		e.store.Clear()
	}
	r.carts.Remove(owner)
	if err := r.snaps.Delete(ctx, owner); err != nil {
		return fmt.Errorf("delete cart snapshot: %w", err)
	}
	return nil
}

func (r *Registry) Len() int { return r.carts.Len() }

func (r *Registry) Ping(ctx context.Context) error { return r.snaps.Ping(ctx) }

// onEvict runs under the LRU lock for expiry, capacity eviction and Remove;
// it must not call back into r.carts.
func (r *Registry) onEvict(owner string, _ *entry) {
	r.log.Debug("cart evicted from memory", zap.String("owner", owner))
	if r.metrics != nil {
		r.metrics.Sessions.Dec()
	}
}

// lookup re-adds a hit so its idle TTL starts over.
func (r *Registry) lookup(owner string) (*Store, bool) {
	e, ok := r.carts.Get(owner)
	if !ok {
		return nil, false
	}
	r.carts.Add(owner, e)
	return e.store, true
}

// install makes s the owner's cart unless another one got there first. An
// expired entry that has not been swept yet is removed explicitly so that the
// sessions gauge sees its eviction.
func (r *Registry) install(owner string, s *Store) *Store {
	r.addMu.Lock()
	defer r.addMu.Unlock()

	if cur, ok := r.lookup(owner); ok {
		return cur
	}
	r.carts.Remove(owner)

	r.carts.Add(owner, &entry{store: s, detach: r.attach(owner, s)})
	if r.metrics != nil {
		r.metrics.Sessions.Inc()
	}
	return s
}

func (r *Registry) attach(owner string, s *Store) func() {
	detach := s.Subscribe(r.persist(owner))
	if r.metrics != nil {
		s.Subscribe(r.metrics.observe)
	}
	return detach
}

func (r *Registry) persist(owner string) Observer {
	return func(ch Change) {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()

		var err error
		if len(ch.Items) == 0 {
			err = r.snaps.Delete(ctx, owner)
		} else {
			err = r.snaps.Save(ctx, owner, ch.Items)
		}
		if err != nil {
			r.log.Warn("cart snapshot failed",
				zap.Error(err),
				zap.String("owner", owner),
				zap.String("op", string(ch.Op)),
			)
		}
	}
}

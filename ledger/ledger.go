// Package ledger hosts the audit registry on top of a neo-go storage backend.
//
// Ledger plays the role the blockchain plays for the registry contract: it
// supplies caller identity, serializes invocations and applies every
// invocation atomically. Each successful submission is also journaled, so
// notification consumers can replay the history.
package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/nspcc-dev/audit-registry/registry"
	"github.com/nspcc-dev/neo-go/pkg/core/storage"
	"github.com/nspcc-dev/neo-go/pkg/core/storage/dbconfig"
	"github.com/nspcc-dev/neo-go/pkg/vm/stackitem"
	"go.uber.org/zap"
)

const (
	eventPrefix = 'e'
	eventSeqKey = 'n'
)

// ErrNotEmpty is returned by Import if the storage already holds submissions
// or journal records.
var ErrNotEmpty = errors.New("ledger storage is not empty")

// Record is a journaled notification with its position in the journal.
type Record struct {
	Seq   uint64
	Event registry.ContractSubmitted
}

// Ledger serves registry operations over the underlying storage.Store.
type Ledger struct {
	log *zap.Logger

	mtx   sync.RWMutex
	store storage.Store

	// held while notifying, orders deliveries of concurrent submissions
	notifyMtx sync.Mutex

	subsMtx sync.Mutex
	subsID  int
	subs    map[int]func(Record)
}

// Option configures Ledger.
type Option func(*Ledger)

// WithLogger sets logger writing committed operations. Defaults to no-op.
func WithLogger(l *zap.Logger) Option {
	return func(x *Ledger) {
		x.log = l
	}
}

// New returns Ledger working with the given store. The store must not be
// modified by anything else while Ledger is in use.
func New(store storage.Store, opts ...Option) *Ledger {
	l := &Ledger{
		log:   zap.NewNop(),
		store: store,
		subs:  make(map[int]func(Record)),
	}

	for i := range opts {
		opts[i](l)
	}

	return l
}

// Open opens storage described by cfg and returns Ledger working with it.
func Open(cfg dbconfig.DBConfiguration, opts ...Option) (*Ledger, error) {
	store, err := storage.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Type, err)
	}

	return New(store, opts...), nil
}

// Construct initializes the registry with the caller as an owner. It fails
// with registry.ErrAlreadyConstructed on repeated calls.
func (l *Ledger) Construct(caller registry.AccountID) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	tx := storage.NewMemCachedStore(l.store)

	c, err := registry.Construct(tx, caller)
	if err != nil {
		return err
	}

	tx.Put(c.Key, c.Value)

	if _, err = tx.Persist(); err != nil {
		return fmt.Errorf("persist registry construction: %w", err)
	}

	l.log.Info("registry constructed", zap.Stringer("owner", caller))

	return nil
}

// Submit appends h to the submission list of the caller. The list update and
// the journal record are committed together, subscribers are notified after
// the commit. Nothing is written and nobody is notified on error.
func (l *Ledger) Submit(caller registry.AccountID, h registry.Hash) (registry.ContractSubmitted, error) {
	l.mtx.Lock()

	r, err := l.submit(caller, h)
	if err != nil {
		l.mtx.Unlock()
		return registry.ContractSubmitted{}, err
	}

	// keep notifications in commit order without blocking readers
	l.notifyMtx.Lock()
	l.mtx.Unlock()
	defer l.notifyMtx.Unlock()

	l.log.Info(registry.ContractSubmittedEvent,
		zap.Uint64("seq", r.Seq),
		zap.Stringer("submitter", r.Event.Submitter),
		zap.String("contract_hash", r.Event.ContractHash.StringBE()))

	for _, f := range l.subscribers() {
		f(r)
	}

	return r.Event, nil
}

func (l *Ledger) submit(caller registry.AccountID, h registry.Hash) (Record, error) {
	tx := storage.NewMemCachedStore(l.store)

	c, ev, err := registry.Submit(tx, caller, h)
	if err != nil {
		return Record{}, fmt.Errorf("submit: %w", err)
	}

	tx.Put(c.Key, c.Value)

	seq, err := l.nextSeq(tx)
	if err != nil {
		return Record{}, err
	}

	raw, err := stackitem.Serialize(ev.ToStackItem())
	if err != nil {
		return Record{}, fmt.Errorf("encode notification: %w", err)
	}

	tx.Put(eventKey(seq), raw)
	tx.Put([]byte{eventSeqKey}, seqBytes(seq+1))

	if _, err = tx.Persist(); err != nil {
		return Record{}, fmt.Errorf("persist submission: %w", err)
	}

	return Record{Seq: seq, Event: ev}, nil
}

// Import loads registry state dumped from the registry contract storage into
// the empty ledger. iterate must pass every contract storage item to the
// given function and stop on its error. Only owner and submission list items
// are accepted. The journal is not restored since contract storage does not
// keep notifications. Nothing is written on error.
func (l *Ledger) Import(iterate func(f func(key, value []byte) error) error) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	_, err := registry.Owner(l.store)
	if err == nil {
		return registry.ErrAlreadyConstructed
	} else if !errors.Is(err, registry.ErrNotConstructed) {
		return err
	}

	if !l.isEmpty() {
		return ErrNotEmpty
	}

	var (
		tx       = storage.NewMemCachedStore(l.store)
		accounts []registry.AccountID
	)

	err = iterate(func(key, value []byte) error {
		if acc, ok := registry.ParseSubmissionsKey(key); ok {
			accounts = append(accounts, acc)
		} else if !bytes.Equal(key, registry.OwnerKey()) {
			return fmt.Errorf("unexpected storage item with key %x", key)
		}

		tx.Put(bytes.Clone(key), bytes.Clone(value))

		return nil
	})
	if err != nil {
		return fmt.Errorf("read registry state: %w", err)
	}

	owner, err := registry.Owner(tx)
	if err != nil {
		return fmt.Errorf("imported owner: %w", err)
	}

	for i := range accounts {
		if _, err = registry.Submissions(tx, accounts[i]); err != nil {
			return fmt.Errorf("imported submissions: %w", err)
		}
	}

	if _, err = tx.Persist(); err != nil {
		return fmt.Errorf("persist imported state: %w", err)
	}

	l.log.Info("registry state imported",
		zap.Stringer("owner", owner), zap.Int("accounts", len(accounts)))

	return nil
}

// Submissions returns hashes submitted by the account, oldest first.
func (l *Ledger) Submissions(account registry.AccountID) ([]registry.Hash, error) {
	l.mtx.RLock()
	defer l.mtx.RUnlock()

	return registry.Submissions(l.store, account)
}

// Owner returns the account which constructed the registry.
func (l *Ledger) Owner() (registry.AccountID, error) {
	l.mtx.RLock()
	defer l.mtx.RUnlock()

	return registry.Owner(l.store)
}

// Events returns up to limit journaled notifications starting from the
// given sequence number. Non-positive limit means no limit.
func (l *Ledger) Events(from uint64, limit int) ([]Record, error) {
	l.mtx.RLock()
	defer l.mtx.RUnlock()

	next, err := l.nextSeq(l.store)
	if err != nil {
		return nil, err
	}

	var res []Record

	for seq := from; seq < next && (limit <= 0 || len(res) < limit); seq++ {
		raw, err := l.store.Get(eventKey(seq))
		if err != nil {
			return nil, fmt.Errorf("read notification #%d: %w", seq, err)
		}

		item, err := stackitem.Deserialize(raw)
		if err != nil {
			return nil, fmt.Errorf("decode notification #%d: %w", seq, err)
		}

		r := Record{Seq: seq}
		if err = r.Event.FromStackItem(item); err != nil {
			return nil, fmt.Errorf("decode notification #%d: %w", seq, err)
		}

		res = append(res, r)
	}

	return res, nil
}

// Subscribe registers f to be called with every notification committed
// after the call. Notifications are delivered synchronously in commit order
// from the submitting goroutine, so f must not submit to the same Ledger. f
// may subscribe and unsubscribe, such changes take effect from the next
// notification. Returned function cancels the subscription.
func (l *Ledger) Subscribe(f func(Record)) (unsubscribe func()) {
	l.subsMtx.Lock()
	defer l.subsMtx.Unlock()

	id := l.subsID
	l.subsID++
	l.subs[id] = f

	return func() {
		l.subsMtx.Lock()
		delete(l.subs, id)
		l.subsMtx.Unlock()
	}
}

func (l *Ledger) subscribers() []func(Record) {
	l.subsMtx.Lock()
	defer l.subsMtx.Unlock()

	res := make([]func(Record), 0, len(l.subs))
	for _, f := range l.subs {
		res = append(res, f)
	}

	return res
}

// Close closes the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}

func (l *Ledger) nextSeq(st registry.Reader) (uint64, error) {
	raw, err := st.Get([]byte{eventSeqKey})
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("read notification counter: %w", err)
	}

	if len(raw) != 8 {
		return 0, fmt.Errorf("invalid notification counter length %d", len(raw))
	}

	return binary.BigEndian.Uint64(raw), nil
}

// isEmpty checks that the store holds neither submission lists nor journal.
func (l *Ledger) isEmpty() bool {
	for _, p := range [][]byte{registry.SubmissionsPrefix(), {eventPrefix}, {eventSeqKey}} {
		var found bool

		l.store.Seek(storage.SeekRange{Prefix: p}, func(_, _ []byte) bool {
			found = true
			return false
		})

		if found {
			return false
		}
	}

	return true
}

func eventKey(seq uint64) []byte {
	return append([]byte{eventPrefix}, seqBytes(seq)...)
}

func seqBytes(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

package flash

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/whisper/flashscope/internal/metrics"
)

const (
	// KeyPrefix starts every session key owned by the flash scope.
	KeyPrefix = "flash_"

	// Separator sits between KeyPrefix and the token.
	Separator = "."
)

// NamespacedView confines a Store to the keys of one token:
//
//	flash_.<token><key>
//
// Nothing is cached; every call goes to the store.
type NamespacedView struct {
	store  Store
	prefix string
}

// NewNamespacedView returns the view of store owned by token.
func NewNamespacedView(store Store, token Token) *NamespacedView {
	return &NamespacedView{
		store:  store,
		prefix: KeyPrefix + Separator + string(token),
	}
}

// SessionKey returns the composite store key for key.
func (v *NamespacedView) SessionKey(key string) string {
	return v.prefix + key
}

// Get returns the raw value stored under key.
func (v *NamespacedView) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := v.store.Get(ctx, v.SessionKey(key))
	if err != nil {
		return nil, false, storeError("get", key, err)
	}
	return data, ok, nil
}

// Put stores value under key.
func (v *NamespacedView) Put(ctx context.Context, key string, value []byte) error {
	if err := v.store.Put(ctx, v.SessionKey(key), value); err != nil {
		return storeError("put", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (v *NamespacedView) Remove(ctx context.Context, key string) error {
	if err := v.store.Remove(ctx, v.SessionKey(key)); err != nil {
		return storeError("remove", key, err)
	}
	return nil
}

// Keys lists the keys of this namespace with the prefix stripped.
func (v *NamespacedView) Keys(ctx context.Context) ([]string, error) {
	all, err := v.store.Keys(ctx)
	if err != nil {
		return nil, storeError("keys", "", err)
	}
	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, v.prefix) {
			keys = append(keys, k[len(v.prefix):])
		}
	}
	return keys, nil
}

// Clear removes every key of this namespace and returns how many were
// removed. Entries of other tokens are left alone. All keys are attempted;
// failures are aggregated.
func (v *NamespacedView) Clear(ctx context.Context) (int, error) {
	keys, err := v.Keys(ctx)
	if err != nil {
		return 0, err
	}
	var (
		errs    *multierror.Error
		removed int
	)
	for _, k := range keys {
		if err := v.Remove(ctx, k); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs.ErrorOrNil()
}

func storeError(op, key string, err error) error {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	if key == "" {
		return fmt.Errorf("flash: store %s: %w", op, err)
	}
	return fmt.Errorf("flash: store %s %q: %w", op, key, err)
}

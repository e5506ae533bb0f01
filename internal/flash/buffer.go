package flash

import (
	"context"
	"fmt"
	"reflect"
)

// Buffer is one logical flash map: a token plus the namespaced view of the
// session store it owns. Values go through the codec on every access.
type Buffer struct {
	token Token
	view  *NamespacedView
	codec Codec
}

// NewBuffer returns the buffer named by token.
func NewBuffer(store Store, token Token, codec Codec) *Buffer {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Buffer{
		token: token,
		view:  NewNamespacedView(store, token),
		codec: codec,
	}
}

// Token returns the buffer's token.
func (b *Buffer) Token() Token { return b.token }

// View returns the underlying namespaced view.
func (b *Buffer) View() *NamespacedView { return b.view }

// Get returns the decoded value under key.
func (b *Buffer) Get(ctx context.Context, key string) (any, bool, error) {
	data, ok, err := b.view.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := b.codec.Unmarshal(data)
	if err != nil {
		return nil, false, fmt.Errorf("flash: decode %q: %w", key, err)
	}
	return v, true, nil
}

// Put encodes value and stores it under key.
func (b *Buffer) Put(ctx context.Context, key string, value any) error {
	data, err := b.codec.Marshal(value)
	if err != nil {
		return fmt.Errorf("flash: encode %q: %w", key, err)
	}
	return b.view.Put(ctx, key, data)
}

// Remove deletes key.
func (b *Buffer) Remove(ctx context.Context, key string) error {
	return b.view.Remove(ctx, key)
}

// ContainsKey reports whether key is present.
func (b *Buffer) ContainsKey(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.view.Get(ctx, key)
	return ok, err
}

// Keys lists the buffer's keys.
func (b *Buffer) Keys(ctx context.Context) ([]string, error) {
	return b.view.Keys(ctx)
}

// Entries returns a snapshot of the whole buffer.
func (b *Buffer) Entries(ctx context.Context) (map[string]any, error) {
	keys, err := b.view.Keys(ctx)
	if err != nil {
		return nil, err
	}
	entries := make(map[string]any, len(keys))
	for _, k := range keys {
		v, ok, err := b.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		// Another request may have removed k since the listing.
		if ok {
			entries[k] = v
		}
	}
	return entries, nil
}

// Values returns the buffer's values in no particular order.
func (b *Buffer) Values(ctx context.Context) ([]any, error) {
	entries, err := b.Entries(ctx)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(entries))
	for _, v := range entries {
		values = append(values, v)
	}
	return values, nil
}

// ContainsValue reports whether any entry deep-equals value once both have
// been through the codec.
func (b *Buffer) ContainsValue(ctx context.Context, value any) (bool, error) {
	want, err := b.normalize(value)
	if err != nil {
		return false, err
	}
	values, err := b.Values(ctx)
	if err != nil {
		return false, err
	}
	for _, v := range values {
		if reflect.DeepEqual(v, want) {
			return true, nil
		}
	}
	return false, nil
}

// Size returns the number of entries.
func (b *Buffer) Size(ctx context.Context) (int, error) {
	keys, err := b.view.Keys(ctx)
	return len(keys), err
}

// IsEmpty reports whether the buffer has no entries.
func (b *Buffer) IsEmpty(ctx context.Context) (bool, error) {
	n, err := b.Size(ctx)
	return n == 0, err
}

// Clear deletes every entry and returns how many were removed.
func (b *Buffer) Clear(ctx context.Context) (int, error) {
	return b.view.Clear(ctx)
}

// normalize passes value through the codec so it compares equal to what Get
// returns for the same input.
func (b *Buffer) normalize(value any) (any, error) {
	data, err := b.codec.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("flash: encode value: %w", err)
	}
	return b.codec.Unmarshal(data)
}

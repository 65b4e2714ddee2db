// Package hydrate turns values read from a snapshot into caller-supplied Go
// types.
package hydrate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-store/layering"
)

// ErrNilPayload is returned when there is nothing to decode.
var ErrNilPayload = errors.New("hydrate: payload is nil")

// Source identifies where a payload was read from.
type Source struct {
	SnapshotID string
	Revision   uint64
	Path       string
}

// String renders the source as path@revision, using <root> for the empty
// path.
func (s Source) String() string {
	path := s.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("%s@%d", path, s.Revision)
}

// PreHook may rewrite the payload before it is decoded. Returning nil keeps
// the current payload.
type PreHook func(Source, any) (any, error)

// PostHook may adjust or reject the decoded value.
type PostHook[T any] func(Source, *T) error

// CustomDecoder replaces the JSON step.
type CustomDecoder[T any] func(Source, any) (T, error)

// DecoderOption configures a Decoder.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts snapshot values into T. A payload that already holds a T
// is deep copied directly; anything else goes through encoding/json unless a
// CustomDecoder is set.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	useNumber bool
	strict    bool
	custom    CustomDecoder[T]
}

// WithPreHook runs hook before decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook runs hook after decoding.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithUseNumber keeps numbers bound to interface fields as json.Number.
func WithUseNumber[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.useNumber = true
	}
}

// WithStrict rejects object keys that T has no field for.
func WithStrict[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// WithCustomDecoder replaces the JSON step with decoder.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

// NewDecoder builds a Decoder from opts.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T. The payload is deep copied first, so hooks
// may change it freely without touching the snapshot it came from.
func (d *Decoder[T]) Decode(src Source, payload any) (T, error) {
	var zero T
	if payload == nil {
		return zero, fmt.Errorf("%w at %s", ErrNilPayload, src)
	}

	current := layering.Clone(payload)
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(src, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook at %s failed: %w", src, err)
		}
		if next != nil {
			current = next
		}
	}

	result, err := d.convert(src, current)
	if err != nil {
		return zero, err
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(src, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook at %s failed: %w", src, err)
		}
	}
	return result, nil
}

func (d *Decoder[T]) convert(src Source, payload any) (T, error) {
	var result T
	if d.custom != nil {
		out, err := d.custom(src, payload)
		if err != nil {
			return result, fmt.Errorf("hydrate: custom decoder at %s failed: %w", src, err)
		}
		return out, nil
	}
	if direct, ok := payload.(T); ok && !d.useNumber {
		return direct, nil
	}

	buffer, err := json.Marshal(payload)
	if err != nil {
		return result, fmt.Errorf("hydrate: marshal payload at %s: %w", src, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	if d.useNumber {
		decoder.UseNumber()
	}
	if d.strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(&result); err != nil {
		return result, fmt.Errorf("hydrate: decode %s: %w", src, err)
	}
	return result, nil
}

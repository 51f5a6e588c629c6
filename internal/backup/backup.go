// Package backup exports and imports the whole application namespace as
// one JSON document.
//
// A dump holds the raw string value of every key under schema.KeyPrefix.
// Import writes them back verbatim: no merge, no validation of the values,
// and keys absent from the dump are left as they are.
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/guieduc/guieduc/internal/kv"
	"github.com/guieduc/guieduc/internal/schema"
)

// Dump is a full-namespace export.
type Dump struct {
	Origin     string            `json:"origin"`
	ExportedAt time.Time         `json:"exportedAt"`
	Data       map[string]string `json:"data"`
}

// Keys returns the dumped keys in order.
func (d Dump) Keys() []string {
	keys := make([]string, 0, len(d.Data))
	for k := range d.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Export reads every application key of ns.
func Export(ctx context.Context, ns kv.Namespace, origin string) (Dump, error) {
	keys, err := ns.Keys(ctx, schema.KeyPrefix)
	if err != nil {
		return Dump{}, fmt.Errorf("failed to list keys: %w", err)
	}

	d := Dump{
		Origin:     origin,
		ExportedAt: time.Now().UTC(),
		Data:       make(map[string]string, len(keys)),
	}
	for _, k := range keys {
		e, ok, err := ns.Get(ctx, k)
		if err != nil {
			return Dump{}, fmt.Errorf("failed to read %s: %w", k, err)
		}
		if ok {
			d.Data[k] = e.Value
		}
	}
	return d, nil
}

// Import writes every key of d into ns and returns how many were written.
// Keys outside the application prefix are skipped. A failed write stops the
// import; keys written before it stay written.
func Import(ctx context.Context, ns kv.Namespace, d Dump) (int, error) {
	n := 0
	for _, k := range d.Keys() {
		if !schema.IsAppKey(k) {
			continue
		}
		if err := ns.Set(ctx, k, d.Data[k]); err != nil {
			return n, fmt.Errorf("failed to import %s: %w", k, err)
		}
		n++
	}
	return n, nil
}

// Encode writes d as indented JSON.
func Encode(w io.Writer, d Dump) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to encode dump: %w", err)
	}
	return nil
}

// Decode reads a dump. A document without a data object is rejected.
func Decode(r io.Reader) (Dump, error) {
	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Dump{}, fmt.Errorf("failed to decode dump: %w", err)
	}
	if d.Data == nil {
		return Dump{}, fmt.Errorf("failed to decode dump: missing data object")
	}
	for k := range d.Data {
		if strings.TrimSpace(k) == "" {
			return Dump{}, fmt.Errorf("failed to decode dump: empty key")
		}
	}
	return d, nil
}

// Package device holds what every exported USB device shares: creation
// options, report building and the per-export context.
package device

import (
	"context"

	"github.com/simrig/hshifter/usbip"
)

type contextKey int

const (
	ExportMetaKey contextKey = iota
)

// WithExportMeta returns a child context carrying the device's bus identity.
func WithExportMeta(ctx context.Context, meta *usbip.ExportMeta) context.Context {
	return context.WithValue(ctx, ExportMetaKey, meta)
}

// GetDeviceMeta extracts the device metadata from a device context.
// Returns nil if the context doesn't contain device metadata.
func GetDeviceMeta(ctx context.Context) *usbip.ExportMeta {
	if meta, ok := ctx.Value(ExportMetaKey).(*usbip.ExportMeta); ok {
		return meta
	}
	return nil
}

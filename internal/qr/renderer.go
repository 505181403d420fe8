// Package qr renders the QR codes printed on registrant invitations.
package qr

import (
	"fmt"
	"sync"

	qrcode "github.com/skip2/go-qrcode"

	"presensi/internal/metrics"
	"presensi/internal/model"
)

// RenderFunc encodes payload into a PNG of the given pixel size.
type RenderFunc func(payload string, size int) ([]byte, error)

// Encode renders with medium error correction.
func Encode(payload string, size int) ([]byte, error) {
	return qrcode.Encode(payload, qrcode.Medium, size)
}

type entry struct {
	payload string
	png     []byte
}

// Renderer memoises rendered codes per registrant. A cached image is reused
// only while the registrant's payload is unchanged.
type Renderer struct {
	size   int
	render RenderFunc

	mu    sync.Mutex
	cache map[model.Ref]entry
}

// New creates a renderer producing size x size images.
func New(size int, render RenderFunc) *Renderer {
	if size <= 0 {
		size = 256
	}
	if render == nil {
		render = Encode
	}
	return &Renderer{size: size, render: render, cache: make(map[model.Ref]entry)}
}

// PNG returns the image for ref, rendering it when missing or stale.
func (r *Renderer) PNG(ref model.Ref, payload string) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qr: empty payload for %s", ref)
	}
	r.mu.Lock()
	e, ok := r.cache[ref]
	r.mu.Unlock()
	if ok && e.payload == payload {
		return e.png, nil
	}

	png, err := r.render(payload, r.size)
	if err != nil {
		return nil, fmt.Errorf("qr: render %s: %w", ref, err)
	}
	metrics.QRRenders.Inc()

	r.mu.Lock()
	r.cache[ref] = entry{payload: payload, png: png}
	r.mu.Unlock()
	return png, nil
}

// Invalidate drops the cached image for ref.
func (r *Renderer) Invalidate(ref model.Ref) {
	r.mu.Lock()
	delete(r.cache, ref)
	r.mu.Unlock()
}

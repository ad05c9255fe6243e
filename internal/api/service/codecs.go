package service

import "github.com/mathhub/mdh-explorer/internal/codec"

// CodecInfo describes one registered codec.
type CodecInfo struct {
	Slug      string   `json:"slug"`
	Ordering  string   `json:"ordering"`
	Input     string   `json:"input,omitempty"`
	Exporters []string `json:"exporters,omitempty"`
}

// Codecs describes every codec known to the backend's registry, in slug
// order.
func (e *Explorer) Codecs() []CodecInfo {
	reg := e.backend.Registry()
	out := []CodecInfo{}
	for _, slug := range reg.Slugs() {
		out = append(out, Describe(reg.GetWithFallback(slug)))
	}
	return out
}

// Describe reports the ordering, filter input and exporters of c.
func Describe(c codec.Codec) CodecInfo {
	info := CodecInfo{Slug: c.Slug(), Ordering: c.Ordered().String()}
	if ed, ok := c.(codec.FilterEditor); ok {
		info.Input = string(ed.FilterInput())
	}
	for _, ex := range codec.ExportersOf(c) {
		info.Exporters = append(info.Exporters, ex.Info().Slug)
	}
	return info
}

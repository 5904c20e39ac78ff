package sources

import (
	"context"

	"newsharvest/internal/domain"
	"newsharvest/internal/extract"
	"newsharvest/internal/fetch"
)

// Planned is a registered placeholder for a source whose adapter has not
// been written yet. Requesting it yields an explicit not-implemented
// outcome rather than a silent skip.
type Planned struct {
	name domain.Source
}

var _ Adapter = (*Planned)(nil)

// NewPlanned registers a placeholder for the named source.
func NewPlanned(name domain.Source) *Planned {
	return &Planned{name: name}
}

// Name identifies the adapter inside the registry.
func (p *Planned) Name() domain.Source {
	return p.name
}

// Extractor returns an empty chain; it is never reached because listing
// always fails with ErrNotImplemented.
func (p *Planned) Extractor() *extract.Chain {
	return extract.NewChain(0)
}

// ListCandidates always reports the adapter as unbuilt.
func (p *Planned) ListCandidates(ctx context.Context, client *fetch.Client, category string, maxPages int) ([]Candidate, error) {
	return nil, ErrNotImplemented
}

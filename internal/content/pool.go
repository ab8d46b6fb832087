package content

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/epicenterhq/epicenter-go/pkg/cmap"
)

// Provider is the lifecycle a provider factory attaches to a content
// document: readiness gating Ensure, teardown run by Destroy. Either field
// may be nil.
type Provider struct {
	WhenReady func(ctx context.Context) error
	Destroy   func() error
}

// ProviderFactory runs synchronously when a content document is first
// materialized. Asynchronous setup belongs behind the returned Provider's
// WhenReady.
type ProviderFactory func(doc *Doc) (Provider, error)

type poolEntry struct {
	doc       *Doc
	providers []Provider

	// ready is closed once every provider's WhenReady has resolved (or
	// failed). Concurrent Ensure calls for the same id all wait on it.
	ready chan struct{}
	err   error
}

// Pool is the in-memory registry of content documents: one gc-off document
// per file id, materialized on demand, with concurrent Ensure calls
// deduplicated so provider factories run exactly once per file.
type Pool struct {
	factories []ProviderFactory
	entries   *cmap.Map[string, *poolEntry]
}

// NewPool creates a Pool whose documents are wired through the given
// provider factories on materialization.
func NewPool(factories ...ProviderFactory) *Pool {
	return &Pool{
		factories: factories,
		entries:   cmap.New[string, *poolEntry](),
	}
}

// Ensure returns the content document for fileID, materializing it on
// first call. Idempotent: the same id always yields the same document, and
// concurrent calls share one materialization — the winner of the entry
// slot runs the factories, everyone waits on the same readiness. If a
// factory or a provider's readiness fails, providers already created for
// the file are destroyed in reverse order, the entry is removed, and the
// error propagates to every waiting caller.
func (p *Pool) Ensure(ctx context.Context, fileID string) (*Doc, error) {
	e := &poolEntry{
		doc:   NewDoc(fileID),
		ready: make(chan struct{}),
	}
	actual, existed := p.entries.GetOrSet(fileID, e)
	if existed {
		return p.await(ctx, actual)
	}

	// This call won the slot: run the factories synchronously, then gate
	// readiness behind the providers' WhenReady.
	for i, factory := range p.factories {
		prov, err := factory(e.doc)
		if err != nil {
			p.teardown(fileID, e, fmt.Errorf("content: provider %d for %s: %w", i, fileID, err))
			return nil, e.err
		}
		e.providers = append(e.providers, prov)
	}

	go func() {
		for i, prov := range e.providers {
			if prov.WhenReady == nil {
				continue
			}
			if err := prov.WhenReady(context.Background()); err != nil {
				p.teardown(fileID, e, fmt.Errorf("content: provider %d readiness for %s: %w", i, fileID, err))
				return
			}
		}
		close(e.ready)
	}()

	return p.await(ctx, e)
}

// teardown destroys e's providers in reverse order, records err, removes
// the entry, and releases every waiter.
func (p *Pool) teardown(fileID string, e *poolEntry, err error) {
	for i := len(e.providers) - 1; i >= 0; i-- {
		if d := e.providers[i].Destroy; d != nil {
			_ = d()
		}
	}
	e.providers = nil
	e.err = err
	p.entries.Delete(fileID)
	close(e.ready)
}

func (p *Pool) await(ctx context.Context, e *poolEntry) (*Doc, error) {
	select {
	case <-e.ready:
		if e.err != nil {
			return nil, e.err
		}
		return e.doc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Materialized reports whether fileID currently has a live document,
// without materializing one.
func (p *Pool) Materialized(fileID string) bool {
	return p.entries.Has(fileID)
}

// Destroy runs the file's provider teardowns in reverse order and drops
// the document. Idempotent; a no-op for ids never ensured.
func (p *Pool) Destroy(fileID string) error {
	e, ok := p.entries.Pop(fileID)
	if !ok {
		return nil
	}
	// An entry still materializing finishes first; its providers must not
	// tear down mid-setup.
	<-e.ready
	if e.err != nil {
		return nil
	}

	var errs []error
	for i := len(e.providers) - 1; i >= 0; i-- {
		if d := e.providers[i].Destroy; d != nil {
			if err := d(); err != nil {
				errs = append(errs, fmt.Errorf("content: destroy provider %d for %s: %w", i, fileID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// DestroyAll destroys every live document, best-effort: each file's
// providers tear down in reverse order, failures are aggregated, and one
// file's failure never blocks another's teardown.
func (p *Pool) DestroyAll() error {
	ids := p.entries.Keys()

	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup
	sem := make(chan struct{}, 8)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			if err := p.Destroy(id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Len returns the number of live documents.
func (p *Pool) Len() int {
	return p.entries.Count()
}

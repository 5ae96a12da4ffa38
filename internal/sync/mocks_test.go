package sync

import (
	"context"
	"fmt"
	stdsync "sync"
	"time"

	"taskboard/internal/docstore"
)

// fakeStore is an in-memory docstore.Store with hooks for failure and
// latency injection. Snapshots are pushed manually via push().
type fakeStore struct {
	mu   stdsync.Mutex
	docs map[string]map[string]docstore.Doc
	seq  int

	snaps   chan docstore.Snapshot
	cancels int

	subscribeErr error
	addErr       error
	updateErr    error
	deleteErr    error
	getErr       error

	// updateGate, when set, blocks Update until the channel is closed.
	updateGate chan struct{}

	updateCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:  map[string]map[string]docstore.Doc{},
		snaps: make(chan docstore.Snapshot, 16),
	}
}

func (f *fakeStore) push(docs ...docstore.Doc) {
	f.snaps <- docstore.Snapshot{Docs: docs}
}

func (f *fakeStore) pushErr(err error) {
	f.snaps <- docstore.Snapshot{Err: err}
}

func (f *fakeStore) put(collection string, d docstore.Doc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[collection] == nil {
		f.docs[collection] = map[string]docstore.Doc{}
	}
	f.docs[collection][d.ID] = d
}

func (f *fakeStore) Add(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return "", f.addErr
	}
	f.seq++
	id := fmt.Sprintf("doc-%d", f.seq)
	if f.docs[collection] == nil {
		f.docs[collection] = map[string]docstore.Doc{}
	}
	f.docs[collection][id] = docstore.Doc{ID: id, Data: doc, UpdatedAt: time.Now()}
	return id, nil
}

func (f *fakeStore) Update(ctx context.Context, collection, id string, patch docstore.Document) error {
	if f.updateGate != nil {
		<-f.updateGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	d, ok := f.docs[collection][id]
	if !ok {
		return docstore.ErrNotFound
	}
	for k, v := range patch {
		d.Data[k] = v
	}
	d.UpdatedAt = time.Now()
	f.docs[collection][id] = d
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.docs[collection][id]; !ok {
		return docstore.ErrNotFound
	}
	delete(f.docs[collection], id)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return docstore.Doc{}, f.getErr
	}
	d, ok := f.docs[collection][id]
	if !ok {
		return docstore.Doc{}, docstore.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) Find(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []docstore.Doc{}
	for _, d := range f.docs[q.Collection] {
		match := true
		for k, v := range q.Filters {
			if s, _ := d.Data[k].(string); s != v {
				match = false
				break
			}
		}
		if match {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) Subscribe(ctx context.Context, q docstore.Query) (<-chan docstore.Snapshot, docstore.CancelFunc, error) {
	if f.subscribeErr != nil {
		return nil, nil, f.subscribeErr
	}
	cancel := func() {
		f.mu.Lock()
		f.cancels++
		f.mu.Unlock()
	}
	return f.snaps, cancel, nil
}

func (f *fakeStore) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu        stdsync.Mutex
	successes []string
	errors    []string
	infos     []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) Info(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.infos = append(n.infos, msg)
}

func (n *recordingNotifier) errorCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.errors)
}

func (n *recordingNotifier) infoCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.infos)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu       stdsync.Mutex
	err      error
	routing  []string
	payloads []any
}

func (p *recordingPublisher) Publish(routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.routing = append(p.routing, routingKey)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.routing...)
}

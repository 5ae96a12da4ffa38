package session

import (
	"context"
	stdsync "sync"

	"taskboard/internal/auth"
	"taskboard/internal/docstore"
)

type fakeProvider struct {
	mu           stdsync.Mutex
	ident        *auth.Identity
	signInErr    error
	signOutErr   error
	signOutCalls int
	states       chan *auth.Identity
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{states: make(chan *auth.Identity, 4)}
}

func (p *fakeProvider) SignIn(ctx context.Context, email, password string) (*auth.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signInErr != nil {
		return nil, p.signInErr
	}
	return p.ident, nil
}

func (p *fakeProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutCalls++
	return p.signOutErr
}

func (p *fakeProvider) StateChanges() <-chan *auth.Identity {
	return p.states
}

// fakeDocs serves profile documents; everything except Get is unused here.
type fakeDocs struct {
	mu     stdsync.Mutex
	docs   map[string]docstore.Doc
	getErr error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string]docstore.Doc{}}
}

func (f *fakeDocs) setGetErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

func (f *fakeDocs) Get(ctx context.Context, collection, id string) (docstore.Doc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return docstore.Doc{}, f.getErr
	}
	d, ok := f.docs[id]
	if !ok {
		return docstore.Doc{}, docstore.ErrNotFound
	}
	return d, nil
}

func (f *fakeDocs) Add(ctx context.Context, collection string, doc docstore.Document) (string, error) {
	panic("not used")
}

func (f *fakeDocs) Update(ctx context.Context, collection, id string, patch docstore.Document) error {
	panic("not used")
}

func (f *fakeDocs) Delete(ctx context.Context, collection, id string) error {
	panic("not used")
}

func (f *fakeDocs) Find(ctx context.Context, q docstore.Query) ([]docstore.Doc, error) {
	panic("not used")
}

func (f *fakeDocs) Subscribe(ctx context.Context, q docstore.Query) (<-chan docstore.Snapshot, docstore.CancelFunc, error) {
	panic("not used")
}

type recordingNotifier struct {
	mu     stdsync.Mutex
	errors []string
}

func (n *recordingNotifier) Success(msg string) {}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) Info(msg string) {}

func (n *recordingNotifier) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}

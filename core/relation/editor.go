// Package relation edits the membership of a many-to-many association against
// a server-confirmed baseline and emits only the net change on save.
package relation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrClosed       = errors.New("relation editor is closed")
	ErrNoChanges    = errors.New("no pending changes")
	ErrSaveInFlight = errors.New("a save is already in progress")
	ErrNoGateway    = errors.New("no persistence gateway configured")
	ErrNoLister     = errors.New("no candidate lister configured")
)

// Candidate is an entity that may be associated.
type Candidate struct {
	ID     int    `json:"id"`
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

// Matches does a case-insensitive match of term on the Label or Detail.
// An empty term matches everything.
func (c Candidate) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(c.Label), term) || strings.Contains(strings.ToLower(c.Detail), term)
}

type (
	// Lister supplies the full candidate list.
	Lister interface {
		ListCandidates(ctx context.Context) ([]Candidate, error)
	}

	// ListerFunc adapts a function to a Lister.
	ListerFunc func(ctx context.Context) ([]Candidate, error)

	// Gateway durably applies a change-set. It is expected to apply both lists atomically.
	Gateway func(ctx context.Context, added, removed []int) error
)

func (f ListerFunc) ListCandidates(ctx context.Context) ([]Candidate, error) {
	return f(ctx)
}

type FetchState int

const (
	FetchIdle FetchState = iota
	FetchLoading
	FetchLoaded
	FetchFailed
)

func (s FetchState) String() string {
	switch s {
	case FetchLoading:
		return "loading"
	case FetchLoaded:
		return "loaded"
	case FetchFailed:
		return "failed"
	default:
		return "idle"
	}
}

// RowStatus tells how a candidate's membership differs from the baseline.
type RowStatus int

const (
	Unchanged RowStatus = iota
	PendingAdd
	PendingRemove
)

func (s RowStatus) String() string {
	switch s {
	case PendingAdd:
		return "will be added"
	case PendingRemove:
		return "will be removed"
	default:
		return ""
	}
}

// Row is a visible candidate with its selection state.
type Row struct {
	Candidate
	Selected bool
	Status   RowStatus
}

// ticket identifies one network request of one editor session.
type ticket struct {
	session uuid.UUID
	seq     uint64
}

type (
	FetchRequest struct {
		ticket
		lister Lister
	}

	FetchResult struct {
		ticket
		Candidates []Candidate
		Err        error
	}

	SaveRequest struct {
		ticket
		Changes ChangeSet
		gateway Gateway
	}

	SaveResult struct {
		ticket
		Changes ChangeSet
		Err     error
	}
)

func (r *FetchRequest) Session() uuid.UUID { return r.session }

// Run performs the candidate fetch. It does not touch the editor.
func (r *FetchRequest) Run(ctx context.Context) FetchResult {
	if r.lister == nil {
		return FetchResult{ticket: r.ticket, Err: ErrNoLister}
	}
	cands, err := r.lister.ListCandidates(ctx)
	return FetchResult{ticket: r.ticket, Candidates: cands, Err: err}
}

func (r *SaveRequest) Session() uuid.UUID { return r.session }

// Run invokes the gateway with the request's change-set. It does not touch the editor.
func (r *SaveRequest) Run(ctx context.Context) SaveResult {
	err := r.gateway(ctx, r.Changes.Added, r.Changes.Removed)
	return SaveResult{ticket: r.ticket, Changes: r.Changes, Err: err}
}

// Editor holds the selection state of one relation editing modal.
//
// Network calls never run inside the Editor: Open, Retry and BeginSave hand out
// requests, and their results come back through ApplyFetch and ApplySave.
// Results from a previous session, or arriving after close, are dropped.
type Editor struct {
	title   string
	lister  Lister
	gateway Gateway

	mu         sync.Mutex
	isOpen     bool
	session    uuid.UUID
	seq        uint64
	fetchSeq   uint64
	baseline   Set
	working    Set
	candidates []Candidate
	search     string
	fetchState FetchState
	fetchErr   error
	saving     bool
	lastErr    error
}

func NewEditor(title string, lister Lister, gateway Gateway) *Editor {
	return &Editor{
		title:    title,
		lister:   lister,
		gateway:  gateway,
		baseline: NewSet(),
		working:  NewSet(),
	}
}

func (e *Editor) Title() string { return e.title }

// Open starts a new session with working := copy(baseline). It returns a
// FetchRequest when candidates is empty, nil otherwise.
func (e *Editor) Open(candidates []Candidate, baseline []int) *FetchRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.isOpen = true
	e.session = uuid.New()
	e.baseline = NewSet(baseline...)
	e.working = e.baseline.Clone()
	e.search = ""
	e.saving = false
	e.lastErr = nil
	e.fetchErr = nil

	if len(candidates) > 0 {
		e.candidates = append([]Candidate(nil), candidates...)
		e.fetchState = FetchLoaded
		return nil
	}
	e.candidates = nil
	return e.newFetchLocked()
}

// Retry issues a new fetch for the current session, e.g. after a failure.
func (e *Editor) Retry() *FetchRequest {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isOpen {
		return nil
	}
	return e.newFetchLocked()
}

func (e *Editor) newFetchLocked() *FetchRequest {
	e.seq++
	e.fetchSeq = e.seq
	e.fetchState = FetchLoading
	e.fetchErr = nil
	return &FetchRequest{ticket: ticket{session: e.session, seq: e.seq}, lister: e.lister}
}

// ApplyFetch records a fetch result and reports whether it was applied.
// Only the latest fetch of the current open session is applied.
func (e *Editor) ApplyFetch(res FetchResult) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isOpen || res.session != e.session || res.seq != e.fetchSeq {
		return false
	}
	if res.Err != nil {
		e.fetchState = FetchFailed
		e.fetchErr = res.Err
		return true
	}
	e.candidates = append([]Candidate(nil), res.Candidates...)
	e.fetchState = FetchLoaded
	e.fetchErr = nil
	return true
}

// Load runs req and applies its result. It is a synchronous helper for callers
// that do not need to stay responsive while the list loads.
func (e *Editor) Load(ctx context.Context, req *FetchRequest) error {
	if req == nil {
		return nil
	}
	res := req.Run(ctx)
	e.ApplyFetch(res)
	return res.Err
}

// Toggle flips the membership of id in the working selection.
// The selection is frozen while a save is in flight.
func (e *Editor) Toggle(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.saving {
		return
	}
	if e.working.Has(id) {
		e.working.Remove(id)
	} else {
		e.working.Add(id)
	}
}

// ToggleAll removes ids from the working selection if all of them are
// selected, and adds all of them otherwise. IDs outside ids are left alone, so
// "select all" only ever affects the currently visible candidates.
func (e *Editor) ToggleAll(ids []int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.toggleAllLocked(ids)
}

func (e *Editor) toggleAllLocked(ids []int) {
	if len(ids) == 0 || e.saving {
		return
	}
	if e.working.HasAll(ids) {
		for _, id := range ids {
			e.working.Remove(id)
		}
		return
	}
	for _, id := range ids {
		e.working.Add(id)
	}
}

// ToggleAllVisible is ToggleAll over the candidates matching the search term.
func (e *Editor) ToggleAllVisible() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.toggleAllLocked(e.visibleIDsLocked())
}

// AllVisibleSelected reports whether every visible candidate is selected.
func (e *Editor) AllVisibleSelected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.visibleIDsLocked()
	return len(ids) > 0 && e.working.HasAll(ids)
}

func (e *Editor) SetSearch(term string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.search = term
}

func (e *Editor) Search() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.search
}

// Visible returns the candidates matching the search term, in fetch order.
func (e *Editor) Visible() []Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleLocked()
}

func (e *Editor) visibleLocked() []Candidate {
	visible := make([]Candidate, 0, len(e.candidates))
	for _, c := range e.candidates {
		if c.Matches(e.search) {
			visible = append(visible, c)
		}
	}
	return visible
}

func (e *Editor) VisibleIDs() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visibleIDsLocked()
}

func (e *Editor) visibleIDsLocked() []int {
	visible := e.visibleLocked()
	ids := make([]int, 0, len(visible))
	for _, c := range visible {
		ids = append(ids, c.ID)
	}
	return ids
}

// Rows returns the visible candidates with their selection state and pending badge.
func (e *Editor) Rows() []Row {
	e.mu.Lock()
	defer e.mu.Unlock()

	visible := e.visibleLocked()
	rows := make([]Row, 0, len(visible))
	for _, c := range visible {
		row := Row{Candidate: c, Selected: e.working.Has(c.ID)}
		switch inBase := e.baseline.Has(c.ID); {
		case row.Selected && !inBase:
			row.Status = PendingAdd
		case !row.Selected && inBase:
			row.Status = PendingRemove
		}
		rows = append(rows, row)
	}
	return rows
}

func (e *Editor) IsSelected(id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working.Has(id)
}

// Working returns the working selection, sorted.
func (e *Editor) Working() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.working.Slice()
}

// Baseline returns the baseline selection, sorted.
func (e *Editor) Baseline() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseline.Slice()
}

func (e *Editor) HasChanges() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.working.Equal(e.baseline)
}

// ChangeSet returns {working − baseline, baseline − working}.
func (e *Editor) ChangeSet() ChangeSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Diff(e.baseline, e.working)
}

// BeginSave snapshots the pending change-set into a SaveRequest.
func (e *Editor) BeginSave() (*SaveRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case !e.isOpen:
		return nil, ErrClosed
	case e.saving:
		return nil, ErrSaveInFlight
	case e.gateway == nil:
		return nil, ErrNoGateway
	}
	cs := Diff(e.baseline, e.working)
	if cs.IsEmpty() {
		return nil, ErrNoChanges
	}

	e.seq++
	e.saving = true
	e.lastErr = nil
	return &SaveRequest{ticket: ticket{session: e.session, seq: e.seq}, Changes: cs, gateway: e.gateway}, nil
}

// ApplySave records a save result and reports whether it was applied.
// On success the editor closes; on failure it stays open with the working
// selection intact and the error kept as LastError.
func (e *Editor) ApplySave(res SaveResult) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.isOpen || res.session != e.session {
		return false
	}
	e.saving = false
	if res.Err != nil {
		e.lastErr = res.Err
		return true
	}
	e.closeLocked()
	return true
}

// Save sends the pending change-set through the gateway and closes the editor on success.
func (e *Editor) Save(ctx context.Context) error {
	req, err := e.BeginSave()
	if err != nil {
		return err
	}
	res := req.Run(ctx)
	e.ApplySave(res)
	return res.Err
}

// Cancel discards the working selection and closes without calling the gateway.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closeLocked()
}

func (e *Editor) closeLocked() {
	e.isOpen = false
	e.saving = false
	e.search = ""
	e.working = e.baseline.Clone()
}

func (e *Editor) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.isOpen
}

func (e *Editor) Session() uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *Editor) FetchState() (FetchState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fetchState, e.fetchErr
}

func (e *Editor) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// LastError returns the error of the last failed save of this session.
func (e *Editor) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

func (e *Editor) Candidates() []Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Candidate(nil), e.candidates...)
}

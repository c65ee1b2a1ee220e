// Package session runs one editing session per open spreadsheet view: it owns
// the sheet, drives the rendering surface, schedules autosave flushes and is
// torn down when the view goes away.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"shared-spreadsheet-editor/internal/autosave"
	"shared-spreadsheet-editor/internal/export"
	"shared-spreadsheet-editor/internal/remote"
	"shared-spreadsheet-editor/internal/sheet"
)

// Persistence loads and saves files. *remote.Client implements it.
type Persistence interface {
	Load(ctx context.Context, id string) (remote.File, error)
	Save(ctx context.Context, id, name string, doc *sheet.Document) error
}

type Config struct {
	FileID        string
	User          string
	AutosaveDelay time.Duration
	BannerTimeout time.Duration
	HistoryLimit  int
	SaveTimeout   time.Duration
}

var errNoSelection = errors.New("no cell selected")

type phase int

const (
	phaseLoading phase = iota
	phaseReady
	phaseFailed
	phaseClosed
)

// Session is the page-scoped editing state. All of its fields are owned by
// the event loop started with Run; other goroutines reach it through post.
type Session struct {
	ID string

	cfg     Config
	store   Persistence
	surface Surface
	out     Outbox
	clock   autosave.Clock
	log     *logrus.Entry
	onSaved func()
	onEnd   func()

	events chan func()
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	phase        phase
	name         string
	sheet        *sheet.Sheet
	sel          *sheet.Selection
	saver        *autosave.Scheduler
	headersDirty bool
	metaKeys     []sheet.Coord
	banner       autosave.Timer
	bannerGen    uint64
}

type Option func(*Session)

// WithClock replaces the timer source. The clock must deliver callbacks on the
// session's event loop.
func WithClock(c autosave.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithLogger(log *logrus.Entry) Option {
	return func(s *Session) { s.log = log }
}

// OnSaved registers fn to run on the loop after every successful flush.
func OnSaved(fn func()) Option {
	return func(s *Session) { s.onSaved = fn }
}

// OnEnd registers fn to run on the loop when the session ends itself, after
// an authentication failure.
func OnEnd(fn func()) Option {
	return func(s *Session) { s.onEnd = fn }
}

func New(cfg Config, store Persistence, surface Surface, out Outbox, opts ...Option) *Session {
	if cfg.AutosaveDelay <= 0 {
		cfg.AutosaveDelay = autosave.DefaultDelay
	}
	if cfg.BannerTimeout <= 0 {
		cfg.BannerTimeout = 3 * time.Second
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 30 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:      uuid.NewString(),
		cfg:     cfg,
		store:   store,
		surface: surface,
		out:     out,
		log:     logrus.NewEntry(logrus.StandardLogger()),
		events:  make(chan func()),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = autosave.PostClock{Post: func(f func()) { s.post(f) }}
	}
	s.log = s.log.WithFields(logrus.Fields{"component": "session", "session": s.ID, "file": cfg.FileID})
	return s
}

// Run starts loading the file and processes events until the session is
// closed or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.log.WithField("user", s.cfg.User).Info("session: open")
	s.open()
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return ctx.Err()
		case fn := <-s.events:
			fn()
			if s.phase == phaseClosed {
				return nil
			}
		}
	}
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// post queues fn on the event loop. It reports false once the session is gone.
func (s *Session) post(fn func()) bool {
	select {
	case s.events <- fn:
		return true
	case <-s.done:
		return false
	}
}

// call runs fn on the event loop and waits for it.
func (s *Session) call(fn func()) bool {
	ran := make(chan struct{})
	if !s.post(func() { fn(); close(ran) }) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-s.done:
		return false
	}
}

// Deliver queues a client message for the event loop.
func (s *Session) Deliver(m Message) bool {
	return s.post(func() { s.Receive(m) })
}

// Close tears the session down: the autosave timer is cancelled and late
// load or flush results are discarded.
func (s *Session) Close() {
	s.post(s.teardown)
}

func (s *Session) teardown() {
	if s.phase == phaseClosed {
		return
	}
	s.phase = phaseClosed
	if s.saver != nil {
		s.saver.Stop()
	}
	s.clearBanner()
	s.cancel()
	close(s.done)
	s.log.Info("session: closed")
}

func (s *Session) open() {
	s.phase = phaseLoading
	go func() {
		f, err := s.store.Load(s.ctx, s.cfg.FileID)
		s.post(func() { s.loaded(f, err) })
	}()
}

func (s *Session) loaded(f remote.File, err error) {
	if s.phase != phaseLoading {
		return
	}
	if errors.Is(err, remote.ErrAuth) {
		s.authRequired()
		return
	}
	var doc *sheet.Document
	if err == nil {
		doc, err = f.Document()
	}
	if err != nil {
		s.phase = phaseFailed
		s.log.WithError(err).Warn("session: load failed")
		s.out.Send(newMessage(TypeLoadError, map[string]string{"file_id": s.cfg.FileID, "error": err.Error()}))
		return
	}

	s.name = f.Name
	s.sheet = sheet.New(doc, sheet.WithHistoryLimit(s.cfg.HistoryLimit), sheet.WithChangeHook(s.changed))
	s.sel = sheet.NewSelection(s.sheet)
	s.saver = autosave.New(s.cfg.AutosaveDelay, s.clock, s.flush, s.log)
	s.phase = phaseReady
	s.log.WithFields(logrus.Fields{"rows": doc.RowCount(), "cols": doc.ColCount()}).Debug("session: loaded")

	s.out.Send(newMessage(TypeInit, map[string]string{"file_id": s.cfg.FileID, "name": s.name}))
	s.surface.LoadData(s.sheet.Grid())
	s.syncMarks()
	s.surface.Render()
}

func (s *Session) authRequired() {
	s.log.Warn("session: authentication required")
	s.out.Send(newMessage(TypeAuthRequired, map[string]string{"file_id": s.cfg.FileID}))
	s.teardown()
	if s.onEnd != nil {
		s.onEnd()
	}
}

func (s *Session) changed(c sheet.Change) {
	if c.Kind.Persisted() && s.saver != nil {
		s.saver.Mutated()
	}
}

// Receive handles one client message on the event loop.
func (s *Session) Receive(m Message) {
	ev, err := DecodeEvent(m)
	if err != nil {
		s.commandError(EventKind(m.Type), err)
		return
	}
	s.Dispatch(ev)
}

// Dispatch applies one surface event. Failed commands are reported to the
// client and leave the document unchanged.
func (s *Session) Dispatch(ev Event) {
	if s.phase != phaseReady {
		if s.phase == phaseLoading {
			s.commandError(ev.Kind, errors.New("document is still loading"))
		}
		return
	}
	if ev.Kind == EvHeaderRename {
		if err := s.checkRename(ev); err != nil {
			s.commandError(ev.Kind, err)
			s.surface.Render()
			return
		}
	}
	if obs, ok := s.surface.(Observer); ok {
		obs.Observe(ev)
	}
	if err := s.apply(ev); err != nil {
		s.commandError(ev.Kind, err)
	}
}

func (s *Session) apply(ev Event) error {
	switch ev.Kind {
	case EvSelect:
		text, err := s.sel.Select(ev.Coord)
		if err != nil {
			return err
		}
		s.sendFormula(ev.Coord, text)
	case EvFormulaEdit:
		s.sel.Edit(ev.Text)
	case EvFormulaCommit:
		c, ok := s.sel.Active()
		if err := s.sel.Commit(); err != nil {
			return err
		}
		if ok {
			v, err := s.sheet.GetCell(c)
			if err != nil {
				return err
			}
			s.surface.SetCell(c, v)
			s.surface.Render()
		}
	case EvCellEdit:
		if _, err := s.sheet.SetCellAt(ev.Coord, ev.Value); err != nil {
			return err
		}
		s.refreshFormula()
	case EvHeaderRename:
		s.headersDirty = true
		s.saver.Mutated()
	case EvInsertRow, EvDeleteRow, EvInsertCol, EvDeleteCol:
		return s.structural(ev)
	case EvToggleStyle, EvSetAlignment:
		ranges, err := s.ranges(ev)
		if err != nil {
			return err
		}
		for _, r := range ranges {
			if ev.Kind == EvToggleStyle {
				err = s.sheet.ToggleStyle(r, ev.Style)
			} else {
				err = s.sheet.SetAlignment(r, ev.Align)
			}
			if err != nil {
				return err
			}
		}
		s.syncMarks()
		s.surface.Render()
	case EvMerge, EvUnmerge:
		ranges, err := s.ranges(ev)
		if err != nil {
			return err
		}
		for _, r := range ranges {
			if ev.Kind == EvMerge {
				err = s.sheet.Merge(r)
			} else {
				anchor := r.Anchor()
				if region, ok := s.sheet.Merges().At(anchor); ok {
					anchor = region.Anchor()
				}
				err = s.sheet.Unmerge(anchor)
			}
			if err != nil {
				return err
			}
		}
		s.syncMarks()
		s.surface.Render()
	case EvUndo, EvRedo:
		if err := s.reconcileHeaders(); err != nil {
			return err
		}
		replay := s.sheet.Undo
		if ev.Kind == EvRedo {
			replay = s.sheet.Redo
		}
		ok, err := replay()
		if err != nil {
			return err
		}
		if ok {
			s.resync()
		}
	case EvSave:
		s.saver.SaveNow()
	case EvDownload:
		return s.download(ev.Format)
	}
	return nil
}

func (s *Session) ranges(ev Event) ([]sheet.Rect, error) {
	if len(ev.Ranges) > 0 {
		return ev.Ranges, nil
	}
	if sel := s.surface.Selection(); len(sel) > 0 {
		return sel, nil
	}
	return nil, errNoSelection
}

// target resolves the row or column index of a structural command: the
// explicit index, else the selected cell, else fallback.
func (s *Session) target(ev Event, column bool, fallback int) int {
	if ev.Index != nil {
		return *ev.Index
	}
	if sel := s.surface.Selection(); len(sel) > 0 {
		if column {
			return sel[0].Col
		}
		return sel[0].Row
	}
	return fallback
}

func (s *Session) structural(ev Event) error {
	if err := s.reconcileHeaders(); err != nil {
		return err
	}
	doc := s.sheet.Document()
	var (
		op    sheet.StructOp
		index int
		label string
		err   error
	)
	switch ev.Kind {
	case EvInsertRow:
		op = sheet.OpInsertRow
		index = doc.RowCount()
		if ev.Index != nil {
			index = *ev.Index
		}
		err = s.sheet.InsertRow(index)
	case EvDeleteRow:
		op = sheet.OpDeleteRow
		index = s.target(ev, false, doc.RowCount()-1)
		err = s.sheet.DeleteRow(index)
	case EvInsertCol:
		op = sheet.OpInsertColumn
		index = doc.ColCount()
		if ev.Index != nil {
			index = *ev.Index
		}
		label, err = s.sheet.InsertColumn(index, ev.Label)
	case EvDeleteCol:
		op = sheet.OpDeleteColumn
		index = s.target(ev, true, doc.ColCount()-1)
		err = s.sheet.DeleteColumn(index)
	}
	if err != nil {
		return err
	}

	s.surface.Alter(op, index, label)
	g := s.surface.Data()
	doc = s.sheet.Document()
	if len(g.Headers) != doc.ColCount() || len(g.Cells) != doc.RowCount() {
		s.surface.LoadData(s.sheet.Grid())
	}
	s.syncMarks()
	s.surface.Render()
	s.refreshFormula()
	return nil
}

// checkRename rejects a header edit that would leave the surface with a
// header row the document cannot take.
func (s *Session) checkRename(ev Event) error {
	headers := s.surface.Data().Headers
	col := -1
	if ev.Index != nil {
		col = *ev.Index
	}
	if col < 0 || col >= len(headers) {
		return fmt.Errorf("%w: column %d of %d", sheet.ErrInvalidColumn, col, len(headers))
	}
	headers[col] = ev.Label
	return sheet.CheckHeaders(headers)
}

// reconcileHeaders folds header text edited on the surface into the document.
// Headers that cannot be reconciled are dropped from the surface so that
// later saves and edits are not blocked by them.
func (s *Session) reconcileHeaders() error {
	if !s.headersDirty {
		return nil
	}
	if err := s.sheet.Reconcile(s.surface.Data()); err != nil {
		s.headersDirty = false
		s.surface.LoadData(s.sheet.Grid())
		s.surface.Render()
		return err
	}
	s.headersDirty = false
	s.sel.Refresh()
	return nil
}

// resync redraws the surface from the document after an undo or redo.
func (s *Session) resync() {
	s.surface.LoadData(s.sheet.Grid())
	s.syncMarks()
	s.surface.Render()
	s.refreshFormula()
}

// syncMarks pushes the format registry and merge table to the surface,
// clearing metadata for cells that lost their entry.
func (s *Session) syncMarks() {
	entries := s.sheet.Formats().Entries()
	keys := make([]sheet.Coord, 0, len(entries))
	keep := make(map[sheet.Coord]bool, len(entries))
	for _, e := range entries {
		keep[e.Coord] = true
		keys = append(keys, e.Coord)
		if s.surface.CellMeta(e.Coord) != e.Style {
			s.surface.SetCellMeta(e.Coord, e.Style)
		}
	}
	for _, c := range s.metaKeys {
		if !keep[c] {
			s.surface.SetCellMeta(c, sheet.Style{})
		}
	}
	s.metaKeys = keys
	s.surface.SetMerges(s.sheet.Merges().Regions())
}

func (s *Session) refreshFormula() {
	before := s.sel.Text()
	_, wasActive := s.sel.Active()
	s.sel.Refresh()
	c, ok := s.sel.Active()
	switch {
	case ok && s.sel.Text() != before:
		s.sendFormula(c, s.sel.Text())
	case !ok && wasActive:
		s.out.Send(newMessage(TypeFormula, map[string]any{"text": ""}))
	}
}

func (s *Session) sendFormula(c sheet.Coord, text string) {
	s.out.Send(newMessage(TypeFormula, map[string]any{"row": c.Row, "col": c.Col, "text": text}))
}

func (s *Session) commandError(kind EventKind, err error) {
	s.log.WithError(err).WithField("command", kind).Debug("session: command failed")
	s.out.Send(newMessage(TypeCommandError, map[string]string{"command": string(kind), "error": err.Error()}))
}

func (s *Session) download(format string) error {
	g := s.surface.Data()
	body, contentType, err := export.Encode(g, s.sheet.Formats().Entries(), s.sheet.Merges().Regions(), format)
	if err != nil {
		return err
	}
	s.out.Send(newMessage(TypeFile, map[string]any{
		"name":         s.name + "." + format,
		"content_type": contentType,
		"data":         body,
	}))
	return nil
}

// flush starts one save of the latest document snapshot. It runs on the loop;
// the network round trip runs on its own goroutine and reports back through
// post.
func (s *Session) flush(trigger autosave.Trigger, done func(error)) {
	if err := s.reconcileHeaders(); err != nil {
		s.notice("error", fmt.Sprintf("Save failed: %v", err))
		done(err)
		return
	}
	snap := s.sheet.Document().Clone()
	id, name := s.cfg.FileID, s.name
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SaveTimeout)
		defer cancel()
		err := s.store.Save(ctx, id, name, snap)
		s.post(func() {
			s.flushed(trigger, err)
			done(err)
		})
	}()
}

func (s *Session) flushed(trigger autosave.Trigger, err error) {
	if s.phase != phaseReady {
		return
	}
	switch {
	case errors.Is(err, remote.ErrAuth):
		s.authRequired()
	case err != nil:
		s.notice("error", fmt.Sprintf("Save failed: %v", err))
	default:
		if trigger == autosave.Manual {
			s.notice("success", "Saved")
		}
		if s.onSaved != nil {
			s.onSaved()
		}
	}
}

// notice shows a banner. Success banners clear themselves after the banner
// timeout; error banners stay until replaced.
func (s *Session) notice(level, text string) {
	s.clearBanner()
	s.out.Send(newMessage(TypeNotice, map[string]string{"level": level, "text": text}))
	if level == "success" {
		gen := s.bannerGen
		s.banner = s.clock.AfterFunc(s.cfg.BannerTimeout, func() {
			if gen != s.bannerGen || s.phase != phaseReady {
				return
			}
			s.banner = nil
			s.out.Send(newMessage(TypeNoticeClear, nil))
		})
	}
}

func (s *Session) clearBanner() {
	s.bannerGen++
	if s.banner != nil {
		s.banner.Stop()
		s.banner = nil
	}
}

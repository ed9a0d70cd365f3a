package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/lumina/internal/cache"
	"github.com/yoockh/lumina/internal/events"
	"github.com/yoockh/lumina/internal/history"
	"github.com/yoockh/lumina/internal/models"
	"github.com/yoockh/lumina/internal/session"
	"github.com/yoockh/lumina/internal/utils"
)

const DefaultErrorHold = 3 * time.Second

// StudioDeps are shared by every workspace.
type StudioDeps struct {
	Expansion ExpansionService
	Images    ImageService
	Bus       events.Bus
	NewInbox  func(workspace string) session.Inbox
	ErrorHold time.Duration
	Log       logrus.FieldLogger
}

// Studio is one workspace: a primary view, its history and its notices.
// Every asynchronous step captures the session it was started under and
// writes to the view only while that session is active.
type Studio struct {
	workspace string
	bg        context.Context // outlives requests; cancelled on shutdown

	ctl       *session.Controller
	hist      *history.List
	inbox     session.Inbox
	batch     *BatchCoordinator
	expansion ExpansionService
	images    ImageService
	bus       events.Bus
	errorHold time.Duration
	log       logrus.FieldLogger

	mu   sync.Mutex // guards view; taken inside ctl.Do when writing
	view models.View

	inflight atomic.Int64 // pipelines and batches not yet settled
}

func NewStudio(bg context.Context, workspace string, d StudioDeps) *Studio {
	if d.ErrorHold <= 0 {
		d.ErrorHold = DefaultErrorHold
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	if d.Bus == nil {
		d.Bus = events.NewMemoryBus()
	}
	var inbox session.Inbox
	if d.NewInbox != nil {
		inbox = d.NewInbox(workspace)
	} else {
		inbox = session.NewCachedInbox(cache.NewMemoryCache(), workspace, 0)
	}

	s := &Studio{
		workspace: workspace,
		bg:        bg,
		ctl:       session.NewController(),
		hist:      history.New(),
		inbox:     inbox,
		expansion: d.Expansion,
		images:    d.Images,
		bus:       d.Bus,
		errorHold: d.ErrorHold,
		log:       d.Log.WithField("workspace", workspace),
		view:      models.View{Phase: models.PhaseIdle},
	}
	s.batch = NewBatchCoordinator(d.Images, s.hist, BatchHooks{
		HistoryChanged: s.publishHistory,
		Present:        s.present,
		Fail:           s.fail,
		Notify:         s.notify,
	}, s.log)
	return s
}

func (s *Studio) View() models.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Studio) History() []models.HistoryEntry { return s.hist.Snapshot() }

func (s *Studio) Notices(ctx context.Context) ([]models.Notice, error) {
	const op = "Studio.Notices"
	list, err := s.inbox.List(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load notifications", err)
	}
	return list, nil
}

// Generate starts a new session that expands input and renders the result.
func (s *Studio) Generate(input string, refs []string) (session.ID, error) {
	const op = "Studio.Generate"

	input = strings.TrimSpace(input)
	if input == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "user_input is required", nil)
	}

	sid := s.ctl.Begin()
	s.apply(sid, func(v *models.View) {
		*v = models.View{SessionID: string(sid), Phase: models.PhaseExpandingPrompt, UserInput: input}
	})
	s.spawn(func() { s.pipeline(sid, input, ExpansionRequest{UserInput: input}, refs) })
	return sid, nil
}

// Modify re-expands the current record with a change to one section, then
// renders it again.
func (s *Studio) Modify(section, instruction string) (session.ID, error) {
	const op = "Studio.Modify"

	section, instruction = strings.TrimSpace(section), strings.TrimSpace(instruction)
	if !models.IsFieldKey(section) {
		return "", utils.E(utils.CodeInvalidArgument, op, "unknown section", nil)
	}
	if instruction == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "instruction is required", nil)
	}
	cur, err := s.settled(op)
	if err != nil {
		return "", err
	}

	sid := s.ctl.Begin()
	s.apply(sid, func(v *models.View) {
		v.SessionID = string(sid)
		v.Phase = models.PhaseExpandingPrompt
		v.Error = ""
	})
	prior := cur.Record
	req := ExpansionRequest{
		UserInput:    cur.UserInput,
		Prior:        &prior,
		Modification: ModificationText(section, instruction),
	}
	s.spawn(func() { s.pipeline(sid, cur.UserInput, req, nil) })
	return sid, nil
}

// Regenerate renders the current record once more as a new session.
func (s *Studio) Regenerate() (session.ID, error) {
	const op = "Studio.Regenerate"

	cur, err := s.settled(op)
	if err != nil {
		return "", err
	}

	sid := s.ctl.Begin()
	s.apply(sid, func(v *models.View) {
		v.SessionID = string(sid)
		v.Phase = models.PhaseGeneratingImage
		v.Error = ""
	})
	s.spawn(func() { s.render(sid, cur.UserInput, cur.Record, nil) })
	return sid, nil
}

// Batch renders the current record count times in the background. The
// batch reports to whichever session is active now.
func (s *Studio) Batch(count int) (*Batch, error) {
	const op = "Studio.Batch"

	if count <= 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "count must be > 0", nil)
	}
	cur, err := s.settled(op)
	if err != nil {
		return nil, err
	}
	s.inflight.Add(1)
	b := s.batch.Run(s.bg, s.ctl.Active(), cur.UserInput, cur.Record, count)
	go func() {
		<-b.Done()
		s.inflight.Add(-1)
	}()
	return b, nil
}

// SelectHistory shows a finished history entry as a new session.
func (s *Studio) SelectHistory(id string) (session.ID, error) {
	const op = "Studio.SelectHistory"

	e, err := s.hist.Get(id)
	if err != nil {
		return "", utils.E(utils.CodeNotFound, op, "history entry not found", err)
	}
	if e.Status != models.StatusComplete {
		return "", utils.E(utils.CodeConflict, op, "history entry is still rendering", nil)
	}

	sid := s.ctl.Begin()
	s.present(sid, models.Result{Prompt: e.Prompt, Record: e.Record, ImageURL: e.ImageURL, HistoryID: e.ID})
	return sid, nil
}

func (s *Studio) DeleteHistory(id string) error {
	const op = "Studio.DeleteHistory"

	if !s.hist.Remove(id) {
		return utils.E(utils.CodeNotFound, op, "history entry not found", history.ErrNotFound)
	}
	s.publishHistory()
	return nil
}

// Reclaim shows a background result as a new session.
func (s *Studio) Reclaim(ctx context.Context, noticeID string) (session.ID, error) {
	const op = "Studio.Reclaim"

	var snap models.View
	sid, err := s.ctl.Reclaim(ctx, s.inbox, noticeID, func(sid session.ID, res models.Result) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.view = resultView(sid, res)
		snap = s.view
	})
	switch {
	case errors.Is(err, session.ErrNoticeNotFound):
		return "", utils.E(utils.CodeNotFound, op, "notification not found", err)
	case errors.Is(err, session.ErrNotReclaimable):
		return "", utils.E(utils.CodeConflict, op, "notification has no result", err)
	case err != nil:
		return "", utils.E(utils.CodeUnavailable, op, "failed to reclaim notification", err)
	}

	s.publish(events.Event{Type: events.TypeView, SessionID: string(sid), View: &snap})
	return sid, nil
}

func (s *Studio) DismissNotice(ctx context.Context, noticeID string) error {
	const op = "Studio.DismissNotice"

	err := s.inbox.Dismiss(ctx, noticeID)
	switch {
	case errors.Is(err, session.ErrNoticeNotFound):
		return utils.E(utils.CodeNotFound, op, "notification not found", err)
	case err != nil:
		return utils.E(utils.CodeUnavailable, op, "failed to dismiss notification", err)
	}
	return nil
}

func (s *Studio) spawn(fn func()) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Add(-1)
		fn()
	}()
}

// Busy reports whether any pipeline or batch of this workspace is still
// running, including ones started by superseded sessions.
func (s *Studio) Busy() bool { return s.inflight.Load() > 0 }

// settled returns the view if it holds a complete record to build on.
func (s *Studio) settled(op string) (models.View, error) {
	v := s.View()
	if v.Record.IsZero() || v.Phase == models.PhaseExpandingPrompt {
		return models.View{}, utils.E(utils.CodeConflict, op, "no finished prompt to work from", nil)
	}
	return v, nil
}

func (s *Studio) pipeline(sid session.ID, input string, req ExpansionRequest, refs []string) {
	log := s.log.WithField("session_id", sid)

	rec, err := s.expansion.Expand(s.bg, req, func(delta models.Partial) {
		s.apply(sid, func(v *models.View) { v.Record = v.Record.Merge(delta) }, delta)
	})
	if err != nil {
		log.WithError(err).Warn("expansion failed")
		if !s.fail(sid, err) {
			s.notifyFailure(sid, err)
		}
		return
	}

	s.apply(sid, func(v *models.View) {
		v.Record = rec
		v.Phase = models.PhaseGeneratingImage
	})
	s.render(sid, input, rec, refs)
}

func (s *Studio) render(sid session.ID, input string, rec models.FieldRecord, refs []string) {
	log := s.log.WithField("session_id", sid)

	placeholder := s.hist.AddPending(input, rec, 1)[0]
	s.publishHistory()

	url, err := s.images.Generate(s.bg, rec, refs)
	if err != nil {
		s.hist.Remove(placeholder.ID)
		s.publishHistory()
		log.WithError(err).Warn("image generation failed")
		if !s.fail(sid, err) {
			s.notifyFailure(sid, err)
		}
		return
	}

	if _, err := s.hist.Complete(placeholder.ID, url); err != nil {
		log.WithError(err).Debug("history placeholder gone")
	}
	s.publishHistory()

	res := models.Result{Prompt: input, Record: rec, ImageURL: url, HistoryID: placeholder.ID}
	if !s.present(sid, res) {
		s.notify(models.Notice{
			SessionID: string(sid),
			Kind:      models.NoticeResult,
			Message:   "A previous generation finished in the background",
			Result:    &res,
		})
	}
}

// apply mutates the view if sid is active and publishes the new state.
// A non-nil delta is published as a partial update.
func (s *Studio) apply(sid session.ID, mutate func(v *models.View), delta ...models.Partial) bool {
	var snap models.View
	ok := s.ctl.Do(sid, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		mutate(&s.view)
		s.view.UpdatedAt = time.Now().UTC()
		snap = s.view
	})
	if !ok {
		return false
	}

	ev := events.Event{Type: events.TypeView, SessionID: string(sid), View: &snap}
	if len(delta) > 0 && delta[0] != nil {
		ev.Type = events.TypePartial
		ev.Fields = delta[0]
	}
	s.publish(ev)
	return true
}

func resultView(sid session.ID, res models.Result) models.View {
	return models.View{
		SessionID: string(sid),
		Phase:     models.PhaseComplete,
		UserInput: res.Prompt,
		Record:    res.Record,
		ImageURL:  res.ImageURL,
		UpdatedAt: time.Now().UTC(),
	}
}

func (s *Studio) present(sid session.ID, res models.Result) bool {
	return s.apply(sid, func(v *models.View) { *v = resultView(sid, res) })
}

// fail shows the error while sid is active, then returns the view to its
// resting phase after the hold.
func (s *Studio) fail(sid session.ID, err error) bool {
	ok := s.apply(sid, func(v *models.View) {
		v.Phase = models.PhaseError
		v.Error = utils.Message(err)
	})
	if ok {
		time.AfterFunc(s.errorHold, func() {
			s.apply(sid, func(v *models.View) {
				if v.Phase != models.PhaseError {
					return
				}
				v.Phase = models.PhaseIdle
				if v.ImageURL != "" {
					v.Phase = models.PhaseComplete
				}
				v.Error = ""
			})
		})
	}
	return ok
}

func (s *Studio) notify(n models.Notice) {
	stored, err := s.inbox.Put(s.bg, n)
	if err != nil {
		s.log.WithError(err).WithField("session_id", n.SessionID).Error("failed to store notification")
		return
	}
	s.publish(events.Event{Type: events.TypeNotice, SessionID: stored.SessionID, Notice: &stored})
}

func (s *Studio) notifyFailure(sid session.ID, err error) {
	s.notify(models.Notice{
		SessionID: string(sid),
		Kind:      models.NoticeFailure,
		Message:   utils.Message(err),
	})
}

func (s *Studio) publishHistory() {
	s.publish(events.Event{Type: events.TypeHistory, History: s.hist.Snapshot()})
}

func (s *Studio) publish(ev events.Event) {
	if err := s.bus.Publish(s.bg, s.workspace, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Warn("publish failed")
	}
}

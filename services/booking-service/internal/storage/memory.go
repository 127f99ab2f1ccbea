package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	otelx "github.com/md-rashed-zaman/instructorbook/libs/otel"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/outbox"
)

// Memory keeps all state in process. Transactions run one at a time against a copy
// that replaces the live state only when fn succeeds.
type Memory struct {
	mu sync.Mutex
	// draining serializes Drain so a batch is never handed out twice.
	draining sync.Mutex
	state    *memState
	now   func() time.Time
}

type idemKey struct {
	requester string
	key       string
}

type memRecord struct {
	outbox.Record
	published bool
}

type memState struct {
	windows     map[string]model.AvailabilityWindow
	blocks      map[string]model.BlockedPeriod
	appts       map[string]model.Appointment
	types       map[string]model.AppointmentType
	instructors map[string]model.Instructor
	idempotency map[idemKey]string
	events      []memRecord
	seq         int64
}

func NewMemory() *Memory {
	return &Memory{
		state: &memState{
			windows:     map[string]model.AvailabilityWindow{},
			blocks:      map[string]model.BlockedPeriod{},
			appts:       map[string]model.Appointment{},
			types:       map[string]model.AppointmentType{},
			instructors: map[string]model.Instructor{},
			idempotency: map[idemKey]string{},
		},
		now: time.Now,
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		windows:     cloneMap(s.windows),
		blocks:      cloneMap(s.blocks),
		appts:       cloneMap(s.appts),
		types:       cloneMap(s.types),
		instructors: cloneMap(s.instructors),
		idempotency: cloneMap(s.idempotency),
		events:      append([]memRecord(nil), s.events...),
		seq:         s.seq,
	}
}

func ctxErr(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.ErrTimeout.Wrap(err)
	}
	return err
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (m *Memory) InTx(ctx context.Context, fn TxFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctxErr(ctx); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(ctx, &memTx{s: work, now: m.now}); err != nil {
		return err
	}
	if err := ctxErr(ctx); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) read(ctx context.Context) (*memState, func(), error) {
	if err := ctxErr(ctx); err != nil {
		return nil, nil, err
	}
	m.mu.Lock()
	return m.state, m.mu.Unlock, nil
}

func (m *Memory) GetWindow(ctx context.Context, id string) (model.AvailabilityWindow, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return model.AvailabilityWindow{}, err
	}
	defer unlock()
	w, ok := s.windows[id]
	if !ok {
		return model.AvailabilityWindow{}, apperr.ErrNotFound.Withf("availability window %s not found", id)
	}
	return w, nil
}

func (m *Memory) ListWindows(ctx context.Context, instructorID string) ([]model.AvailabilityWindow, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []model.AvailabilityWindow
	for _, w := range s.windows {
		if w.InstructorID == instructorID {
			out = append(out, w)
		}
	}
	sortWindows(out)
	return out, nil
}

func (m *Memory) ListActiveWindows(ctx context.Context, instructorID string, weekday int) ([]model.AvailabilityWindow, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.activeWindows(instructorID, weekday), nil
}

func (m *Memory) CreateBlock(ctx context.Context, b model.BlockedPeriod) error {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := s.blocks[b.ID]; ok {
		return apperr.ErrConflict.Withf("blocked period %s already exists", b.ID)
	}
	s.blocks[b.ID] = b
	return nil
}

func (m *Memory) DeleteBlock(ctx context.Context, id string) (model.BlockedPeriod, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return model.BlockedPeriod{}, err
	}
	defer unlock()
	b, ok := s.blocks[id]
	if !ok {
		return model.BlockedPeriod{}, apperr.ErrNotFound.Withf("blocked period %s not found", id)
	}
	delete(s.blocks, id)
	return b, nil
}

func (m *Memory) GetBlock(ctx context.Context, id string) (model.BlockedPeriod, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return model.BlockedPeriod{}, err
	}
	defer unlock()
	b, ok := s.blocks[id]
	if !ok {
		return model.BlockedPeriod{}, apperr.ErrNotFound.Withf("blocked period %s not found", id)
	}
	return b, nil
}

func (m *Memory) ListBlocks(ctx context.Context, instructorID string, date time.Time) ([]model.BlockedPeriod, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.blockedPeriods(instructorID, date), nil
}

func (m *Memory) GetAppointment(ctx context.Context, id string) (model.Appointment, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer unlock()
	a, ok := s.appts[id]
	if !ok {
		return model.Appointment{}, apperr.ErrNotFound.Withf("appointment %s not found", id)
	}
	return a, nil
}

func (m *Memory) ListActiveAppointments(ctx context.Context, instructorID string, date time.Time) ([]model.Appointment, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.activeAppointments(instructorID, date), nil
}

func (m *Memory) ListAppointments(ctx context.Context, f model.AppointmentFilter) ([]model.Appointment, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var out []model.Appointment
	for _, a := range s.appts {
		if f.InstructorID != "" && a.InstructorID != f.InstructorID {
			continue
		}
		if f.RequesterID != "" && a.RequesterID != f.RequesterID {
			continue
		}
		if !f.From.IsZero() && a.Date.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && a.Date.After(f.To) {
			continue
		}
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, a.Status) {
			continue
		}
		out = append(out, a)
	}
	sortAppointments(out)
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) AppointmentType(ctx context.Context, id string) (model.AppointmentType, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return model.AppointmentType{}, err
	}
	defer unlock()
	t, ok := s.types[id]
	if !ok {
		return model.AppointmentType{}, apperr.ErrNotFound.Withf("appointment type %s not found", id)
	}
	return t, nil
}

func (m *Memory) UpsertAppointmentType(ctx context.Context, t model.AppointmentType) error {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	s.types[t.ID] = t
	return nil
}

func (m *Memory) Instructor(ctx context.Context, id string) (model.Instructor, bool, error) {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return model.Instructor{}, false, err
	}
	defer unlock()
	in, ok := s.instructors[id]
	return in, ok, nil
}

func (m *Memory) UpsertInstructor(ctx context.Context, in model.Instructor) error {
	s, unlock, err := m.read(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if cur, ok := s.instructors[in.ID]; ok && cur.UpdatedAt.After(in.UpdatedAt) {
		return nil
	}
	s.instructors[in.ID] = in
	return nil
}

// Drain hands unpublished events to send in enqueue order and marks them published
// when send succeeds. The store stays unlocked while send runs.
func (m *Memory) Drain(ctx context.Context, limit int, send func(context.Context, []outbox.Record) error) (int, error) {
	m.draining.Lock()
	defer m.draining.Unlock()

	s, unlock, err := m.read(ctx)
	if err != nil {
		return 0, err
	}
	var batch []outbox.Record
	for _, rec := range s.events {
		if rec.published {
			continue
		}
		if limit > 0 && len(batch) == limit {
			break
		}
		batch = append(batch, rec.Record)
	}
	unlock()
	if len(batch) == 0 {
		return 0, nil
	}

	if err := send(ctx, batch); err != nil {
		return 0, err
	}

	sent := make(map[int64]bool, len(batch))
	for _, rec := range batch {
		sent[rec.Seq] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.state.events {
		if sent[m.state.events[i].Seq] {
			m.state.events[i].published = true
		}
	}
	return len(batch), nil
}

// Pending returns the events not yet drained.
func (m *Memory) Pending() []outbox.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []outbox.Record
	for _, rec := range m.state.events {
		if !rec.published {
			out = append(out, rec.Record)
		}
	}
	return out
}

func (s *memState) activeWindows(instructorID string, weekday int) []model.AvailabilityWindow {
	var out []model.AvailabilityWindow
	for _, w := range s.windows {
		if w.InstructorID == instructorID && w.Weekday == weekday && w.Active() {
			out = append(out, w)
		}
	}
	sortWindows(out)
	return out
}

func (s *memState) activeAppointments(instructorID string, date time.Time) []model.Appointment {
	var out []model.Appointment
	for _, a := range s.appts {
		if a.InstructorID == instructorID && sameDay(a.Date, date) && a.Status.Active() {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out
}

func (s *memState) blockedPeriods(instructorID string, date time.Time) []model.BlockedPeriod {
	var out []model.BlockedPeriod
	for _, b := range s.blocks {
		if b.InstructorID == instructorID && sameDay(b.Date, date) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartMinute != out[j].StartMinute {
			return out[i].StartMinute < out[j].StartMinute
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// windowOverlaps mirrors availability_windows_no_overlap.
func (s *memState) windowOverlaps(w model.AvailabilityWindow) bool {
	if !w.Active() {
		return false
	}
	for _, other := range s.windows {
		if other.ID == w.ID || !other.Active() || other.InstructorID != w.InstructorID || other.Weekday != w.Weekday {
			continue
		}
		if w.StartMinute < other.EndMinute && other.StartMinute < w.EndMinute {
			return true
		}
	}
	return false
}

// appointmentOverlaps mirrors appointments_no_overlap.
func (s *memState) appointmentOverlaps(a model.Appointment) bool {
	if !a.Status.Active() {
		return false
	}
	for _, other := range s.activeAppointments(a.InstructorID, a.Date) {
		if other.ID == a.ID {
			continue
		}
		if a.StartMinute < other.EndMinute && other.StartMinute < a.EndMinute {
			return true
		}
	}
	return false
}

func sortWindows(ws []model.AvailabilityWindow) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].Weekday != ws[j].Weekday {
			return ws[i].Weekday < ws[j].Weekday
		}
		if ws[i].StartMinute != ws[j].StartMinute {
			return ws[i].StartMinute < ws[j].StartMinute
		}
		return ws[i].ID < ws[j].ID
	})
}

func sortAppointments(as []model.Appointment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date) {
			return as[i].Date.Before(as[j].Date)
		}
		if as[i].StartMinute != as[j].StartMinute {
			return as[i].StartMinute < as[j].StartMinute
		}
		return as[i].ID < as[j].ID
	})
}

func containsStatus(list []model.Status, s model.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memTx struct {
	s   *memState
	now func() time.Time
}

func (t *memTx) ActiveWindows(ctx context.Context, instructorID string, weekday int) ([]model.AvailabilityWindow, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return t.s.activeWindows(instructorID, weekday), nil
}

func (t *memTx) WindowForUpdate(ctx context.Context, id string) (model.AvailabilityWindow, error) {
	if err := ctxErr(ctx); err != nil {
		return model.AvailabilityWindow{}, err
	}
	w, ok := t.s.windows[id]
	if !ok {
		return model.AvailabilityWindow{}, apperr.ErrNotFound.Withf("availability window %s not found", id)
	}
	return w, nil
}

func (t *memTx) InsertWindow(ctx context.Context, w model.AvailabilityWindow) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if _, ok := t.s.windows[w.ID]; ok {
		return apperr.ErrConflict.Withf("availability window %s already exists", w.ID)
	}
	if t.s.windowOverlaps(w) {
		return apperr.ErrConflict.Withf("availability window overlaps an existing window")
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = w.CreatedAt
	}
	t.s.windows[w.ID] = w
	return nil
}

func (t *memTx) SaveWindow(ctx context.Context, w model.AvailabilityWindow) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if _, ok := t.s.windows[w.ID]; !ok {
		return apperr.ErrNotFound.Withf("availability window %s not found", w.ID)
	}
	if t.s.windowOverlaps(w) {
		return apperr.ErrConflict.Withf("availability window overlaps an existing window")
	}
	t.s.windows[w.ID] = w
	return nil
}

func (t *memTx) DeleteWindow(ctx context.Context, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if _, ok := t.s.windows[id]; !ok {
		return apperr.ErrNotFound.Withf("availability window %s not found", id)
	}
	delete(t.s.windows, id)
	return nil
}

func (t *memTx) UpcomingAppointments(ctx context.Context, w model.AvailabilityWindow, today time.Time, nowMinute int) ([]model.Appointment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	var out []model.Appointment
	for _, a := range t.s.appts {
		if a.InstructorID != w.InstructorID || !a.Status.Active() || int(a.Date.Weekday()) != w.Weekday {
			continue
		}
		if a.StartMinute >= w.EndMinute || a.EndMinute <= w.StartMinute {
			continue
		}
		if (a.Date.After(today) && !sameDay(a.Date, today)) || (sameDay(a.Date, today) && a.StartMinute >= nowMinute) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (t *memTx) ActiveAppointments(ctx context.Context, instructorID string, date time.Time) ([]model.Appointment, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return t.s.activeAppointments(instructorID, date), nil
}

func (t *memTx) BlockedPeriods(ctx context.Context, instructorID string, date time.Time) ([]model.BlockedPeriod, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	return t.s.blockedPeriods(instructorID, date), nil
}

func (t *memTx) AppointmentForUpdate(ctx context.Context, id string) (model.Appointment, error) {
	if err := ctxErr(ctx); err != nil {
		return model.Appointment{}, err
	}
	a, ok := t.s.appts[id]
	if !ok {
		return model.Appointment{}, apperr.ErrNotFound.Withf("appointment %s not found", id)
	}
	return a, nil
}

func (t *memTx) InsertAppointment(ctx context.Context, a model.Appointment) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if _, ok := t.s.appts[a.ID]; ok {
		return apperr.ErrConflict.Withf("appointment %s already exists", a.ID)
	}
	if t.s.appointmentOverlaps(a) {
		return apperr.ErrSlotNoLongerAvailable
	}
	t.s.appts[a.ID] = a
	return nil
}

func (t *memTx) CancelAppointment(ctx context.Context, id, reason string, at time.Time) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	a, ok := t.s.appts[id]
	if !ok {
		return apperr.ErrNotFound.Withf("appointment %s not found", id)
	}
	a.Status = model.StatusCancelled
	a.CancelledAt = &at
	a.CancelReason = reason
	t.s.appts[id] = a
	return nil
}

func (t *memTx) LockIdempotencyKey(ctx context.Context, requesterID, key string) (string, error) {
	if err := ctxErr(ctx); err != nil {
		return "", err
	}
	k := idemKey{requester: requesterID, key: key}
	if id, ok := t.s.idempotency[k]; ok {
		return id, nil
	}
	t.s.idempotency[k] = ""
	return "", nil
}

func (t *memTx) FinalizeIdempotency(ctx context.Context, requesterID, key, appointmentID string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	t.s.idempotency[idemKey{requester: requesterID, key: key}] = appointmentID
	return nil
}

func (t *memTx) EnqueueEvent(ctx context.Context, evt outbox.Event) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	traceparent, tracestate := otelx.TraceContextStrings(ctx)
	t.s.seq++
	t.s.events = append(t.s.events, memRecord{Record: outbox.Record{
		Seq:           t.s.seq,
		EventID:       evt.ID,
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     evt.EventType,
		Key:           evt.Key,
		Payload:       evt.Payload,
		Traceparent:   traceparent,
		Tracestate:    tracestate,
		CreatedAt:     t.now().UTC(),
	}})
	return nil
}

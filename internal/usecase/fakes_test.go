package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"visitor-booking/internal/data/entity"
	"visitor-booking/internal/data/repository"
	"visitor-booking/pkg/events"
	"visitor-booking/pkg/metrics"
	"visitor-booking/pkg/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ---------- In-memory store ----------

type txKey struct{}

var errNoTx = errors.New("row lock requested outside a transaction")

// memStore backs every fake repository. txMu serializes transactions the way
// the slot row lock does in postgres; mu guards the maps themselves.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	slots     map[uuid.UUID]*entity.VisitSlot
	bookings  map[uuid.UUID]*entity.Booking
	visitors  map[uuid.UUID]*entity.Visitor
	conflicts map[uuid.UUID]*entity.ScheduleConflict
	audits    []*entity.AuditLog

	// takenTokens makes TrackingTokenExists report true for every probe
	// while positive, decrementing on each call.
	takenTokens int
	auditErr    error

	// duplicateTokenInserts makes Create reject that many tokened inserts
	// as duplicates, recording each rejected token.
	duplicateTokenInserts int
	rejectedTokens        []string

	// beforeMarkExpired runs at the start of MarkExpired, between the
	// candidate load and the guarded update.
	beforeMarkExpired func()
}

func newMemStore() *memStore {
	return &memStore{
		slots:     make(map[uuid.UUID]*entity.VisitSlot),
		bookings:  make(map[uuid.UUID]*entity.Booking),
		visitors:  make(map[uuid.UUID]*entity.Visitor),
		conflicts: make(map[uuid.UUID]*entity.ScheduleConflict),
	}
}

func (m *memStore) repository() *repository.Repository {
	return &repository.Repository{
		Visitor:  &memVisitorRepo{m},
		Slot:     &memSlotRepo{m},
		Booking:  &memBookingRepo{m},
		Conflict: &memConflictRepo{m},
		AuditLog: &memAuditRepo{m},
		Tx:       &memTx{m},
	}
}

func copySlot(s *entity.VisitSlot) *entity.VisitSlot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copyBooking(b *entity.Booking) *entity.Booking {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

func (m *memStore) putSlot(s *entity.VisitSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[s.ID] = copySlot(s)
}

func (m *memStore) slot(id uuid.UUID) *entity.VisitSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySlot(m.slots[id])
}

func (m *memStore) booking(id uuid.UUID) *entity.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyBooking(m.bookings[id])
}

func (m *memStore) putVisitor(v *entity.Visitor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *v
	m.visitors[v.ID] = &c
}

func (m *memStore) activeSum(slotID uuid.UUID) int {
	total := 0
	for _, b := range m.bookings {
		if b.SlotID == slotID && b.Status.Active() {
			total += b.GroupSize
		}
	}
	return total
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, a := range m.audits {
		out = append(out, a.Action)
	}
	return out
}

// ---------- Tx ----------

type memTx struct{ m *memStore }

// WithinTransaction snapshots slots and bookings and restores them when fn
// fails.
func (t *memTx) WithinTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	t.m.txMu.Lock()
	defer t.m.txMu.Unlock()

	t.m.mu.Lock()
	slots := make(map[uuid.UUID]*entity.VisitSlot, len(t.m.slots))
	for id, s := range t.m.slots {
		slots[id] = copySlot(s)
	}
	bookings := make(map[uuid.UUID]*entity.Booking, len(t.m.bookings))
	for id, b := range t.m.bookings {
		bookings[id] = copyBooking(b)
	}
	t.m.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.m.mu.Lock()
		t.m.slots, t.m.bookings = slots, bookings
		t.m.mu.Unlock()
		return err
	}
	return nil
}

// ---------- Slots ----------

type memSlotRepo struct{ m *memStore }

func (r *memSlotRepo) Create(_ context.Context, slot *entity.VisitSlot) error {
	r.m.putSlot(slot)
	return nil
}

func (r *memSlotRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.VisitSlot, error) {
	return r.m.slot(id), nil
}

func (r *memSlotRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.VisitSlot, error) {
	if ctx.Value(txKey{}) == nil {
		return nil, errNoTx
	}
	return r.m.slot(id), nil
}

func (r *memSlotRepo) FindByDate(_ context.Context, date time.Time) ([]*entity.VisitSlot, error) {
	return r.filter(func(s *entity.VisitSlot) bool { return s.Date.Equal(date) }), nil
}

func (r *memSlotRepo) List(_ context.Context, f repository.SlotFilter) ([]*entity.VisitSlot, error) {
	return r.filter(func(s *entity.VisitSlot) bool {
		if f.From != nil && s.Date.Before(*f.From) {
			return false
		}
		if f.To != nil && s.Date.After(*f.To) {
			return false
		}
		if len(f.Statuses) == 0 {
			return true
		}
		for _, st := range f.Statuses {
			if s.Status == st {
				return true
			}
		}
		return false
	}), nil
}

func (r *memSlotRepo) filter(keep func(*entity.VisitSlot) bool) []*entity.VisitSlot {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.VisitSlot
	for _, s := range r.m.slots {
		if keep(s) {
			out = append(out, copySlot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (r *memSlotRepo) Update(_ context.Context, slot *entity.VisitSlot) error {
	r.m.putSlot(slot)
	return nil
}

func (r *memSlotRepo) UpdateAggregate(_ context.Context, id uuid.UUID, bookedCount int, status entity.SlotStatus) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s, ok := r.m.slots[id]; ok {
		s.BookedCount = bookedCount
		s.Status = status
	}
	return nil
}

func (r *memSlotRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.slots, id)
	for bid, b := range r.m.bookings {
		if b.SlotID == id {
			delete(r.m.bookings, bid)
		}
	}
	return nil
}

func (r *memSlotRepo) FindExpiryCandidates(_ context.Context, onOrBefore time.Time) ([]*entity.VisitSlot, error) {
	return r.filter(func(s *entity.VisitSlot) bool {
		return !s.Date.After(onOrBefore) && !s.Status.Sticky() && s.Status != entity.SlotStatusExpired
	}), nil
}

func (r *memSlotRepo) MarkExpired(_ context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	if r.m.beforeMarkExpired != nil {
		r.m.beforeMarkExpired()
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var expired []uuid.UUID
	for _, id := range ids {
		s, ok := r.m.slots[id]
		if !ok || s.Status.Sticky() || s.Status == entity.SlotStatusExpired {
			continue
		}
		s.Status = entity.SlotStatusExpired
		expired = append(expired, id)
	}
	return expired, nil
}

// ---------- Bookings ----------

type memBookingRepo struct{ m *memStore }

func (r *memBookingRepo) Create(_ context.Context, b *entity.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if b.TrackingToken != nil && r.m.duplicateTokenInserts > 0 {
		r.m.duplicateTokenInserts--
		r.m.rejectedTokens = append(r.m.rejectedTokens, *b.TrackingToken)
		return repository.ErrDuplicateTrackingToken
	}
	if b.TrackingToken != nil {
		for _, other := range r.m.bookings {
			if other.TrackingToken != nil && *other.TrackingToken == *b.TrackingToken {
				return repository.ErrDuplicateTrackingToken
			}
		}
	}
	r.m.bookings[b.ID] = copyBooking(b)
	return nil
}

func (r *memBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.m.booking(id), nil
}

func (r *memBookingRepo) FindDetailByID(_ context.Context, id uuid.UUID) (*entity.BookingDetail, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bookings[id]
	if !ok {
		return nil, nil
	}
	slot := r.m.slots[b.SlotID]
	visitor := r.m.visitors[b.VisitorID]
	return &entity.BookingDetail{
		Booking:       *b,
		SlotDate:      slot.Date,
		SlotStartTime: slot.StartTime,
		SlotEndTime:   slot.EndTime,
		VisitorName:   visitor.Name,
		VisitorEmail:  visitor.Email,
	}, nil
}

func (r *memBookingRepo) FindByEmailAndToken(_ context.Context, email, token string) (*entity.Booking, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, b := range r.m.bookings {
		if b.TrackingToken == nil || *b.TrackingToken != token {
			continue
		}
		if v, ok := r.m.visitors[b.VisitorID]; ok && strings.EqualFold(v.Email, email) {
			return copyBooking(b), nil
		}
	}
	return nil, nil
}

func (r *memBookingRepo) TrackingTokenExists(_ context.Context, token string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.takenTokens > 0 {
		r.m.takenTokens--
		return true, nil
	}
	for _, b := range r.m.bookings {
		if b.TrackingToken != nil && *b.TrackingToken == token {
			return true, nil
		}
	}
	return false, nil
}

func (r *memBookingRepo) Update(_ context.Context, b *entity.Booking) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.bookings[b.ID] = copyBooking(b)
	return nil
}

func (r *memBookingRepo) FindBySlotID(_ context.Context, slotID uuid.UUID) ([]*entity.Booking, error) {
	return r.bySlot(slotID, false), nil
}

func (r *memBookingRepo) FindActiveBySlotID(_ context.Context, slotID uuid.UUID) ([]*entity.Booking, error) {
	return r.bySlot(slotID, true), nil
}

func (r *memBookingRepo) bySlot(slotID uuid.UUID, activeOnly bool) []*entity.Booking {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.Booking
	for _, b := range r.m.bookings {
		if b.SlotID != slotID || (activeOnly && !b.Status.Active()) {
			continue
		}
		out = append(out, copyBooking(b))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memBookingRepo) SumActiveGroupSize(_ context.Context, slotID uuid.UUID) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.activeSum(slotID), nil
}

func (r *memBookingRepo) CountActiveBySlotID(_ context.Context, slotID uuid.UUID) (int, error) {
	return len(r.bySlot(slotID, true)), nil
}

// ---------- Visitors ----------

type memVisitorRepo struct{ m *memStore }

func (r *memVisitorRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Visitor, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	v, ok := r.m.visitors[id]
	if !ok {
		return nil, nil
	}
	c := *v
	return &c, nil
}

func (r *memVisitorRepo) FindByEmail(_ context.Context, email string) (*entity.Visitor, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, v := range r.m.visitors {
		if strings.EqualFold(v.Email, email) {
			c := *v
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memVisitorRepo) FindOrCreateByEmail(ctx context.Context, visitor *entity.Visitor) (*entity.Visitor, error) {
	existing, _ := r.FindByEmail(ctx, visitor.Email)
	if existing != nil {
		existing.Name = visitor.Name
		existing.Phone = visitor.Phone
		r.m.putVisitor(existing)
		return existing, nil
	}
	r.m.putVisitor(visitor)
	return visitor, nil
}

// ---------- Conflicts & audit ----------

type memConflictRepo struct{ m *memStore }

func (r *memConflictRepo) Create(_ context.Context, c *entity.ScheduleConflict) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *c
	r.m.conflicts[c.ID] = &cp
	return nil
}

func (r *memConflictRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.ScheduleConflict, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	c, ok := r.m.conflicts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memConflictRepo) List(_ context.Context, status *entity.ConflictStatus) ([]*entity.ScheduleConflict, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*entity.ScheduleConflict
	for _, c := range r.m.conflicts {
		if status != nil && c.Status != *status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memConflictRepo) UpdateStatus(_ context.Context, id uuid.UUID, status entity.ConflictStatus, resolvedBy *uuid.UUID, resolvedAt *time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if c, ok := r.m.conflicts[id]; ok {
		c.Status = status
		c.ResolvedBy = resolvedBy
		c.ResolvedAt = resolvedAt
	}
	return nil
}

type memAuditRepo struct{ m *memStore }

func (r *memAuditRepo) Create(_ context.Context, entry *entity.AuditLog) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.auditErr != nil {
		return r.m.auditErr
	}
	r.m.audits = append(r.m.audits, entry)
	return nil
}

// ---------- Notifier & publisher ----------

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.ConfirmationData
	err  error
}

func (n *recordingNotifier) SendBookingConfirmation(_ context.Context, data notify.ConfirmationData) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, data)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []any
	err      error
	panics   bool
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data any) error {
	if p.panics {
		panic("publisher exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.subjects...)
}

func (p *recordingPublisher) lastPayload() any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.payloads) == 0 {
		return nil
	}
	return p.payloads[len(p.payloads)-1]
}

var _ events.Publisher = (*recordingPublisher)(nil)

// ---------- Fixture ----------

// fixedNow is a Wednesday morning in UTC; slots in tests are placed relative
// to it.
var fixedNow = time.Date(2030, time.June, 12, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memStore
	repo      *repository.Repository
	notifier  *recordingNotifier
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	effects   *SideEffects
	now       time.Time
	clockMu   sync.Mutex

	slots    SlotService
	bookings *bookingService
	expiry   *ExpiryScheduler
}

func newFixture() *fixture {
	f := &fixture{
		store:     newMemStore(),
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		metrics:   metrics.New("test"),
		now:       fixedNow,
	}
	f.repo = f.store.repository()
	f.effects = NewSideEffects(SideEffectsConfig{}, f.repo.AuditLog, f.notifier, f.publisher, f.metrics, zap.NewNop())

	opts := []Option{WithClock(f.clock), WithLocation(time.UTC)}
	f.slots = NewSlotService(f.repo, f.effects, f.metrics, zap.NewNop(), opts...)
	f.bookings = newBookingService(f.repo, f.effects, f.metrics, zap.NewNop(), opts)
	f.expiry = NewExpiryScheduler(f.repo, f.effects, f.metrics, zap.NewNop(), opts...)
	return f
}

func (f *fixture) clock() time.Time {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) {
	f.clockMu.Lock()
	defer f.clockMu.Unlock()
	f.now = f.now.Add(d)
}

// addSlot stores an available slot on the day after fixedNow.
func (f *fixture) addSlot(capacity int, start, end string) *entity.VisitSlot {
	return f.addSlotOn(fixedNow.AddDate(0, 0, 1), capacity, start, end)
}

func (f *fixture) addSlotOn(day time.Time, capacity int, start, end string) *entity.VisitSlot {
	s := mustTime(start)
	e := mustTime(end)
	slot := &entity.VisitSlot{
		BaseNoDelete: entity.BaseNoDelete{
			ID:        uuid.New(),
			CreatedAt: fixedNow,
			UpdatedAt: fixedNow,
		},
		Date:            time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
		StartTime:       s,
		EndTime:         e,
		DurationMinutes: windowMinutes(s, e),
		Capacity:        capacity,
		Status:          entity.SlotStatusAvailable,
	}
	f.store.putSlot(slot)
	return slot
}

func (f *fixture) addVisitor(name, email string) *entity.Visitor {
	v := &entity.Visitor{
		BaseNoDelete: entity.BaseNoDelete{ID: uuid.New(), CreatedAt: fixedNow, UpdatedAt: fixedNow},
		Name:         name,
		Email:        email,
	}
	f.store.putVisitor(v)
	return v
}

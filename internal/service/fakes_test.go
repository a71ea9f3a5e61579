package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	apperrors "seminarbuchung/internal/errors"
	"seminarbuchung/internal/external"
	"seminarbuchung/internal/models"
	"seminarbuchung/internal/pricing"
	"seminarbuchung/internal/search"
)

func ptr(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

// fakeBookings mirrors the SQL guards of repository.BookingRepository
type fakeBookings struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]*models.Booking
	markCalls int
	links     map[int64]int64
	createErr error

	// reconciliation queue state: rejections per booking and the pass that last saw it
	attempts    map[int64]int
	lastChecked map[int64]int
	checks      int
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		items:       map[int64]*models.Booking{},
		links:       map[int64]int64{},
		attempts:    map[int64]int{},
		lastChecked: map[int64]int{},
	}
}

func clone(b *models.Booking) *models.Booking {
	c := *b
	c.Participants = append([]models.Participant(nil), b.Participants...)
	return &c
}

func (f *fakeBookings) Create(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if b.PaymentReference != "" {
		for _, existing := range f.items {
			if existing.PaymentReference == b.PaymentReference {
				return apperrors.NewValidationError("paymentReference", "payment reference already used")
			}
		}
	}
	f.nextID++
	b.ID = f.nextID
	b.CreatedAt = time.Now()
	f.items[b.ID] = clone(b)
	return nil
}

func (f *fakeBookings) GetByID(_ context.Context, id int64) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	return clone(b), nil
}

func (f *fakeBookings) GetByPaymentReference(_ context.Context, ref string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.items {
		if b.PaymentReference == ref {
			return clone(b), nil
		}
	}
	return nil, nil
}

func (f *fakeBookings) Update(_ context.Context, b *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.items[b.ID]
	if !ok {
		return apperrors.ErrBookingNotFound
	}
	if stored.Status != b.Status {
		return apperrors.ErrBookingConflict
	}
	updated := clone(b)
	updated.PaymentMethod = stored.PaymentMethod
	updated.PaymentReference = stored.PaymentReference
	updated.CustomerID = stored.CustomerID
	updated.CreatedAt = stored.CreatedAt
	f.items[b.ID] = updated
	return nil
}

func (f *fakeBookings) MarkPaid(_ context.Context, id int64, method, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok || b.Status != models.BookingStatusOpen {
		return false, nil
	}
	f.markCalls++
	b.Status = models.BookingStatusPaid
	b.PaymentMethod = method
	b.PaymentReference = ref
	return true, nil
}

func (f *fakeBookings) LinkCustomer(_ context.Context, bookingID, customerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[bookingID] = customerID
	if b, ok := f.items[bookingID]; ok {
		id := customerID
		b.CustomerID = &id
	}
	return nil
}

func (f *fakeBookings) ListOpenWithReference(_ context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for id := int64(1); id <= f.nextID; id++ {
		b, ok := f.items[id]
		if !ok || b.Status != models.BookingStatusOpen || b.PaymentReference == "" || !b.CreatedAt.Before(olderThan) {
			continue
		}
		if f.attempts[id] >= maxAttempts {
			continue
		}
		out = append(out, *clone(b))
	}
	// ORDER BY last_reconciled_at NULLS FIRST, created_at
	sort.SliceStable(out, func(i, j int) bool {
		return f.lastChecked[out[i].ID] < f.lastChecked[out[j].ID]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBookings) RecordReconcileAttempt(_ context.Context, id int64, rejected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok || b.Status != models.BookingStatusOpen {
		return nil
	}
	f.checks++
	f.lastChecked[id] = f.checks
	if rejected {
		f.attempts[id]++
	}
	return nil
}

func (f *fakeBookings) put(b *models.Booking) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	f.items[b.ID] = clone(b)
	return b
}

func (f *fakeBookings) get(id int64) *models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

type fakeCustomers struct {
	byEmail  map[string]*models.Customer
	created  []*models.Customer
	lookups  int
	findErr  error
	panicked bool
}

func newFakeCustomers() *fakeCustomers {
	return &fakeCustomers{byEmail: map[string]*models.Customer{}}
}

func (f *fakeCustomers) FindByEmail(_ context.Context, email string) (*models.Customer, error) {
	if f.panicked {
		panic("customer store exploded")
	}
	f.lookups++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.byEmail[email], nil
}

func (f *fakeCustomers) Create(_ context.Context, c *models.Customer) error {
	c.ID = int64(100 + len(f.created))
	f.created = append(f.created, c)
	f.byEmail[c.Email] = c
	return nil
}

type fakeCatalog struct {
	courses    map[int64]*models.Course
	sessions   map[int64]*models.Session
	titleCalls int
	err        error
}

func newFakeCatalog() *fakeCatalog {
	locationID := int64(5)
	return &fakeCatalog{
		courses: map[int64]*models.Course{
			10: {ID: 10, Name: "Weinseminar", Slug: "weinseminar", DefaultPrice: ptr(99), VATApplicable: true, Active: true},
			11: {ID: 11, Name: "Käseseminar", Slug: "kaese", DefaultPrice: ptr(50), VATApplicable: true, Active: true},
		},
		sessions: map[int64]*models.Session{
			1: {
				ID: 1, CourseID: 10, Price: ptr(119), Status: models.SessionStatusPlanned, LocationID: &locationID,
				Location: &models.Location{ID: 5, Standort: "Hamburg Altona", City: "Hamburg"},
				Days: []models.SessionDay{
					{Date: "2025-03-08", StartTime: "10:00:00"},
					{Date: "2025-03-07", StartTime: "18:00:00"},
				},
			},
			2: {ID: 2, CourseID: 11, Status: models.SessionStatusPlanned, Title: "Käse am Abend"},
		},
	}
}

func (f *fakeCatalog) GetSession(_ context.Context, id int64) (*models.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	c := *s
	return &c, nil
}

func (f *fakeCatalog) GetCourse(_ context.Context, id int64) (*models.Course, error) {
	return f.courses[id], nil
}

func (f *fakeCatalog) GetCourseBySlug(_ context.Context, slug string) (*models.Course, error) {
	for _, c := range f.courses {
		if c.Slug == slug && c.Active {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) ListActiveCourses(_ context.Context) ([]models.Course, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.Course{*f.courses[11], *f.courses[10]}, nil
}

func (f *fakeCatalog) ListPlannedSessions(_ context.Context, courseID int64) ([]models.Session, error) {
	var out []models.Session
	for id := int64(1); id <= int64(len(f.sessions)); id++ {
		s := f.sessions[id]
		if s == nil || s.Status != models.SessionStatusPlanned {
			continue
		}
		if courseID == 0 || s.CourseID == courseID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SetTitleIfEmpty(_ context.Context, id int64, title string) (bool, error) {
	f.titleCalls++
	s, ok := f.sessions[id]
	if !ok || s.Title != "" {
		return false, nil
	}
	s.Title = title
	return true, nil
}

type fakeVouchers struct {
	vouchers []models.Voucher
}

func (f *fakeVouchers) FindByCodes(_ context.Context, codes []string) (*models.Voucher, error) {
	for i := range f.vouchers {
		for _, c := range codes {
			if f.vouchers[i].Code == c {
				v := f.vouchers[i]
				return &v, nil
			}
		}
	}
	return nil, nil
}

// fakeGateway answers like PayPal: unsigned deliveries are never verified
type fakeGateway struct {
	captures  map[string]*external.Capture
	orders    map[string]*external.Order
	verified  bool
	err       error
	verifyErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		captures: map[string]*external.Capture{},
		orders:   map[string]*external.Order{},
		verified: true,
	}
}

func (g *fakeGateway) capture(id, status, currency, value string) {
	g.captures[id] = &external.Capture{ID: id, Status: status, Amount: external.Money{CurrencyCode: currency, Value: value}}
}

func (g *fakeGateway) GetCapture(_ context.Context, id string) (*external.Capture, error) {
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.captures[id]
	if !ok {
		return nil, &external.APIError{Op: "get capture", StatusCode: 404, Body: "RESOURCE_NOT_FOUND"}
	}
	return c, nil
}

func (g *fakeGateway) GetOrder(_ context.Context, id string) (*external.Order, error) {
	if g.err != nil {
		return nil, g.err
	}
	o, ok := g.orders[id]
	if !ok {
		return nil, &external.APIError{Op: "get order", StatusCode: 404, Body: "RESOURCE_NOT_FOUND"}
	}
	return o, nil
}

func (g *fakeGateway) VerifyWebhookSignature(_ context.Context, h external.WebhookHeaders, _ json.RawMessage) (bool, error) {
	if !h.Complete() {
		return false, nil
	}
	if g.verifyErr != nil {
		return false, g.verifyErr
	}
	return g.verified, nil
}

type publishedEvent struct {
	subject string
	data    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(subject string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{subject: subject, data: data})
	return nil
}

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.subject)
	}
	return out
}

func (p *fakePublisher) count(subject string) int {
	n := 0
	for _, s := range p.subjects() {
		if s == subject {
			n++
		}
	}
	return n
}

type fakeLedger struct {
	seen map[string]bool
	err  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{seen: map[string]bool{}}
}

func (l *fakeLedger) WebhookProcessed(_ context.Context, id string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	return l.seen[id], nil
}

func (l *fakeLedger) MarkWebhookProcessed(_ context.Context, id string, _ time.Duration) error {
	l.seen[id] = true
	return nil
}

type fakeCache struct {
	data []byte
	sets int
}

func (c *fakeCache) GetSeminarList(_ context.Context) ([]byte, error) {
	return c.data, nil
}

func (c *fakeCache) SetSeminarList(_ context.Context, data []byte, _ time.Duration) error {
	c.sets++
	c.data = data
	return nil
}

type fakeSearcher struct {
	docs  []search.SessionDocument
	query string
}

func (s *fakeSearcher) Search(_ context.Context, query string, _, _ int) ([]search.SessionDocument, error) {
	s.query = query
	if query == "boom" {
		return nil, errors.New("search unavailable")
	}
	return s.docs, nil
}

type testEnv struct {
	bookings  *fakeBookings
	customers *fakeCustomers
	catalog   *fakeCatalog
	vouchers  *fakeVouchers
	gateway   *fakeGateway
	publisher *fakePublisher
	ledger    *fakeLedger
	services  *Services
}

func newTestEnv(vouchers ...models.Voucher) *testEnv {
	env := &testEnv{
		bookings:  newFakeBookings(),
		customers: newFakeCustomers(),
		catalog:   newFakeCatalog(),
		vouchers:  &fakeVouchers{vouchers: vouchers},
		gateway:   newFakeGateway(),
		publisher: &fakePublisher{},
		ledger:    newFakeLedger(),
	}
	env.useBookingStore(env.bookings)
	return env
}

// useBookingStore rebuilds the services on top of store, typically a
// wrapper around env.bookings that interleaves a concurrent writer.
func (env *testEnv) useBookingStore(store BookingStore) {
	env.services = NewServices(Dependencies{
		Bookings:  store,
		Customers: env.customers,
		Catalog:   env.catalog,
		Vouchers:  env.vouchers,
		Gateway:   env.gateway,
		Publisher: env.publisher,
		Ledger:    env.ledger,
		Pricing:   pricing.Config{DefaultVATRate: 19, PricesIncludeVAT: true},
	})
}

func privateRequest(sessionID int64, participants ...string) *models.CreateBookingRequest {
	req := &models.CreateBookingRequest{
		SessionID:     models.SessionRef{ID: sessionID, Valid: sessionID > 0},
		InvoicingType: string(models.InvoicingPrivate),
		FirstName:     "Anna",
		LastName:      "Schmidt",
		Email:         "anna@example.de",
		TermsAccepted: true,
	}
	for _, name := range participants {
		req.Participants = append(req.Participants, models.Participant{FirstName: name, LastName: "Schmidt"})
	}
	return req
}

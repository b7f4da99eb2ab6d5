package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"

	"paysuit/internal/models"
	"paysuit/internal/push"
	"paysuit/internal/store"
)

// fakeStore implements store.DataStore for handler tests.
type fakeStore struct {
	mu            sync.Mutex
	users         map[int]models.User
	subscriptions map[string]models.PushSubscription
	houses        map[int]models.House
	apartments    map[int]models.Apartment
	payments      map[string]models.Payment
	auditLogs     []models.AuditLog
	nextID        int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[int]models.User),
		subscriptions: make(map[string]models.PushSubscription),
		houses:        make(map[int]models.House),
		apartments:    make(map[int]models.Apartment),
		payments:      make(map[string]models.Payment),
		nextID:        1,
	}
}

func (s *fakeStore) id() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *fakeStore) CreateUser(ctx context.Context, name, email, phone, password string, roles []models.UserRole) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == email {
			return models.User{}, store.ErrDuplicateEmail
		}
	}
	hash, _ := models.HashPassword(password)
	user := models.User{ID: s.id(), Name: name, Email: email, Phone: phone, PasswordHash: hash, Roles: roles}
	s.users[user.ID] = user
	return user, nil
}

func (s *fakeStore) GetUser(ctx context.Context, id int) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return user, nil
}

func (s *fakeStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (s *fakeStore) GetUsers(ctx context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *fakeStore) UpdateUserProfile(ctx context.Context, id int, name, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Name, user.Phone = name, phone
	s.users[id] = user
	return nil
}

func (s *fakeStore) UpdateUserPassword(ctx context.Context, id int, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[id]
	user.PasswordHash = hash
	s.users[id] = user
	return nil
}

func (s *fakeStore) UpdateUserRoles(ctx context.Context, id int, roles []models.UserRole) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Roles = roles
	s.users[id] = user
	return nil
}

func (s *fakeStore) DeleteUser(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *fakeStore) UpdateUser2FA(ctx context.Context, userID int, secret string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[userID]
	user.TOTPSecret, user.TOTPEnabled = secret, enabled
	s.users[userID] = user
	return nil
}

func (s *fakeStore) Disable2FA(ctx context.Context, userID int) error {
	return s.UpdateUser2FA(ctx, userID, "", false)
}

func (s *fakeStore) CreateApartment(ctx context.Context, a models.Apartment) (models.Apartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.id()
	s.apartments[a.ID] = a
	for door := 1; door <= a.NumberOfDoors; door++ {
		house := models.House{
			ID:                s.id(),
			ApartmentID:       a.ID,
			DoorNumber:        strconv.Itoa(door),
			Status:            models.HouseVacant,
			RentAmount:        a.RentAmount,
			DepositAmount:     a.DepositAmount,
			AdditionalCharges: a.AdditionalCharges,
		}
		s.houses[house.ID] = house
	}
	return a, nil
}

func (s *fakeStore) GetApartment(ctx context.Context, id int) (models.Apartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apartments[id]
	if !ok {
		return models.Apartment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *fakeStore) GetApartmentsByLandlord(ctx context.Context, landlordID int) ([]models.Apartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Apartment
	for _, a := range s.apartments {
		if a.LandlordID == landlordID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetHouse(ctx context.Context, id int) (models.House, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.houses[id]
	if !ok {
		return models.House{}, store.ErrNotFound
	}
	return h, nil
}

func (s *fakeStore) GetHouses(ctx context.Context, apartmentID int) ([]models.House, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.House
	for _, h := range s.houses {
		if h.ApartmentID == apartmentID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *fakeStore) GetHousesByTenant(ctx context.Context, tenantID int) ([]models.House, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.House
	for _, h := range s.houses {
		if h.TenantID == tenantID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (s *fakeStore) AssignTenant(ctx context.Context, houseID, tenantID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.houses[houseID]
	if !ok || h.Status != models.HouseVacant {
		return store.ErrNotFound
	}
	h.TenantID, h.Status = tenantID, models.HouseOccupied
	s.houses[houseID] = h
	return nil
}

func (s *fakeStore) VacateHouse(ctx context.Context, houseID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.houses[houseID]
	h.TenantID, h.Status = 0, models.HouseVacant
	s.houses[houseID] = h
	return nil
}

func (s *fakeStore) CreatePayment(ctx context.Context, p models.Payment) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	p.Status = models.PaymentPending
	s.payments[p.CheckoutRequestID] = p
	return p, nil
}

func (s *fakeStore) GetPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[checkoutRequestID]
	if !ok {
		return models.Payment{}, store.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) ApplyPaymentCallback(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc, receipt string, amount int) (models.Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[checkoutRequestID]
	if !ok {
		return models.Payment{}, false, store.ErrNotFound
	}
	if p.Status != models.PaymentPending {
		return p, false, nil
	}
	p.Status = models.StatusFromResultCode(resultCode)
	p.ResultCode = &resultCode
	p.ResultDesc = resultDesc
	p.MpesaReceiptNumber = receipt
	p.TransactionAmount = amount
	s.payments[checkoutRequestID] = p
	return p, true, nil
}

func (s *fakeStore) GetPaymentsByTenant(ctx context.Context, tenantID int) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPaymentsByApartment(ctx context.Context, apartmentID int) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.ApartmentID == apartmentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertSubscription(ctx context.Context, userID int, endpoint, p256dh, auth string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, exists := s.subscriptions[endpoint]
	if !exists {
		sub = models.PushSubscription{ID: s.id(), Endpoint: endpoint}
	}
	sub.UserID, sub.P256dh, sub.Auth = userID, p256dh, auth
	s.subscriptions[endpoint] = sub
	return sub.ID, nil
}

func (s *fakeStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subscriptions, endpoint)
	return nil
}

func (s *fakeStore) DeleteSubscriptionOwned(ctx context.Context, userID int, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subscriptions[endpoint]; ok && sub.UserID == userID {
		delete(s.subscriptions, endpoint)
	}
	return nil
}

func (s *fakeStore) GetSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PushSubscription
	for _, sub := range s.subscriptions {
		out = append(out, sub)
	}
	return out, nil
}

func (s *fakeStore) GetSubscriptionsByUser(ctx context.Context, userID int) ([]models.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PushSubscription
	for _, sub := range s.subscriptions {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeStore) AddAuditLog(ctx context.Context, entry models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *fakeStore) GetAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auditLogs, nil
}

// fakeFeed implements store.FeedStore.
type fakeFeed struct {
	mu            sync.Mutex
	notifications map[int][]models.Notification
	events        []any
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{notifications: make(map[int][]models.Notification)}
}

func (f *fakeFeed) AddNotification(ctx context.Context, userID int, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications[userID] = append(f.notifications[userID], n)
	return nil
}

func (f *fakeFeed) GetNotifications(ctx context.Context, userID, limit, offset int) ([]models.Notification, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.notifications[userID]
	return all, int64(len(all)), nil
}

func (f *fakeFeed) PurgeNotifications(ctx context.Context, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.notifications, userID)
	return nil
}

func (f *fakeFeed) PublishEvent(ctx context.Context, event any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context) *redis.PubSub {
	return nil
}

// fakeNotifier records fan-out calls without any real delivery.
type fakeNotifier struct {
	mu        sync.Mutex
	sent      []models.NotificationPayload
	result    push.Result
	publicKey string
}

func (n *fakeNotifier) SendToUser(ctx context.Context, userID int, payload models.NotificationPayload) (push.Result, error) {
	if err := payload.Validate(); err != nil {
		return push.Result{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, payload)
	return n.result, nil
}

func (n *fakeNotifier) Broadcast(ctx context.Context, payload models.NotificationPayload) (push.Result, error) {
	if err := payload.Validate(); err != nil {
		return push.Result{}, err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, payload)
	return n.result, nil
}

func (n *fakeNotifier) PublicKey() string {
	return n.publicKey
}

func (n *fakeNotifier) calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// authedRequest attaches a session cookie for the given user.
func authedRequest(t *testing.T, req *http.Request, user models.User) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	createSession(rec, req, user)
	for _, cookie := range rec.Result().Cookies() {
		req.AddCookie(cookie)
	}
	return req
}

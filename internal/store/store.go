package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"paysuit/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	notificationTTL = 30 * 24 * time.Hour // 30 days
	feedMaxLen      = 200
	eventsChannel   = "paysuit:events"
)

// DataStore is the durable system of record (PostgreSQL).
type DataStore interface {
	// User methods
	CreateUser(ctx context.Context, name, email, phone, password string, roles []models.UserRole) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	UpdateUserProfile(ctx context.Context, id int, name, phone string) error
	UpdateUserPassword(ctx context.Context, id int, newPasswordHash string) error
	UpdateUserRoles(ctx context.Context, id int, roles []models.UserRole) error
	DeleteUser(ctx context.Context, id int) error

	// 2FA methods
	UpdateUser2FA(ctx context.Context, userID int, totpSecret string, enabled bool) error
	Disable2FA(ctx context.Context, userID int) error

	// Apartment / house methods
	CreateApartment(ctx context.Context, a models.Apartment) (models.Apartment, error)
	GetApartment(ctx context.Context, id int) (models.Apartment, error)
	GetApartmentsByLandlord(ctx context.Context, landlordID int) ([]models.Apartment, error)
	GetHouse(ctx context.Context, id int) (models.House, error)
	GetHouses(ctx context.Context, apartmentID int) ([]models.House, error)
	GetHousesByTenant(ctx context.Context, tenantID int) ([]models.House, error)
	AssignTenant(ctx context.Context, houseID, tenantID int) error
	VacateHouse(ctx context.Context, houseID int) error

	// Payment methods
	CreatePayment(ctx context.Context, p models.Payment) (models.Payment, error)
	GetPaymentByCheckoutID(ctx context.Context, checkoutRequestID string) (models.Payment, error)
	ApplyPaymentCallback(ctx context.Context, checkoutRequestID string, resultCode int, resultDesc, receipt string, amount int) (models.Payment, bool, error)
	GetPaymentsByTenant(ctx context.Context, tenantID int) ([]models.Payment, error)
	GetPaymentsByApartment(ctx context.Context, apartmentID int) ([]models.Payment, error)

	// Push subscription methods
	UpsertSubscription(ctx context.Context, userID int, endpoint, p256dh, auth string) (int, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	DeleteSubscriptionOwned(ctx context.Context, userID int, endpoint string) error
	GetSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	GetSubscriptionsByUser(ctx context.Context, userID int) ([]models.PushSubscription, error)

	// Audit methods
	AddAuditLog(ctx context.Context, entry models.AuditLog) error
	GetAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)
}

// FeedStore keeps the ephemeral per-user notification feed and the live
// events channel (Redis).
type FeedStore interface {
	AddNotification(ctx context.Context, userID int, n models.Notification) error
	GetNotifications(ctx context.Context, userID, limit, offset int) ([]models.Notification, int64, error)
	PurgeNotifications(ctx context.Context, userID int) error
	PublishEvent(ctx context.Context, event any) error
	Subscribe(ctx context.Context) *redis.PubSub
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	rdb := redis.NewClient(opts)
	return &RedisStore{client: rdb}
}

func feedKey(userID int) string {
	return fmt.Sprintf("notifications:%d", userID)
}

func (s *RedisStore) AddNotification(ctx context.Context, userID int, n models.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(n)
	if err != nil {
		return err
	}

	key := feedKey(userID)
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, feedMaxLen-1)
	pipe.Expire(ctx, key, notificationTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) GetNotifications(ctx context.Context, userID, limit, offset int) ([]models.Notification, int64, error) {
	key := feedKey(userID)

	raw, err := s.client.LRange(ctx, key, int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get notifications: %w", err)
	}

	var notifications []models.Notification
	for _, item := range raw {
		var n models.Notification
		if err := json.Unmarshal([]byte(item), &n); err == nil {
			notifications = append(notifications, n)
		}
	}

	total, _ := s.client.LLen(ctx, key).Result()
	return notifications, total, nil
}

func (s *RedisStore) PurgeNotifications(ctx context.Context, userID int) error {
	return s.client.Del(ctx, feedKey(userID)).Err()
}

func (s *RedisStore) PublishEvent(ctx context.Context, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, eventsChannel, data).Err()
}

func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, eventsChannel)
}

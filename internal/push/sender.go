// Package push implements the notification fan-out pipeline: one payload is
// dispatched to every target subscription concurrently, failures are counted
// rather than surfaced, and endpoints that fail are removed from the
// registry so it converges toward only-live subscriptions.
package push

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"

	"paysuit/internal/metrics"
	"paysuit/internal/models"
)

// Registry is the subscription storage the sender reads targets from and
// prunes dead endpoints out of.
type Registry interface {
	GetSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	GetSubscriptionsByUser(ctx context.Context, userID int) ([]models.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Result is the aggregate outcome of one fan-out.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

type deliverFunc func(message []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

type Sender struct {
	registry   Registry
	publicKey  string
	privateKey string
	subscriber string // contact for the push service, mailto: form
	ttl        int
	deliver    deliverFunc
}

func NewSender(registry Registry, publicKey, privateKey, subscriber string) *Sender {
	return &Sender{
		registry:   registry,
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		ttl:        86400,
		deliver:    webpush.SendNotification,
	}
}

// PublicKey returns the VAPID public key browsers subscribe with.
func (s *Sender) PublicKey() string {
	return s.publicKey
}

// LoadVAPIDKeys reads VAPID keys from the environment, generating and
// logging a fresh pair when absent.
func LoadVAPIDKeys() (privateKey, publicKey string, err error) {
	privateKey = os.Getenv("VAPID_PRIVATE_KEY")
	publicKey = os.Getenv("VAPID_PUBLIC_KEY")

	if privateKey == "" || publicKey == "" {
		log.Println("VAPID keys not found in environment. Generating new keys...")
		privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
		if err != nil {
			return "", "", err
		}
		log.Printf("Generated VAPID Keys:\nVAPID_PRIVATE_KEY=%s\nVAPID_PUBLIC_KEY=%s\n(Add these to your .env file to persist them)", privateKey, publicKey)
	}

	return privateKey, publicKey, nil
}

// SendToUser pushes the payload to every subscription owned by userID.
func (s *Sender) SendToUser(ctx context.Context, userID int, payload models.NotificationPayload) (Result, error) {
	if err := payload.Validate(); err != nil {
		return Result{}, err
	}

	subs, err := s.registry.GetSubscriptionsByUser(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	return s.fanOut(ctx, subs, payload)
}

// Broadcast pushes the payload to every subscription in the registry.
func (s *Sender) Broadcast(ctx context.Context, payload models.NotificationPayload) (Result, error) {
	if err := payload.Validate(); err != nil {
		return Result{}, err
	}

	subs, err := s.registry.GetSubscriptions(ctx)
	if err != nil {
		return Result{}, err
	}

	return s.fanOut(ctx, subs, payload)
}

// fanOut dispatches the payload to every subscription concurrently. Each
// delivery is independent: one outcome never blocks or cancels another, and
// no retry is attempted. Every failed endpoint is deleted from the registry
// afterward.
func (s *Sender) fanOut(ctx context.Context, subs []models.PushSubscription, payload models.NotificationPayload) (Result, error) {
	res := Result{Total: len(subs)}
	if len(subs) == 0 {
		return res, nil
	}

	if payload.URL == "" {
		payload.URL = "/"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []string
	)

	for _, sub := range subs {
		wg.Add(1)
		go func(sub models.PushSubscription) {
			defer wg.Done()

			err := s.send(sub, data)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				failed = append(failed, sub.Endpoint)
				return
			}
			res.Sent++
		}(sub)
	}
	wg.Wait()

	metrics.PushDeliveriesTotal.WithLabelValues("sent").Add(float64(res.Sent))
	metrics.PushDeliveriesTotal.WithLabelValues("failed").Add(float64(res.Failed))

	// Self-healing: any endpoint that failed is treated as expired or
	// invalid and dropped. Delete is idempotent, so overlapping fan-outs
	// pruning the same endpoint are harmless.
	for _, endpoint := range failed {
		if err := s.registry.DeleteSubscription(ctx, endpoint); err != nil {
			log.Printf("Failed to remove dead subscription %s: %v", endpoint, err)
			continue
		}
		metrics.SubscriptionsPrunedTotal.Inc()
	}

	return res, nil
}

// statusError marks an HTTP status the push service returned for a delivery
// that was otherwise transported successfully.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}

func (s *Sender) send(sub models.PushSubscription, data []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := s.deliver(data, wpSub, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             s.ttl,
	})
	if err != nil {
		log.Printf("Failed to send push to %s: %v", sub.Endpoint, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Printf("Push to %s rejected with status %d", sub.Endpoint, resp.StatusCode)
		return &statusError{code: resp.StatusCode}
	}

	return nil
}

// Package payments defines the seam between the service and the mobile-money
// gateway that drives STK push prompts.
package payments

import (
	"context"

	"github.com/google/uuid"
)

// InitiateResult mirrors the gateway's STK push initiation response.
type InitiateResult struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

// Gateway initiates an STK push prompt on the customer's phone. The actual
// settlement arrives later on the callback endpoint.
type Gateway interface {
	Initiate(ctx context.Context, phone string, amount int, reference string) (InitiateResult, error)
}

// SandboxGateway accepts every initiation without contacting a real
// gateway. Settlement is driven by posting callbacks manually.
type SandboxGateway struct{}

func (SandboxGateway) Initiate(ctx context.Context, phone string, amount int, reference string) (InitiateResult, error) {
	return InitiateResult{
		MerchantRequestID:   uuid.NewString(),
		CheckoutRequestID:   uuid.NewString(),
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

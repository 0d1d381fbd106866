package otp

import (
	"context"

	"storefront/pkg/log"
	"storefront/pkg/utils"
)

// Channel names
const (
	ChannelDemo    = "demo"
	ChannelDiscard = "discard"
)

// Channel delivers an issued code to its owner
type Channel interface {
	Name() string
	// Deliver sends code to phone. The returned string is shown to the
	// requester and is empty for any real out-of-band channel.
	Deliver(ctx context.Context, phone, code string) (string, error)
}

// InsecureDemoChannel echoes the code back to whoever asked for it. It
// exists for demos and tests only.
type InsecureDemoChannel struct{}

// Name returns the channel name
func (InsecureDemoChannel) Name() string { return ChannelDemo }

// Deliver returns the code to the caller
func (InsecureDemoChannel) Deliver(ctx context.Context, phone, code string) (string, error) {
	log.FromContext(ctx).WithField("phone", utils.MaskPhone(phone)).Warn("OTP returned in response by demo channel")
	return code, nil
}

// DiscardChannel drops codes. Stands in for an SMS gateway.
type DiscardChannel struct{}

// Name returns the channel name
func (DiscardChannel) Name() string { return ChannelDiscard }

// Deliver logs the masked phone number and discards the code
func (DiscardChannel) Deliver(ctx context.Context, phone, _ string) (string, error) {
	log.FromContext(ctx).WithField("phone", utils.MaskPhone(phone)).Info("OTP issued")
	return "", nil
}

// NewChannel returns the channel registered under name
func NewChannel(name string) Channel {
	if name == ChannelDemo {
		return InsecureDemoChannel{}
	}
	return DiscardChannel{}
}

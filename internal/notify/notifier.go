// Package notify posts committed-order webhooks so the shop owner can
// receive order pings (e.g. a Telegram/IFTTT bridge) without polling the
// admin console.
package notify

import (
	"context"
	"time"

	"keebshop_backend/models"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Notifier fires a JSON webhook per committed order. A Notifier with an
// empty URL is valid and does nothing, so callers never have to branch.
type Notifier struct {
	url    string
	client *resty.Client
	log    *logrus.Entry
}

func New(webhookURL string, logger *logrus.Logger) *Notifier {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Notifier{
		url:    webhookURL,
		client: client,
		log:    logger.WithField("component", "notify"),
	}
}

type orderEvent struct {
	Event       string  `json:"event"`
	Reference   string  `json:"reference"`
	Customer    string  `json:"customer"`
	Phone       string  `json:"phone"`
	Total       float64 `json:"total"`
	Paid        float64 `json:"paid"`
	Due         float64 `json:"due"`
	ItemCount   int     `json:"itemCount"`
	PaymentMode string  `json:"paymentMethod"`
}

// OrderCommitted sends the webhook in the background. Delivery is best
// effort; a failed webhook never affects the already committed order.
func (n *Notifier) OrderCommitted(o *models.Order) {
	if n.url == "" {
		return
	}

	ev := orderEvent{
		Event:       "order.committed",
		Reference:   o.Reference,
		Customer:    o.CustomerName,
		Phone:       o.Phone,
		Total:       o.Total,
		Paid:        o.Paid,
		Due:         o.Due,
		ItemCount:   o.TotalQuantity(),
		PaymentMode: o.PaymentMethod,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		resp, err := n.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(ev).
			Post(n.url)
		if err != nil {
			n.log.WithError(err).Warn("Order webhook delivery failed")
			return
		}
		if resp.IsError() {
			n.log.WithField("status", resp.StatusCode()).Warn("Order webhook rejected")
		}
	}()
}

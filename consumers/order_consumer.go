package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"order-service/config"
	"order-service/errs"
	"order-service/models"
	"order-service/service"
)

// StartOrderConsumer consumes the order queue and the dead-letter queue.
// The payment_check handler is the only one with a side effect: it cancels
// orders still PENDING after the payment window, through the service layer so
// the terminal-state guard and event publishing apply.
func StartOrderConsumer(ch *amqp.Channel, cfg *config.Config, svc *service.OrderService) {
	msgs, err := ch.Consume(
		cfg.OrderQueue,
		"order-service", // consumer tag
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,
	)
	if err != nil {
		log.Fatalf("Failed to register consumer: %v", err)
	}

	go func() {
		for msg := range msgs {
			processOrderMessage(msg, svc)
		}
	}()

	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"order-service-dlq",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Printf("Failed to register DLQ consumer: %v", err)
		return
	}

	go func() {
		for msg := range dlqMsgs {
			processDeadLetterMessage(msg)
		}
	}()
}

func processOrderMessage(msg amqp.Delivery, svc *service.OrderService) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in message processing: %v", r)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		log.Printf("Invalid message format: %s", msg.Body)
		msg.Nack(false, false) // reject without requeue, goes to the DLQ
		return
	}

	log.Printf("Processing order event: id=%d, type=%s", event.OrderID, event.Type)

	switch event.Type {
	case models.EventOrderCreated, models.EventStatusUpdated, models.EventOrderCanceled:
		// Fan-out hooks (notifications, cache refresh) would live here.
	case models.EventPaymentCheck:
		handlePaymentCheck(event.OrderID, svc)
	default:
		log.Printf("Unknown event type: %s", event.Type)
	}

	msg.Ack(false)
}

func processDeadLetterMessage(msg amqp.Delivery) {
	log.Printf("Received dead letter: %s", msg.Body)
	msg.Ack(false)
}

// handlePaymentCheck auto-cancels an order that is still unpaid when the
// delayed check fires. A race with a concurrent status change simply loses:
// the guard or the version check rejects the cancel and that is the correct
// outcome.
func handlePaymentCheck(orderID int64, svc *service.OrderService) {
	ctx := context.Background()

	order, err := svc.GetOrder(ctx, orderID)
	if err != nil {
		log.Printf("Payment check: failed to load order %d: %v", orderID, err)
		return
	}
	if order.Status != models.StatusPending {
		return
	}

	if _, err := svc.Cancel(ctx, orderID); err != nil {
		var transitionErr *errs.InvalidTransitionError
		if errors.As(err, &transitionErr) || errors.Is(err, errs.ErrVersionConflict) {
			return // someone beat us to it
		}
		log.Printf("Failed to auto-cancel order %d: %v", orderID, err)
		return
	}
	log.Printf("Auto-cancelled order %d due to non-payment", orderID)
}

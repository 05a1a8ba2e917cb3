package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kendall-kelly/home-services-api/logger"
	"github.com/kendall-kelly/home-services-api/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FanOutResult aggregates the sends of one notification
type FanOutResult struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// OK reports whether at least one recipient was reached
func (r FanOutResult) OK() bool {
	return r.Successful > 0
}

func (r *FanOutResult) add(res SendResult) {
	r.Total++
	if res.Success {
		r.Successful++
	} else {
		r.Failed++
	}
}

// OrderNotifier is what order transitions use to fire notifications.
// Every method returns immediately; false means the task was dropped.
type OrderNotifier interface {
	EnqueueNewOrder(order models.Order, partners []models.Partner) bool
	EnqueueAcceptance(order models.Order) bool
	EnqueuePaymentRequested(order models.Order) bool
}

// Task is a unit of notification work run by the pool
type Task struct {
	Name    string
	OrderID uint
	Run     func(ctx context.Context) FanOutResult
}

const taskTimeout = 30 * time.Second

// NotificationDispatcher sends order notifications to partners and customers.
// Sends are isolated per recipient and every attempt is recorded as a
// NotificationDelivery. Enqueued work runs on a bounded worker pool.
type NotificationDispatcher struct {
	db      *gorm.DB
	sender  EmailSender
	tasks   chan Task
	workers int

	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closed  bool
	started bool
}

// NewNotificationDispatcher creates a dispatcher; call Start before enqueueing.
func NewNotificationDispatcher(db *gorm.DB, sender EmailSender, workers, queueSize int) *NotificationDispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &NotificationDispatcher{
		db:      db,
		sender:  sender,
		tasks:   make(chan Task, queueSize),
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (d *NotificationDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.workers; i++ {
		go d.worker()
	}
	logger.Log.Info("Notification dispatcher started", zap.Int("workers", d.workers), zap.Int("queue_size", cap(d.tasks)))
}

// Stop refuses new tasks, runs what is already queued, then returns
func (d *NotificationDispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
	logger.Log.Info("Notification dispatcher stopped")
}

// Wait blocks until every enqueued task has finished
func (d *NotificationDispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands a task to the pool without blocking.
// It returns false if the queue is full or the dispatcher is stopped.
func (d *NotificationDispatcher) Enqueue(task Task) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		logger.Log.Warn("Notification dropped, dispatcher stopped", zap.String("task", task.Name), zap.Uint("order_id", task.OrderID))
		return false
	}

	d.wg.Add(1)
	select {
	case d.tasks <- task:
		return true
	default:
		d.wg.Done()
		logger.Log.Warn("Notification dropped, queue full", zap.String("task", task.Name), zap.Uint("order_id", task.OrderID))
		return false
	}
}

func (d *NotificationDispatcher) worker() {
	for task := range d.tasks {
		d.runTask(task)
		d.wg.Done()
	}
}

func (d *NotificationDispatcher) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Error("Notification task panicked", zap.String("task", task.Name), zap.Uint("order_id", task.OrderID), zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(d.ctx, taskTimeout)
	defer cancel()

	result := task.Run(ctx)
	fields := []zap.Field{
		zap.String("task", task.Name),
		zap.Uint("order_id", task.OrderID),
		zap.Int("total", result.Total),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
	}
	if result.OK() {
		logger.Log.Info("Notification delivered", fields...)
	} else {
		logger.Log.Warn("Notification not delivered to any recipient", fields...)
	}
}

// EnqueueNewOrder queues the new-order fan-out to eligible partners
func (d *NotificationDispatcher) EnqueueNewOrder(order models.Order, partners []models.Partner) bool {
	return d.Enqueue(Task{
		Name:    models.NotificationNewOrder,
		OrderID: order.ID,
		Run: func(ctx context.Context) FanOutResult {
			return d.NotifyEligiblePartners(ctx, &order, partners)
		},
	})
}

// EnqueueAcceptance queues the acceptance email to the customer
func (d *NotificationDispatcher) EnqueueAcceptance(order models.Order) bool {
	return d.Enqueue(Task{
		Name:    models.NotificationOrderAccepted,
		OrderID: order.ID,
		Run: func(ctx context.Context) FanOutResult {
			return d.NotifyAcceptance(ctx, &order)
		},
	})
}

// EnqueuePaymentRequested queues the payment reminder to the customer
func (d *NotificationDispatcher) EnqueuePaymentRequested(order models.Order) bool {
	return d.Enqueue(Task{
		Name:    models.NotificationPaymentRequested,
		OrderID: order.ID,
		Run: func(ctx context.Context) FanOutResult {
			return d.NotifyPaymentRequested(ctx, &order)
		},
	})
}

// NotifyEligiblePartners tells every eligible partner about a new order.
// One partner's failure never stops the others.
func (d *NotificationDispatcher) NotifyEligiblePartners(ctx context.Context, order *models.Order, partners []models.Partner) FanOutResult {
	var result FanOutResult
	data := orderPayload(order)

	for _, partner := range partners {
		to := ""
		if partner.User != nil {
			to = partner.User.Email
		}
		payload := withField(data, "partner_name", partner.Name)
		result.add(d.send(ctx, models.NotificationNewOrder, TemplateNewOrder, order.ID, to, payload))
	}
	return result
}

// NotifyAcceptance confirms to the customer that a partner took the order
func (d *NotificationDispatcher) NotifyAcceptance(ctx context.Context, order *models.Order) FanOutResult {
	data := orderPayload(order)
	if order.Partner != nil {
		data["partner_name"] = order.Partner.Name
		data["partner_phone"] = order.Partner.Phone
	}
	return d.notifyCustomer(ctx, order, models.NotificationOrderAccepted, TemplateOrderAccepted, data)
}

// NotifyThresholdExceeded tells the customer no partner has responded yet
func (d *NotificationDispatcher) NotifyThresholdExceeded(ctx context.Context, order *models.Order) FanOutResult {
	return d.notifyCustomer(ctx, order, models.NotificationThresholdExceeded, TemplateThresholdExceeded, orderPayload(order))
}

// NotifyPaymentRequested reminds the customer to settle the remaining amount
func (d *NotificationDispatcher) NotifyPaymentRequested(ctx context.Context, order *models.Order) FanOutResult {
	return d.notifyCustomer(ctx, order, models.NotificationPaymentRequested, TemplatePaymentRequested, orderPayload(order))
}

// HasDelivered reports whether a notification of kind already reached
// at least one recipient for the order.
func (d *NotificationDispatcher) HasDelivered(ctx context.Context, orderID uint, kind string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.NotificationDelivery{}).
		Where("order_id = ? AND kind = ? AND success = ?", orderID, kind, true).
		Count(&count).Error
	if err != nil {
		return false, classifyDBError(err)
	}
	return count > 0, nil
}

func (d *NotificationDispatcher) notifyCustomer(ctx context.Context, order *models.Order, kind, template string, data map[string]string) FanOutResult {
	var result FanOutResult

	customer := order.User
	if customer == nil {
		var user models.User
		err := d.db.WithContext(ctx).First(&user, order.UserID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Log.Error("Failed to load customer for notification", zap.Uint("order_id", order.ID), zap.Error(err))
		}
		if err == nil {
			customer = &user
		}
	}

	to := ""
	if customer != nil {
		to = customer.Email
		data["customer_name"] = customer.Name
	}
	result.add(d.send(ctx, kind, template, order.ID, to, data))
	return result
}

// send performs one isolated send and records the attempt
func (d *NotificationDispatcher) send(ctx context.Context, kind, template string, orderID uint, to string, data map[string]string) SendResult {
	var res SendResult
	if to == "" {
		res = SendResult{Error: "recipient has no email address"}
	} else {
		res = d.safeSend(ctx, template, to, data)
	}

	if !res.Success {
		logger.Log.Warn("Notification send failed",
			zap.String("kind", kind),
			zap.Uint("order_id", orderID),
			zap.String("recipient", to),
			zap.String("error", res.Error),
		)
	}

	d.recordDelivery(ctx, kind, template, orderID, to, data, res)
	return res
}

func (d *NotificationDispatcher) safeSend(ctx context.Context, template, to string, data map[string]string) (res SendResult) {
	defer func() {
		if r := recover(); r != nil {
			res = SendResult{Error: fmt.Sprintf("sender panicked: %v", r)}
		}
	}()
	return d.sender.Send(ctx, template, to, data)
}

func (d *NotificationDispatcher) recordDelivery(ctx context.Context, kind, template string, orderID uint, to string, data map[string]string, res SendResult) {
	payload := make(datatypes.JSONMap, len(data))
	for k, v := range data {
		payload[k] = v
	}

	delivery := models.NotificationDelivery{
		OrderID:   orderID,
		Kind:      kind,
		Template:  template,
		Recipient: to,
		Payload:   payload,
		Success:   res.Success,
		Error:     res.Error,
	}
	if err := d.db.WithContext(ctx).Create(&delivery).Error; err != nil {
		logger.Log.Error("Failed to record notification delivery", zap.Uint("order_id", orderID), zap.String("kind", kind), zap.Error(err))
	}
}

func orderPayload(order *models.Order) map[string]string {
	data := map[string]string{
		"order_id": fmt.Sprintf("%d", order.ID),
		"date":     order.ServiceDate,
		"time":     order.ServiceTime,
		"pincode":  order.Pincode,
		"amount":   order.Amount.StringFixed(2),
		"currency": order.Currency,
		"status":   order.Status,
	}
	if order.Service != nil {
		data["service_name"] = order.Service.Name
	}
	if !order.RemainingAmount.IsZero() {
		data["remaining_amount"] = order.RemainingAmount.StringFixed(2)
	}
	return data
}

func withField(data map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out[key] = value
	return out
}

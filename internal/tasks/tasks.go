package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"krishilink/api/internal/config"
	"krishilink/api/internal/email"
	"krishilink/api/internal/models"
)

// TaskType defines the type of a background task.
const (
	TypeInterestCreated = "interest:created:notify"
	TypeInterestStatus  = "interest:status:notify"
)

// Email kinds, also used as the mock email key suffix.
const (
	KindInterestCreated = "interest_created"
	KindInterestStatus  = "interest_status"
)

const notificationQueue = "default"

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// Enqueuer is the part of *asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// InterestEmailPayload is everything a notification email needs, so the
// worker never has to read the crop back.
type InterestEmailPayload struct {
	CropID     string `json:"crop_id"`
	CropName   string `json:"crop_name"`
	Unit       string `json:"unit"`
	InterestID string `json:"interest_id"`
	BuyerEmail string `json:"buyer_email"`
	BuyerName  string `json:"buyer_name"`
	OwnerEmail string `json:"owner_email"`
	OwnerName  string `json:"owner_name"`
	Quantity   int    `json:"quantity"`
	Message    string `json:"message,omitempty"`
	Status     string `json:"status"`
}

func newInterestEmailPayload(crop *models.Crop, interest *models.Interest) InterestEmailPayload {
	return InterestEmailPayload{
		CropID:     crop.ID.Hex(),
		CropName:   crop.Name,
		Unit:       string(crop.Unit),
		InterestID: interest.ID.Hex(),
		BuyerEmail: interest.UserEmail,
		BuyerName:  interest.UserName,
		OwnerEmail: crop.Owner.OwnerEmail,
		OwnerName:  crop.Owner.OwnerName,
		Quantity:   interest.Quantity,
		Message:    interest.Message,
		Status:     string(interest.Status),
	}
}

// Notifier queues interest emails. It satisfies services.InterestNotifier.
type Notifier struct {
	client Enqueuer
}

func NewNotifier(client Enqueuer) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) enqueue(ctx context.Context, taskType string, payload InterestEmailPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", taskType, err)
	}
	_, err = n.client.EnqueueContext(ctx, asynq.NewTask(taskType, data),
		asynq.Queue(notificationQueue),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	return nil
}

// InterestCreated queues the email telling the owner about a new interest.
func (n *Notifier) InterestCreated(ctx context.Context, crop *models.Crop, interest *models.Interest) error {
	return n.enqueue(ctx, TypeInterestCreated, newInterestEmailPayload(crop, interest))
}

// InterestStatusChanged queues the email telling the buyer the owner's decision.
func (n *Notifier) InterestStatusChanged(ctx context.Context, crop *models.Crop, interest *models.Interest) error {
	return n.enqueue(ctx, TypeInterestStatus, newInterestEmailPayload(crop, interest))
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	logger      *zap.Logger
	now         func() time.Time
}

func NewTaskProcessor(cfg *config.Config, emailSender email.Sender, logger *zap.Logger) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		logger:      logger,
		now:         time.Now,
	}
}

// SetupServer configures the Asynq server and its handlers. The caller runs
// the returned server with the returned mux.
func SetupServer(rdb *redis.Client, processor *TaskProcessor, logger *zap.Logger) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical":        6,
				notificationQueue: 3,
				"low":             1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err))
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInterestCreated, processor.HandleInterestCreatedTask)
	mux.HandleFunc(TypeInterestStatus, processor.HandleInterestStatusTask)
	logger.Info("Registered background task handlers",
		zap.Strings("types", []string{TypeInterestCreated, TypeInterestStatus}))

	return srv, mux
}

// --- Task Handlers ---

func decodeInterestPayload(t *asynq.Task) (InterestEmailPayload, error) {
	var payload InterestEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return payload, nil
}

func (p *TaskProcessor) fromAddress() string {
	if p.cfg.SmtpFromAddress == "" {
		return "noreply@example.com"
	}
	return p.cfg.SmtpFromAddress
}

func (p *TaskProcessor) send(ctx context.Context, msg email.Message) error {
	msg.From = p.fromAddress()
	if err := p.emailSender.Send(ctx, []string{msg.To}, msg.Subject, msg.Bytes(p.now())); err != nil {
		p.logger.Warn("Email sending failed, will retry", zap.String("to", msg.To), zap.String("kind", msg.Kind), zap.Error(err))
		return err
	}
	p.logger.Info("Notification email sent", zap.String("to", msg.To), zap.String("kind", msg.Kind))
	return nil
}

// HandleInterestCreatedTask emails the crop owner about a new interest.
func (p *TaskProcessor) HandleInterestCreatedTask(ctx context.Context, t *asynq.Task) error {
	payload, err := decodeInterestPayload(t)
	if err != nil {
		return err
	}
	if payload.OwnerEmail == "" {
		return fmt.Errorf("interest %s has no owner email: %w", payload.InterestID, asynq.SkipRetry)
	}

	buyer := payload.BuyerName
	if buyer == "" {
		buyer = payload.BuyerEmail
	}
	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\r\n\r\n", nonEmpty(payload.OwnerName, payload.OwnerEmail))
	fmt.Fprintf(&body, "%s (%s) is interested in %d %s of your crop \"%s\".\r\n",
		buyer, payload.BuyerEmail, payload.Quantity, payload.Unit, payload.CropName)
	if payload.Message != "" {
		fmt.Fprintf(&body, "\r\nTheir message:\r\n%s\r\n", payload.Message)
	}
	fmt.Fprintf(&body, "\r\nOpen %s to accept or reject the request.\r\n", p.appName())

	return p.send(ctx, email.Message{
		To:      payload.OwnerEmail,
		Subject: fmt.Sprintf("New interest in %s", payload.CropName),
		Kind:    KindInterestCreated,
		Body:    body.String(),
	})
}

// HandleInterestStatusTask emails the buyer the owner's decision.
func (p *TaskProcessor) HandleInterestStatusTask(ctx context.Context, t *asynq.Task) error {
	payload, err := decodeInterestPayload(t)
	if err != nil {
		return err
	}
	status, ok := models.ParseInterestStatus(payload.Status)
	if !ok || !status.IsFinal() {
		return fmt.Errorf("interest %s has non-final status %q: %w", payload.InterestID, payload.Status, asynq.SkipRetry)
	}
	if payload.BuyerEmail == "" {
		return fmt.Errorf("interest %s has no buyer email: %w", payload.InterestID, asynq.SkipRetry)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Hello %s,\r\n\r\n", nonEmpty(payload.BuyerName, payload.BuyerEmail))
	fmt.Fprintf(&body, "Your request for %d %s of \"%s\" was %s by %s.\r\n",
		payload.Quantity, payload.Unit, payload.CropName, status, nonEmpty(payload.OwnerName, payload.OwnerEmail))
	if status == models.InterestAccepted {
		fmt.Fprintf(&body, "\r\nContact the seller at %s to arrange delivery.\r\n", payload.OwnerEmail)
	}

	return p.send(ctx, email.Message{
		To:      payload.BuyerEmail,
		Subject: fmt.Sprintf("Your interest in %s was %s", payload.CropName, status),
		Kind:    KindInterestStatus,
		Body:    body.String(),
	})
}

func (p *TaskProcessor) appName() string {
	if p.cfg.AppName == "" {
		return "KrishiLink"
	}
	return p.cfg.AppName
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

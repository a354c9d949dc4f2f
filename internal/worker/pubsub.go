package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types accepted on the trigger subscription.
const (
	JobTypeIndexRefresh = "index_refresh"
	JobTypeHealthCheck  = "health_check"
)

// ErrUnknownJobType is returned for messages with an unrecognized job_type.
var ErrUnknownJobType = errors.New("unknown job type")

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	RefreshJob       *RefreshJob
	Logger           zerolog.Logger
}

// TriggerMessage is the payload of a worker trigger.
type TriggerMessage struct {
	JobType string `json:"job_type"`
}

// Dispatcher runs the job named by a trigger message.
type Dispatcher struct {
	refreshJob *RefreshJob
	logger     zerolog.Logger
}

// NewDispatcher creates a dispatcher backed by job.
func NewDispatcher(job *RefreshJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{refreshJob: job, logger: logger}
}

// Dispatch decodes data and runs the matching job. Malformed payloads and
// unknown job types return an error wrapping ErrUnknownJobType or the decode error.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	var msg TriggerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decoding trigger: %w", err)
	}

	switch msg.JobType {
	case JobTypeIndexRefresh:
		return d.refreshJob.Run(ctx).Err()
	case JobTypeHealthCheck:
		d.logger.Debug().Msg("running health check")
		return d.refreshJob.HealthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJobType, msg.JobType)
	}
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	// A refresh touches every corridor, so keep few in flight.
	subscriber.ReceiveSettings.MaxOutstandingMessages = 2
	subscriber.ReceiveSettings.MaxExtension = 5 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.RefreshJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages. It blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		h.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

func (h *PubSubHandler) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	err := h.dispatcher.Dispatch(ctx, msg.Data)
	switch {
	case err == nil:
		logger.Info().Dur("duration", time.Since(startTime)).Msg("job completed successfully")
		msg.Ack()
	case errors.Is(err, ErrUnknownJobType), isDecodeError(err):
		// Redelivery cannot fix a bad payload.
		logger.Warn().Err(err).Msg("dropping unprocessable message")
		msg.Ack()
	default:
		logger.Error().Err(err).Dur("duration", time.Since(startTime)).Msg("job failed")
		msg.Nack()
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/heyysiri/EcoTrail/internal/routing"
)

// Job types understood by the handler.
const (
	JobRouteWarmup = "route_warmup"
	JobHealthCheck = "health_check"
)

var (
	// ErrMalformedMessage is returned for payloads that are not a job message.
	ErrMalformedMessage = errors.New("malformed job message")

	// ErrUnknownJob is returned for job types this worker does not handle.
	ErrUnknownJob = errors.New("unknown job type")
)

// healthCheckPair is a short pair used to verify provider connectivity.
var healthCheckPair = WarmupPair{
	Name:        "health-check",
	Origin:      "MG Road, Bengaluru",
	Destination: "Indiranagar, Bengaluru",
}

// JobMessage is a worker job published to Pub/Sub.
type JobMessage struct {
	JobType string `json:"job_type"`

	// Pairs overrides the configured warmup pairs (route_warmup only).
	Pairs []WarmupPair `json:"pairs,omitempty"`
}

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
	WarmupJob        *WarmupJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)

	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.WarmupJob, cfg.Logger),
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
	logger := h.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received pubsub message")

	if ShouldAck(h.dispatcher.Dispatch(ctx, msg.Data)) {
		msg.Ack()
		return
	}
	msg.Nack()
}

// ShouldAck maps a Dispatch result to the ack decision.
// Unknown jobs are acked so they are not redelivered forever.
func ShouldAck(err error) bool {
	return err == nil || errors.Is(err, ErrUnknownJob)
}

// Dispatcher decodes job messages and runs them.
type Dispatcher struct {
	warmup *WarmupJob
	logger zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(warmup *WarmupJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{warmup: warmup, logger: logger}
}

// Dispatch runs the job encoded in data.
func (d *Dispatcher) Dispatch(ctx context.Context, data []byte) error {
	startTime := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		d.logger.Error().Err(err).Msg("failed to parse message")
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var err error
	switch msg.JobType {
	case JobRouteWarmup:
		err = d.handleWarmup(ctx, msg)
	case JobHealthCheck:
		err = d.handleHealthCheck(ctx)
	default:
		d.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}

	if err != nil {
		d.logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return err
	}

	d.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return nil
}

func (d *Dispatcher) handleWarmup(ctx context.Context, msg JobMessage) error {
	var result *WarmupResult
	if len(msg.Pairs) > 0 {
		result = d.warmup.RunPairs(ctx, msg.Pairs)
	} else {
		result = d.warmup.Run(ctx)
	}

	// Consider it successful if at least half succeeded.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many warmup failures: %d/%d", result.Failed, result.TotalPairs)
	}
	return nil
}

func (d *Dispatcher) handleHealthCheck(ctx context.Context) error {
	d.logger.Debug().Msg("running health check")

	agg := d.warmup.aggregator.Aggregate(ctx,
		routing.Location(healthCheckPair.Origin),
		routing.Location(healthCheckPair.Destination),
		[]routing.Mode{routing.ModeDriving},
	)

	for _, o := range agg.Outcomes {
		if !o.OK() && !routing.IsNotFound(o.Err) {
			return fmt.Errorf("health check failed: %w", o.Err)
		}
	}

	d.logger.Debug().Msg("health check passed")
	return nil
}

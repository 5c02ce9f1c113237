package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"eks-upgrade-agent/internal/models"
)

// CloudWatchLogsAPI is the slice of the CloudWatch Logs client used by the
// handler. The concrete *cloudwatchlogs.Client satisfies it.
type CloudWatchLogsAPI interface {
	CreateLogGroup(ctx context.Context, params *cloudwatchlogs.CreateLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
}

// CloudWatchHandler ships rendered log lines to a CloudWatch Logs stream.
//
// Construction probes the remote side: the log group and stream are created
// if absent ("already exists" counts as success). Any credential or service
// failure during the probe disables the handler for its lifetime: a
// diagnostic goes to the fallback writer and every later emit is a no-op.
// A failed emit on an enabled handler never propagates to the logging
// caller; the failure and the raw line go to the fallback writer and the
// handler stays enabled.
//
// CloudWatch requires the sequence token from the previous call for strict
// per-stream ordering; a mutex serializes the token read-modify-write so
// concurrent emits stay ordered.
type CloudWatchHandler struct {
	client   CloudWatchLogsAPI
	group    string
	stream   string
	fallback io.Writer

	mu            sync.Mutex
	sequenceToken *string
	enabled       bool
}

// CloudWatchOption customizes handler construction.
type CloudWatchOption func(*CloudWatchHandler)

// WithFallback redirects diagnostic output away from stderr. The writer is
// installed before the construction probe runs, so probe failures land in
// it too.
func WithFallback(w io.Writer) CloudWatchOption {
	return func(h *CloudWatchHandler) { h.fallback = w }
}

// NewCloudWatchHandler builds a handler against the real AWS client in the
// given region. It never returns an error: on any setup failure the handler
// comes back disabled so local logging keeps working.
func NewCloudWatchHandler(ctx context.Context, group, stream, region string, opts ...CloudWatchOption) *CloudWatchHandler {
	h := newHandler(nil, group, stream, opts)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		h.disable(err)
		return h
	}
	h.client = cloudwatchlogs.NewFromConfig(awsCfg)
	h.probe(ctx)
	return h
}

// NewCloudWatchHandlerWithClient builds a handler over an existing client.
func NewCloudWatchHandlerWithClient(ctx context.Context, client CloudWatchLogsAPI, group, stream string, opts ...CloudWatchOption) *CloudWatchHandler {
	h := newHandler(client, group, stream, opts)
	h.probe(ctx)
	return h
}

func newHandler(client CloudWatchLogsAPI, group, stream string, opts []CloudWatchOption) *CloudWatchHandler {
	h := &CloudWatchHandler{
		client:   client,
		group:    group,
		stream:   stream,
		fallback: os.Stderr,
	}
	if h.stream == "" {
		h.stream = defaultStreamName()
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Enabled reports whether the handler passed its construction probe.
func (h *CloudWatchHandler) Enabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enabled
}

// Group returns the log group name.
func (h *CloudWatchHandler) Group() string { return h.group }

// Stream returns the log stream name.
func (h *CloudWatchHandler) Stream() string { return h.stream }

// probe ensures the group and stream exist. Failure disables the handler
// permanently; there is no retry loop, favoring availability of local
// logging over completeness of remote logging.
func (h *CloudWatchHandler) probe(ctx context.Context) {
	if err := h.ensureGroup(ctx); err != nil {
		h.disable(err)
		return
	}
	if err := h.ensureStream(ctx); err != nil {
		h.disable(err)
		return
	}
	h.mu.Lock()
	h.enabled = true
	h.mu.Unlock()
}

func (h *CloudWatchHandler) disable(err error) {
	fmt.Fprintf(h.fallback, "CloudWatch logging unavailable: %v\n", err)
	h.mu.Lock()
	h.enabled = false
	h.mu.Unlock()
}

func (h *CloudWatchHandler) ensureGroup(ctx context.Context) error {
	_, err := h.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(h.group),
	})
	return ignoreAlreadyExists(err)
}

func (h *CloudWatchHandler) ensureStream(ctx context.Context) error {
	_, err := h.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(h.group),
		LogStreamName: aws.String(h.stream),
	})
	return ignoreAlreadyExists(err)
}

func ignoreAlreadyExists(err error) error {
	var exists *types.ResourceAlreadyExistsException
	if errors.As(err, &exists) {
		return nil
	}
	return err
}

// Write implements zapcore.WriteSyncer so the handler attaches to the
// logging pipeline as an ordinary sink. Each line becomes one remote event
// stamped with the current time in epoch millis. Write never reports an
// error: remote failures go to the fallback writer along with the raw line.
func (h *CloudWatchHandler) Write(p []byte) (int, error) {
	if !h.Enabled() {
		return len(p), nil
	}

	msg := strings.TrimRight(string(p), "\n")
	event := models.NewLogEvent(time.Now().UTC(), msg)
	if err := h.PutBatch(context.Background(), []models.LogEvent{event}); err != nil {
		fmt.Fprintf(h.fallback, "CloudWatch logging failed: %v\n", err)
		fmt.Fprintf(h.fallback, "Log message: %s\n", msg)
	}
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer. Events are submitted synchronously,
// so there is nothing to flush.
func (h *CloudWatchHandler) Sync() error {
	return nil
}

// PutBatch submits a batch of events in one call, threading the sequence
// token. Unlike Write, it reports the error so programmatic callers (the
// file forwarder) can count failures. Disabled handlers drop silently.
func (h *CloudWatchHandler) PutBatch(ctx context.Context, events []models.LogEvent) error {
	if len(events) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.enabled {
		return nil
	}

	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(h.group),
		LogStreamName: aws.String(h.stream),
		LogEvents:     toInputEvents(events),
		SequenceToken: h.sequenceToken,
	}
	out, err := h.client.PutLogEvents(ctx, input)
	if err != nil {
		return err
	}
	h.sequenceToken = out.NextSequenceToken
	return nil
}

func toInputEvents(events []models.LogEvent) []types.InputLogEvent {
	in := make([]types.InputLogEvent, 0, len(events))
	for _, e := range events {
		in = append(in, types.InputLogEvent{
			Timestamp: aws.Int64(e.Timestamp),
			Message:   aws.String(e.Message),
		})
	}
	return in
}

// defaultStreamName builds a unique stream name from the hostname and the
// current UTC time, matching one stream per agent run.
func defaultStreamName() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s_%s", hostname, time.Now().UTC().Format("20060102_150405"))
}

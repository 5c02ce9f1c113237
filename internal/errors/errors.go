// Package errors provides structured error types for the EKS upgrade agent.
//
// Every failure in the agent is represented by a single AgentError value
// carrying a kind discriminant, a machine-readable code, a context map, and
// an optional cause. Kind-specific constructors project their details into
// fixed context keys so the logging layer can serialize any error uniformly
// without knowing which phase produced it.
//
// Error kinds map to the agent's phases:
//   - PerceptionError: data collection (AWS/Kubernetes API reads, scans)
//   - PlanningError: upgrade plan generation and strategy selection
//   - ExecutionError: infrastructure changes and CLI command runs
//   - ValidationError: post-upgrade health checks and metrics analysis
//   - ConfigurationError: config loading and validation
//   - AWSServiceError: AWS service call failures
//   - RollbackError: rollback failures (never recoverable)
package errors

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/aws/smithy-go"
)

// Kind identifies the concrete error kind. It doubles as the default
// error code when no explicit code is supplied.
type Kind string

// Error kinds.
const (
	KindAgent         Kind = "AgentError"
	KindPerception    Kind = "PerceptionError"
	KindPlanning      Kind = "PlanningError"
	KindExecution     Kind = "ExecutionError"
	KindValidation    Kind = "ValidationError"
	KindConfiguration Kind = "ConfigurationError"
	KindAWSService    Kind = "AWSServiceError"
	KindRollback      Kind = "RollbackError"
)

// outputLimit caps stdout/stderr captured into execution error context.
const outputLimit = 1000

// AgentError is the structured error type used across the agent.
//
// All fields are set at construction. Context is the only mutable part:
// AddContext merges additional keys in after the fact and is safe to chain.
type AgentError struct {
	Kind        Kind
	Code        string
	Message     string
	Context     map[string]any
	Cause       error
	Recoverable bool
	Timestamp   time.Time
	StackTrace  string
}

// Option customizes an AgentError at construction time.
type Option func(*AgentError)

// WithCode overrides the default error code (the kind name).
func WithCode(code string) Option {
	return func(e *AgentError) { e.Code = code }
}

// WithCause attaches the causing error. The cause is borrowed, not owned:
// it is serialized shallowly and never recursed into.
func WithCause(cause error) Option {
	return func(e *AgentError) { e.Cause = cause }
}

// WithContext merges the given keys into the error's context map.
func WithContext(ctx map[string]any) Option {
	return func(e *AgentError) {
		for k, v := range ctx {
			e.Context[k] = v
		}
	}
}

// WithRecoverable marks the error as recoverable. RollbackError ignores it.
func WithRecoverable(recoverable bool) Option {
	return func(e *AgentError) { e.Recoverable = recoverable }
}

// New creates a base AgentError.
func New(message string, opts ...Option) *AgentError {
	return newError(KindAgent, message).apply(opts...)
}

// newError builds the common skeleton: code defaulted to the kind name,
// non-nil context, UTC timestamp, and the construction-site stack.
func newError(kind Kind, message string) *AgentError {
	return &AgentError{
		Kind:       kind,
		Code:       string(kind),
		Message:    message,
		Context:    make(map[string]any),
		Timestamp:  time.Now().UTC(),
		StackTrace: string(debug.Stack()),
	}
}

// apply runs options after kind-specific projection so that an explicit
// WithCause or WithCode wins over derived values.
func (e *AgentError) apply(opts ...Option) *AgentError {
	for _, opt := range opts {
		opt(e)
	}
	if e.Code == "" {
		e.Code = string(e.Kind)
	}
	return e
}

// Error implements the error interface: "[code] message" with the context
// appended in deterministic key order when non-empty.
func (e *AgentError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s (Context: %s)", e.Code, e.Message, renderContext(e.Context))
}

// Unwrap returns the cause for errors.Is/As support.
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// AddContext merges a single key into the context and returns the same
// error to allow chained enrichment while it propagates upward.
func (e *AgentError) AddContext(key string, value any) *AgentError {
	e.Context[key] = value
	return e
}

// ToMap converts the error to a flat, JSON-serializable map for structured
// logging. The cause is stringified rather than recursed into, so the output
// terminates regardless of cause-chain depth or cycles.
func (e *AgentError) ToMap() map[string]any {
	m := map[string]any{
		"error_type":  string(e.Kind),
		"error_code":  e.Code,
		"message":     e.Message,
		"context":     e.Context,
		"recoverable": e.Recoverable,
		"timestamp":   e.Timestamp.Format(time.RFC3339Nano),
		"stack_trace": e.StackTrace,
		"cause":       nil,
		"cause_type":  nil,
	}
	if e.Cause != nil {
		m["cause"] = e.Cause.Error()
		m["cause_type"] = typeName(e.Cause)
	}
	return m
}

// renderContext formats a context map as "{k1=v1, k2=v2}" with sorted keys.
func renderContext(ctx map[string]any) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ctx[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// typeName reports the kind name for agent errors and the Go type for
// everything else.
func typeName(err error) string {
	if ae, ok := err.(*AgentError); ok {
		return string(ae.Kind)
	}
	return fmt.Sprintf("%T", err)
}

// truncate caps s at n characters. Empty input stays empty.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// PerceptionDetail holds the optional fields of a PerceptionError.
type PerceptionDetail struct {
	// Source is the data source that failed (e.g. "aws_api", "k8s_api").
	Source string
	// APIError is the underlying API failure; it becomes the cause unless
	// an explicit WithCause option is given.
	APIError error
}

// NewPerceptionError creates an error for data collection failures.
func NewPerceptionError(message string, d PerceptionDetail, opts ...Option) *AgentError {
	e := newError(KindPerception, message)
	if d.Source != "" {
		e.Context["source"] = d.Source
	}
	if d.APIError != nil {
		e.Context["api_error_type"] = typeName(d.APIError)
		e.Context["api_error_message"] = d.APIError.Error()
		e.Cause = d.APIError
	}
	return e.apply(opts...)
}

// PlanningDetail holds the optional fields of a PlanningError.
type PlanningDetail struct {
	// Phase is the planning phase that failed (e.g. "strategy_selection").
	Phase string
	// InvalidConfig is the configuration that caused the failure.
	InvalidConfig map[string]any
}

// NewPlanningError creates an error for upgrade planning failures.
func NewPlanningError(message string, d PlanningDetail, opts ...Option) *AgentError {
	e := newError(KindPlanning, message)
	if d.Phase != "" {
		e.Context["planning_phase"] = d.Phase
	}
	if len(d.InvalidConfig) > 0 {
		e.Context["invalid_config"] = d.InvalidConfig
	}
	return e.apply(opts...)
}

// ExecutionDetail holds the optional fields of an ExecutionError.
type ExecutionDetail struct {
	// Step is the execution step that failed (e.g. "provision_cluster").
	Step string
	// Command is the command that failed.
	Command string
	// ExitCode is the command exit code, if the command ran at all.
	ExitCode *int
	// Stdout and Stderr are captured command output, truncated to 1000
	// characters each to bound record size.
	Stdout string
	Stderr string
}

// NewExecutionError creates an error for execution step failures.
func NewExecutionError(message string, d ExecutionDetail, opts ...Option) *AgentError {
	e := newError(KindExecution, message)
	if d.Step != "" {
		e.Context["execution_step"] = d.Step
	}
	if d.Command != "" {
		e.Context["command"] = d.Command
	}
	if d.ExitCode != nil {
		e.Context["exit_code"] = *d.ExitCode
	}
	if d.Stdout != "" {
		e.Context["stdout"] = truncate(d.Stdout, outputLimit)
	}
	if d.Stderr != "" {
		e.Context["stderr"] = truncate(d.Stderr, outputLimit)
	}
	return e.apply(opts...)
}

// ValidationDetail holds the optional fields of a ValidationError.
type ValidationDetail struct {
	// Type is the validation that failed (e.g. "health_check", "metrics").
	Type string
	// FailedChecks lists the specific checks that failed.
	FailedChecks []string
	// Metrics holds relevant metric values at the time of failure.
	Metrics map[string]float64
	// ThresholdViolations maps metric names to violated thresholds.
	ThresholdViolations map[string]any
}

// NewValidationError creates an error for validation phase failures.
func NewValidationError(message string, d ValidationDetail, opts ...Option) *AgentError {
	e := newError(KindValidation, message)
	if d.Type != "" {
		e.Context["validation_type"] = d.Type
	}
	if len(d.FailedChecks) > 0 {
		e.Context["failed_checks"] = d.FailedChecks
	}
	if len(d.Metrics) > 0 {
		e.Context["metrics"] = d.Metrics
	}
	if len(d.ThresholdViolations) > 0 {
		e.Context["threshold_violations"] = d.ThresholdViolations
	}
	return e.apply(opts...)
}

// ConfigurationDetail holds the optional fields of a ConfigurationError.
type ConfigurationDetail struct {
	// File is the configuration file that caused the error.
	File string
	// MissingKeys lists required keys that were absent.
	MissingKeys []string
	// InvalidValues maps keys to their rejected values.
	InvalidValues map[string]any
}

// NewConfigurationError creates an error for configuration failures.
func NewConfigurationError(message string, d ConfigurationDetail, opts ...Option) *AgentError {
	e := newError(KindConfiguration, message)
	if d.File != "" {
		e.Context["config_file"] = d.File
	}
	if len(d.MissingKeys) > 0 {
		e.Context["missing_keys"] = d.MissingKeys
	}
	if len(d.InvalidValues) > 0 {
		e.Context["invalid_values"] = d.InvalidValues
	}
	return e.apply(opts...)
}

// AWSServiceDetail holds the optional fields of an AWSServiceError.
type AWSServiceDetail struct {
	Service         string
	Operation       string
	AWSErrorCode    string
	AWSErrorMessage string
}

// NewAWSServiceError creates an error for AWS service call failures.
func NewAWSServiceError(message string, d AWSServiceDetail, opts ...Option) *AgentError {
	e := newError(KindAWSService, message)
	if d.Service != "" {
		e.Context["service_name"] = d.Service
	}
	if d.Operation != "" {
		e.Context["operation"] = d.Operation
	}
	if d.AWSErrorCode != "" {
		e.Context["aws_error_code"] = d.AWSErrorCode
	}
	if d.AWSErrorMessage != "" {
		e.Context["aws_error_message"] = d.AWSErrorMessage
	}
	return e.apply(opts...)
}

// FromAWSError wraps an AWS SDK error as an AWSServiceError, extracting the
// service error code and message when the error carries them.
func FromAWSError(service, operation string, err error) *AgentError {
	d := AWSServiceDetail{Service: service, Operation: operation}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		d.AWSErrorCode = apiErr.ErrorCode()
		d.AWSErrorMessage = apiErr.ErrorMessage()
	}
	return NewAWSServiceError(
		fmt.Sprintf("AWS %s %s failed", service, operation),
		d,
		WithCause(err),
	)
}

// RollbackDetail holds the optional fields of a RollbackError.
type RollbackDetail struct {
	// Step is the rollback step that failed.
	Step string
	// OriginalError is the error that triggered the rollback; it becomes
	// the cause unless an explicit WithCause option is given.
	OriginalError error
}

// NewRollbackError creates an error for rollback failures. Both the upgrade
// and its rollback have failed at this point, so the error is forced
// non-recoverable regardless of options: it requires manual intervention.
func NewRollbackError(message string, d RollbackDetail, opts ...Option) *AgentError {
	e := newError(KindRollback, message)
	if d.Step != "" {
		e.Context["rollback_step"] = d.Step
	}
	if d.OriginalError != nil {
		e.Context["original_error_type"] = typeName(d.OriginalError)
		e.Context["original_error_message"] = d.OriginalError.Error()
		e.Cause = d.OriginalError
	}
	e.apply(opts...)
	e.Recoverable = false
	return e
}

// Int returns a pointer to v, for optional detail fields like ExitCode.
func Int(v int) *int {
	return &v
}

// IsRecoverable reports whether err is an AgentError marked recoverable.
func IsRecoverable(err error) bool {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Recoverable
	}
	return false
}

// Code extracts the error code from an error, or "" for foreign errors.
func Code(err error) string {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// KindOf extracts the kind from an error.
func KindOf(err error) (Kind, bool) {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

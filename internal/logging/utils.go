package logging

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	agenterrors "eks-upgrade-agent/internal/errors"
)

// LogException logs an error with full structure. Agent errors are attached
// as their complete serialized form under exception_data; foreign errors go
// through zap's error field, which the pipeline projects into a minimal
// exception structure. Extra fields are always merged into the record.
func LogException(logger *zap.Logger, err error, message string, fields ...zap.Field) {
	if message == "" {
		message = "An error occurred"
	}
	if err == nil {
		logger.Error(message, fields...)
		return
	}

	var ae *agenterrors.AgentError
	if errors.As(err, &ae) {
		logger.Error(message, append(fields, zap.Any("exception_data", ae.ToMap()))...)
		return
	}
	logger.Error(message, append(fields, zap.Error(err))...)
}

// LogUpgradeStep logs upgrade step progress with a consistent shape.
// A "fail" status routes to the error level, everything else to info.
func LogUpgradeStep(logger *zap.Logger, stepName, stepID, status string, fields ...zap.Field) {
	message := fmt.Sprintf("Upgrade step %s", status)
	all := append([]zap.Field{
		zap.String("step_name", stepName),
		zap.String("step_id", stepID),
		zap.String("status", status),
	}, fields...)

	if status == "fail" {
		logger.Error(message, all...)
		return
	}
	logger.Info(message, all...)
}

// LogAWSAPICall logs an AWS API call outcome with a consistent shape:
// info level with "AWS API call succeeded" on success, error level with
// "AWS API call failed" otherwise.
func LogAWSAPICall(logger *zap.Logger, service, operation string, success bool, durationMS float64, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.String("aws_service", service),
		zap.String("aws_operation", operation),
		zap.Bool("success", success),
		zap.Float64("duration_ms", durationMS),
	}, fields...)

	if success {
		logger.Info("AWS API call succeeded", all...)
		return
	}
	logger.Error("AWS API call failed", all...)
}

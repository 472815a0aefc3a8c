// Package observability records operational metrics for the reservation
// flow: per-operation success counters and lock contention.
package observability

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

const metricNamespace = "Carpool/Backend"

// CloudWatchAPI is the subset of the CloudWatch client the recorder uses.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsRecorder emits counters to CloudWatch. Emission is best effort;
// failures are logged and never surfaced to the caller.
type MetricsRecorder struct {
	client      CloudWatchAPI
	environment string
	logger      *zap.Logger
}

// NewMetricsRecorder creates a new MetricsRecorder.
func NewMetricsRecorder(client CloudWatchAPI, environment string, logger *zap.Logger) *MetricsRecorder {
	return &MetricsRecorder{
		client:      client,
		environment: environment,
		logger:      logger,
	}
}

// CountOperation counts one lifecycle operation, split by outcome.
func (m *MetricsRecorder) CountOperation(ctx context.Context, operation string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("OperationCount"),
		Unit:       types.StandardUnitCount,
		Value:      aws.Float64(1),
		Dimensions: []types.Dimension{
			{Name: aws.String("Operation"), Value: aws.String(operation)},
			{Name: aws.String("Outcome"), Value: aws.String(outcome)},
			{Name: aws.String("Environment"), Value: aws.String(m.environment)},
		},
	})
}

// CountLockContention records how many acquire attempts a lock dispatch
// needed before it succeeded.
func (m *MetricsRecorder) CountLockContention(ctx context.Context, attempts int) {
	m.put(ctx, types.MetricDatum{
		MetricName: aws.String("LockAcquireAttempts"),
		Unit:       types.StandardUnitCount,
		Value:      aws.Float64(float64(attempts)),
		Dimensions: []types.Dimension{
			{Name: aws.String("Environment"), Value: aws.String(m.environment)},
		},
	})
}

func (m *MetricsRecorder) put(ctx context.Context, datum types.MetricDatum) {
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(metricNamespace),
		MetricData: []types.MetricDatum{datum},
	})
	if err != nil {
		m.logger.Warn("failed to put metric data",
			zap.String("metric", aws.ToString(datum.MetricName)),
			zap.Error(err),
		)
	}
}

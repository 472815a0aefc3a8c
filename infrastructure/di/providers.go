package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"carpool-backend/application/ports"
	"carpool-backend/application/services"
	"carpool-backend/infrastructure/config"
	"carpool-backend/infrastructure/messaging/eventbridge"
	"carpool-backend/infrastructure/observability"
	"carpool-backend/infrastructure/persistence/dynamodb"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideUserRepository creates the user repository
func ProvideUserRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.UserRepository {
	return dynamodb.NewUserRepository(client, cfg.DynamoDBTable, logger)
}

// ProvideCarpoolRepository creates the carpool repository
func ProvideCarpoolRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.CarpoolRepository {
	return dynamodb.NewCarpoolRepository(
		client,
		cfg.DynamoDBTable,
		cfg.MembershipIndexName,
		cfg.StatusIndexName,
		logger,
	)
}

// ProvideTableLock creates the table lock
func ProvideTableLock(client *awsdynamodb.Client, cfg *config.Config, metrics ports.MetricsRecorder, logger *zap.Logger) ports.TableLock {
	lock := dynamodb.NewTableLock(
		client,
		cfg.DynamoDBTable,
		cfg.LockRetryInterval,
		cfg.LockMaxAttempts,
		logger,
	)
	lock.SetMetrics(metrics)
	return lock
}

// ProvideEventPublisher creates the lifecycle event publisher. Publishing is
// disabled unless the bus is configured.
func ProvideEventPublisher(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEvents {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideMetricsRecorder creates the metrics recorder. Disabled unless
// metrics are enabled.
func ProvideMetricsRecorder(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) ports.MetricsRecorder {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewMetricsRecorder(client, cfg.Environment, logger)
}

// ProvideUserService creates the user service
func ProvideUserService(users ports.UserRepository, logger *zap.Logger) *services.UserService {
	return services.NewUserService(users, logger)
}

// ProvideCarpoolService creates the carpool service
func ProvideCarpoolService(
	carpools ports.CarpoolRepository,
	users ports.UserRepository,
	lock ports.TableLock,
	events ports.EventPublisher,
	metrics ports.MetricsRecorder,
	cfg *config.Config,
	logger *zap.Logger,
) *services.CarpoolService {
	return services.NewCarpoolService(
		carpools,
		users,
		lock,
		events,
		metrics,
		cfg.PollInterval,
		cfg.PollMaxAttempts,
		logger,
	)
}

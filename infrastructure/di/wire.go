//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"carpool-backend/application/ports"
	"carpool-backend/application/services"
	"carpool-backend/infrastructure/config"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	Logger         *zap.Logger
	UserRepo       ports.UserRepository
	CarpoolRepo    ports.CarpoolRepository
	Lock           ports.TableLock
	Publisher      ports.EventPublisher
	Metrics        ports.MetricsRecorder
	UserService    *services.UserService
	CarpoolService *services.CarpoolService
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideUserRepository,
	ProvideCarpoolRepository,
	ProvideTableLock,
	ProvideEventPublisher,
	ProvideMetricsRecorder,
	ProvideUserService,
	ProvideCarpoolService,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}

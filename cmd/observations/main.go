package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/bbernstein/baroalt/backend-go/internal/config"
	"github.com/bbernstein/baroalt/backend-go/internal/handler"
	"github.com/bbernstein/baroalt/backend-go/internal/observation"
	"github.com/rs/zerolog/log"
)

var (
	observationsHandler *handler.ObservationsHandler
	setupOnce           sync.Once
	serviceFactory      observation.ServiceFactory = &observation.DefaultServiceFactory{}
	lambdaStart                                    = lambda.Start
)

func InitializeService() error {
	var initError error
	setupOnce.Do(func() {
		cfg := config.LoadFromEnv()
		cfg.InitializeLogging()

		log.Debug().Msg("Initializing observations service...")
		svc, err := serviceFactory.NewService(context.Background(), cfg, config.GetCacheConfig())
		if err != nil {
			initError = fmt.Errorf("failed to initialize service: %w", err)
			log.Error().Err(err).Msg("Failed to initialize service")
			return
		}
		observationsHandler = handler.NewObservationsHandler(svc)
		log.Debug().Msg("Observations service initialized successfully")
	})
	return initError
}

func handleRequest(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log.Info().Msg("Handling observations request")

	if observationsHandler == nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       `{"responseType":"error","error":"Handler not initialized"}`,
		}, fmt.Errorf("handler not initialized")
	}
	return observationsHandler.HandleRequest(ctx, request)
}

func init() {
	if err := InitializeService(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize service")
	}
}

func main() {
	lambdaStart(handleRequest)
}

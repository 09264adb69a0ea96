// The lambda command runs the stats updater as an AWS Lambda function behind
// API Gateway, the deployment that serves production landing pages.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"zoolanding/quickstats/internal/config"
	"zoolanding/quickstats/internal/stats"
	"zoolanding/quickstats/internal/store"
	"zoolanding/quickstats/pkg/statsproto"
)

const defaultBucket = "zoolanding-quick-stats"

type handler struct {
	service *stats.Service
}

func main() {
	cfg, _ := config.LoadConfig("")
	cfg.ApplyEnv()
	zerolog.SetGlobalLevel(cfg.Level())

	bucket := cfg.Store.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}

	// DRY_RUN deployments never construct an S3 client; an in-memory store
	// keeps every request's write local to the invocation.
	var st store.Store
	if cfg.DryRun {
		log.Debug().Msg("DRY_RUN enabled; using in-memory store")
		st = store.NewMemoryStore(bucket)
	} else {
		s3store, err := store.NewS3Store(context.Background(), bucket, cfg.Store.Region)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize S3 store")
		}
		st = s3store
	}

	h := &handler{service: stats.NewService(st, cfg.MaxRetries, cfg.DryRun)}
	lambda.Start(h.handle)
}

func (h *handler) handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestID := "-"
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		requestID = lc.AwsRequestID
	}
	logger := log.With().Str("requestId", requestID).Logger()

	body, err := decodeBody(event)
	if err != nil {
		logger.Error().Err(err).Msg("failed to decode body")
		return badRequest(err.Error()), nil
	}

	var req statsproto.UpdateRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		if errors.Is(err, statsproto.ErrInvalidOps) {
			return badRequest(err.Error()), nil
		}
		logger.Error().Err(err).Msg("body is not valid JSON")
		return badRequest("Body is not valid JSON"), nil
	}

	res, err := h.service.Update(ctx, &req)
	if err != nil {
		if stats.IsClientError(err) {
			return badRequest(err.Error()), nil
		}
		logger.Error().Err(err).Str("appName", req.AppName).Msg("update failed")
		return serverError(), nil
	}

	return jsonResponse(200, &statsproto.UpdateResponse{
		OK:        true,
		Bucket:    res.Bucket,
		Key:       res.Key,
		Stats:     res.Document,
		ETag:      res.ETag,
		VersionID: res.VersionID,
		DryRun:    res.DryRun,
	}), nil
}

// decodeBody extracts the request body, handling API Gateway's base64
// encoding.
func decodeBody(event events.APIGatewayProxyRequest) (string, error) {
	if strings.TrimSpace(event.Body) == "" {
		return "", fmt.Errorf("Missing body")
	}
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			return "", fmt.Errorf("Body is not valid base64")
		}
		return string(decoded), nil
	}
	return event.Body, nil
}

func jsonResponse(status int, payload any) events.APIGatewayProxyResponse {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to encode response")
		return events.APIGatewayProxyResponse{
			StatusCode: 500,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"ok":false,"error":"Internal error"}`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}
}

func badRequest(msg string) events.APIGatewayProxyResponse {
	return jsonResponse(400, statsproto.NewErrorResponse(msg))
}

func serverError() events.APIGatewayProxyResponse {
	return jsonResponse(500, statsproto.NewErrorResponse("Internal error"))
}

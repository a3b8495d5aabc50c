package handler

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"site-assistant/internal/domain"
)

// Handle serves API Gateway proxy events.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := []byte(event.Body)
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(event.Body)
		if err != nil {
			resp := jsonResponse(http.StatusBadRequest, domain.ErrorResponse{Error: msgInvalidBody})
			resp.headers[correlationHeader] = h.correlationID(event.Headers)
			return toProxyResponse(resp), nil
		}
		body = decoded
	}

	resp := h.respond(ctx, request{
		method:  event.HTTPMethod,
		path:    event.Path,
		headers: event.Headers,
		body:    body,
	})
	return toProxyResponse(resp), nil
}

func toProxyResponse(resp response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: resp.status,
		Headers:    resp.headers,
		Body:       resp.body,
	}
}

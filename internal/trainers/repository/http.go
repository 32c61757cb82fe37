package repository

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	trainerserrors "trainerbook/internal/trainers/errors"
	"trainerbook/pkg/client"
	"trainerbook/pkg/model"
)

// httpTrainerDirectory reads trainers from an external directory service that
// answers GET /api/v1/trainers/:id with the {"data": trainer} envelope.
type httpTrainerDirectory struct {
	httpClient *client.HttpClient
	timeout    time.Duration
}

func NewHTTPTrainerDirectory(baseURL string, timeout time.Duration) TrainerDirectory {
	return &httpTrainerDirectory{
		httpClient: client.NewHttpClient(baseURL),
		timeout:    timeout,
	}
}

func (d *httpTrainerDirectory) GetTrainer(ctx context.Context, trainerID string) (*model.Trainer, error) {
	ctx, cancel := withDeadline(ctx, d.timeout)
	defer cancel()

	resp, err := d.httpClient.GET(ctx, "/api/v1/trainers/"+url.PathEscape(trainerID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", trainerserrors.ErrDirectoryUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, trainerserrors.ErrNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", trainerserrors.ErrDirectoryUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("trainer directory returned %d: %s", resp.StatusCode, client.GetErrorMessage(resp))
	}

	var trainer model.Trainer
	if err := resp.DecodeData(&trainer); err != nil {
		return nil, fmt.Errorf("failed to decode trainer: %w", err)
	}
	return &trainer, nil
}

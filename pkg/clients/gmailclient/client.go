package gmailclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jakechorley/volunteer-hours/internal/config"
	"github.com/jakechorley/volunteer-hours/pkg/utils"
)

// messageSender sends a raw Gmail message. The Gmail API implements it; tests swap it out.
type messageSender func(ctx context.Context, userID string, msg *gmail.Message) error

// Client wraps the Gmail API client
type Client struct {
	send         messageSender
	userID       string
	interval     time.Duration
	logger       *zap.Logger
	ctx          context.Context
	lastSendTime time.Time
	sendMutex    sync.Mutex
	sleep        func(time.Duration)
}

// NewClient creates a new Gmail client using an existing OAuth token with the gmail.send scope.
// userID is the Gmail account messages are sent as, usually "me".
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, token *oauth2.Token, userID string, logger *zap.Logger) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	httpClient := oauthConfig.Client(ctx, token)

	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return newClient(ctx, func(ctx context.Context, userID string, msg *gmail.Message) error {
		_, err := service.Users.Messages.Send(userID, msg).Context(ctx).Do()
		return err
	}, userID, logger), nil
}

func newClient(ctx context.Context, send messageSender, userID string, logger *zap.Logger) *Client {
	if userID == "" {
		userID = "me"
	}
	return &Client{
		send:     send,
		userID:   userID,
		interval: EMAIL_INTERVAL,
		logger:   logger,
		ctx:      ctx,
		sleep:    time.Sleep,
	}
}

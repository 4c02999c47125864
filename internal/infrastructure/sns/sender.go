package sns

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/notify-api-nosql/internal/config"
)

// Sender publishes alerts to device platform endpoints via AWS SNS and
// registers new endpoints from raw push tokens.
type Sender interface {
	PublishEndpoint(ctx context.Context, endpointARN, message string) error
	RegisterEndpoint(ctx context.Context, pushToken string) (string, error)
}

type sender struct {
	client      *sns.Client
	platformARN string
}

func NewSender(cfg *config.Config) (Sender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	opts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &sender{
		client:      sns.NewFromConfig(awsCfg, opts...),
		platformARN: cfg.SNSPlatformARN,
	}, nil
}

func (s *sender) PublishEndpoint(ctx context.Context, endpointARN, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TargetArn: &endpointARN,
		Message:   &message,
	})
	return err
}

func (s *sender) RegisterEndpoint(ctx context.Context, pushToken string) (string, error) {
	out, err := s.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: &s.platformARN,
		Token:                  &pushToken,
	})
	if err != nil {
		return "", err
	}
	return *out.EndpointArn, nil
}

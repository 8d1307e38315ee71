package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	appconfig "github.com/wolfman30/salon-booking-assistant/internal/config"
	"github.com/wolfman30/salon-booking-assistant/internal/notify"
	"github.com/wolfman30/salon-booking-assistant/pkg/logging"
)

// LoadAWSConfig builds the AWS SDK config, using static keys when both are set.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}
	return config.LoadDefaultConfig(ctx, loaders...)
}

// BuildEmailSender picks the sender named by EMAIL_PROVIDER. "auto" prefers
// SendGrid, then SES, then the logging stub.
func BuildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (notify.EmailSender, error) {
	if logger == nil {
		logger = logging.Default()
	}

	provider := cfg.EmailProvider
	if provider == "auto" || provider == "" {
		switch {
		case cfg.SendGridAPIKey != "":
			provider = "sendgrid"
		case cfg.SESFromEmail != "":
			provider = "ses"
		default:
			provider = "stub"
		}
	}

	switch provider {
	case "sendgrid":
		sender := newSendGrid(cfg, logger)
		if sender == nil {
			return nil, fmt.Errorf("bootstrap: EMAIL_PROVIDER=sendgrid requires SENDGRID_API_KEY")
		}
		return sender, nil
	case "ses":
		if cfg.SESFromEmail == "" {
			return nil, fmt.Errorf("bootstrap: EMAIL_PROVIDER=ses requires SES_FROM_EMAIL")
		}
		awsCfg, err := LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		client := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
			if cfg.AWSEndpointOverride != "" {
				o.BaseEndpoint = aws.String(cfg.AWSEndpointOverride)
			}
		})
		return notify.NewSESSender(client, notify.SESConfig{FromEmail: cfg.SESFromEmail, FromName: cfg.SalonName}, logger), nil
	case "stub", "none":
		return notify.NewStubEmailSender(logger), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown EMAIL_PROVIDER %q", cfg.EmailProvider)
	}
}

// newSendGrid returns nil without an API key.
func newSendGrid(cfg *appconfig.Config, logger *logging.Logger) *notify.SendGridSender {
	return notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger)
}

// BuildNotifier wraps the e-mail sender into the booking notifier.
func BuildNotifier(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*notify.Service, error) {
	if logger == nil {
		logger = logging.Default()
	}
	sender, err := BuildEmailSender(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.NotifyEmail == "" {
		logger.Info("SALON_NOTIFY_EMAIL not set; booking e-mails disabled")
	}
	return notify.NewService(sender, notify.ServiceConfig{Recipient: cfg.NotifyEmail, SalonName: cfg.SalonName}, logger), nil
}

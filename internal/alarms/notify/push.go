package notify

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sns"
	"go.uber.org/zap"

	alarms "hydro-dashboard/internal/alarms/domain"
	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
)

// maxSubjectLen is the SNS limit for message subjects.
const maxSubjectLen = 100

// Publisher is the subset of the SNS API used for push delivery.
type Publisher interface {
	PublishWithContext(ctx aws.Context, input *sns.PublishInput, opts ...request.Option) (*sns.PublishOutput, error)
}

// NewSNSPublisher builds an SNS client for region with the default credential chain.
func NewSNSPublisher(region string) (*sns.SNS, error) {
	if region == "" {
		return nil, errors.New("push notifier: empty region")
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, err
	}
	return sns.New(sess), nil
}

type pushMessage struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Extra alarms.Payload `json:"extra"`
}

// PushNotifier publishes alerts to an SNS topic that fans out to mobile endpoints.
type PushNotifier struct {
	client   Publisher
	topicARN string
	logger   *zap.SugaredLogger
}

// NewPushNotifier constructs a push notifier.
func NewPushNotifier(client Publisher, topicARN string, logger *zap.SugaredLogger) (*PushNotifier, error) {
	if client == nil {
		return nil, errors.New("push notifier: nil client")
	}
	if topicARN == "" {
		return nil, errors.New("push notifier: empty topic arn")
	}
	return &PushNotifier{client: client, topicARN: topicARN, logger: hlog.OrNop(logger)}, nil
}

// Notify implements AlertNotifier.
func (p *PushNotifier) Notify(ctx context.Context, alert alarms.Alert) {
	if p == nil {
		return
	}
	message, err := json.Marshal(pushMessage{Title: alert.Title, Body: alert.Body, Extra: alert.Payload})
	if err != nil {
		return
	}
	subject := alert.Title
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}
	_, err = p.client.PublishWithContext(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(string(message)),
		MessageAttributes: map[string]*sns.MessageAttributeValue{
			"parameter": {DataType: aws.String("String"), StringValue: aws.String(string(alert.Parameter))},
			"kind":      {DataType: aws.String("String"), StringValue: aws.String(string(alert.Kind))},
		},
	})
	if err != nil {
		metrics.IncNotifyError("push")
		p.logger.Warnw("push publish failed", "alert_id", alert.ID, "error", err)
	}
}

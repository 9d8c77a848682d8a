package sns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/edu-notify-api/internal/config"
	"github.com/edu-notify-api/internal/domain"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// snsAPI is the subset of the SNS client the gateway uses. *sns.Client satisfies it.
type snsAPI interface {
	CreatePlatformEndpoint(ctx context.Context, in *sns.CreatePlatformEndpointInput, optFns ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error)
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	CreateTopic(ctx context.Context, in *sns.CreateTopicInput, optFns ...func(*sns.Options)) (*sns.CreateTopicOutput, error)
	Subscribe(ctx context.Context, in *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	ListSubscriptionsByTopic(ctx context.Context, in *sns.ListSubscriptionsByTopicInput, optFns ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error)
	Unsubscribe(ctx context.Context, in *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
}

// endpointTTL bounds how long a token's platform endpoint ARN is reused without asking SNS.
const endpointTTL = time.Hour

// Gateway delivers push notifications through SNS mobile push. Device tokens are
// mapped to platform endpoints; topics are SNS topics named with a shared prefix.
// A Gateway without a platform application ARN is disabled: every call is a no-op.
type Gateway struct {
	client      snsAPI
	platformARN string
	topicPrefix string
	timeout     time.Duration
	log         *zap.Logger

	endpoints *cache.Cache

	mu        sync.Mutex
	topicARNs map[domain.Topic]string
}

// NewGateway builds a Gateway from configuration. An empty SNS_PLATFORM_APPLICATION_ARN
// yields a disabled gateway rather than an error.
func NewGateway(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Gateway, error) {
	if cfg.SNSPlatformApplicationARN == "" {
		log.Warn("push gateway disabled: SNS_PLATFORM_APPLICATION_ARN not set")
		return newGateway(nil, "", cfg.SNSTopicPrefix, cfg.PushTimeout, log), nil
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	var clientOpts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	client := sns.NewFromConfig(awsCfg, clientOpts...)
	return newGateway(client, cfg.SNSPlatformApplicationARN, cfg.SNSTopicPrefix, cfg.PushTimeout, log), nil
}

func newGateway(client snsAPI, platformARN, topicPrefix string, timeout time.Duration, log *zap.Logger) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		client:      client,
		platformARN: platformARN,
		topicPrefix: topicPrefix,
		timeout:     timeout,
		log:         log,
		endpoints:   cache.New(endpointTTL, 2*endpointTTL),
		topicARNs:   make(map[domain.Topic]string),
	}
}

// Enabled reports whether the gateway talks to SNS.
func (g *Gateway) Enabled() bool { return g.client != nil && g.platformARN != "" }

// SendToDevice pushes payload to a single device token.
func (g *Gateway) SendToDevice(ctx context.Context, token string, payload domain.PushPayload) (domain.DeliveryResult, error) {
	if !g.Enabled() {
		return domain.DeliveryResult{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	endpointARN, err := g.endpointFor(ctx, token)
	if err != nil {
		return domain.DeliveryResult{}, err
	}
	msg, err := buildMessage(payload)
	if err != nil {
		return domain.DeliveryResult{}, err
	}
	out, err := g.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(endpointARN),
		Message:          aws.String(msg),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("publish to device: %w", err)
	}
	return domain.DeliveryResult{MessageID: aws.ToString(out.MessageId)}, nil
}

// SendToMultipleDevices pushes payload to each token and counts the outcomes.
// An empty token list never reaches SNS.
func (g *Gateway) SendToMultipleDevices(ctx context.Context, tokens []string, payload domain.PushPayload) (domain.BatchResult, error) {
	var res domain.BatchResult
	if !g.Enabled() || len(tokens) == 0 {
		return res, nil
	}
	var errs []error
	for _, token := range tokens {
		if _, err := g.SendToDevice(ctx, token, payload); err != nil {
			res.FailureCount++
			errs = append(errs, err)
			continue
		}
		res.SuccessCount++
	}
	if res.SuccessCount == 0 {
		return res, errors.Join(errs...)
	}
	if res.FailureCount > 0 {
		g.log.Warn("partial push failure",
			zap.Int("success", res.SuccessCount),
			zap.Int("failure", res.FailureCount),
			zap.Error(errors.Join(errs...)))
	}
	return res, nil
}

// SendToTopic pushes payload to every device subscribed to topic.
func (g *Gateway) SendToTopic(ctx context.Context, topic domain.Topic, payload domain.PushPayload) (domain.DeliveryResult, error) {
	if !g.Enabled() {
		return domain.DeliveryResult{}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	topicARN, err := g.topicARN(ctx, topic)
	if err != nil {
		return domain.DeliveryResult{}, err
	}
	msg, err := buildMessage(payload)
	if err != nil {
		return domain.DeliveryResult{}, err
	}
	out, err := g.client.Publish(ctx, &sns.PublishInput{
		TopicArn:         aws.String(topicARN),
		Message:          aws.String(msg),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("publish to topic %s: %w", topic, err)
	}
	return domain.DeliveryResult{MessageID: aws.ToString(out.MessageId)}, nil
}

// SubscribeToTopic subscribes each token's endpoint to topic. SNS treats a repeated
// subscription as the existing one.
func (g *Gateway) SubscribeToTopic(ctx context.Context, tokens []string, topic domain.Topic) error {
	if !g.Enabled() || len(tokens) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	topicARN, err := g.topicARN(ctx, topic)
	if err != nil {
		return err
	}
	var errs []error
	for _, token := range tokens {
		endpointARN, err := g.endpointFor(ctx, token)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := g.client.Subscribe(ctx, &sns.SubscribeInput{
			TopicArn: aws.String(topicARN),
			Protocol: aws.String("application"),
			Endpoint: aws.String(endpointARN),
		}); err != nil {
			errs = append(errs, fmt.Errorf("subscribe to %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

// UnsubscribeFromTopic removes each token's endpoint from topic.
func (g *Gateway) UnsubscribeFromTopic(ctx context.Context, tokens []string, topic domain.Topic) error {
	if !g.Enabled() || len(tokens) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	topicARN, err := g.topicARN(ctx, topic)
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		endpointARN, err := g.endpointFor(ctx, token)
		if err != nil {
			return err
		}
		wanted[endpointARN] = true
	}

	var errs []error
	var next *string
	for {
		out, err := g.client.ListSubscriptionsByTopic(ctx, &sns.ListSubscriptionsByTopicInput{
			TopicArn:  aws.String(topicARN),
			NextToken: next,
		})
		if err != nil {
			return fmt.Errorf("list subscriptions of %s: %w", topic, err)
		}
		for _, sub := range out.Subscriptions {
			if !wanted[aws.ToString(sub.Endpoint)] {
				continue
			}
			if _, err := g.client.Unsubscribe(ctx, &sns.UnsubscribeInput{SubscriptionArn: sub.SubscriptionArn}); err != nil {
				errs = append(errs, fmt.Errorf("unsubscribe from %s: %w", topic, err))
			}
		}
		if out.NextToken == nil {
			break
		}
		next = out.NextToken
	}
	return errors.Join(errs...)
}

// endpointFor returns the platform endpoint ARN for token, creating it on first use.
// CreatePlatformEndpoint is idempotent for an unchanged token.
func (g *Gateway) endpointFor(ctx context.Context, token string) (string, error) {
	if arn, ok := g.endpoints.Get(token); ok {
		return arn.(string), nil
	}
	out, err := g.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(g.platformARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	arn := aws.ToString(out.EndpointArn)
	g.endpoints.SetDefault(token, arn)
	return arn, nil
}

// topicARN resolves topic to its SNS ARN. CreateTopic returns the existing ARN
// when the topic is already there.
func (g *Gateway) topicARN(ctx context.Context, topic domain.Topic) (string, error) {
	g.mu.Lock()
	arn, ok := g.topicARNs[topic]
	g.mu.Unlock()
	if ok {
		return arn, nil
	}
	out, err := g.client.CreateTopic(ctx, &sns.CreateTopicInput{
		Name: aws.String(g.topicPrefix + string(topic)),
	})
	if err != nil {
		return "", fmt.Errorf("resolve topic %s: %w", topic, err)
	}
	arn = aws.ToString(out.TopicArn)
	g.mu.Lock()
	g.topicARNs[topic] = arn
	g.mu.Unlock()
	return arn, nil
}

// buildMessage renders payload as an SNS per-protocol JSON message for FCM and APNs.
func buildMessage(p domain.PushPayload) (string, error) {
	gcm, err := json.Marshal(map[string]any{
		"notification": map[string]string{
			"title":        p.Title,
			"body":         p.Body,
			"icon":         p.Icon,
			"click_action": p.ClickAction,
		},
		"data": p.Data,
	})
	if err != nil {
		return "", err
	}
	apnsBody := map[string]any{
		"aps": map[string]any{
			"alert": map[string]string{"title": p.Title, "body": p.Body},
			"sound": "default",
		},
	}
	for k, v := range p.Data {
		apnsBody[k] = v
	}
	if p.ClickAction != "" {
		apnsBody["clickAction"] = p.ClickAction
	}
	apns, err := json.Marshal(apnsBody)
	if err != nil {
		return "", err
	}
	msg, err := json.Marshal(map[string]string{
		"default":      p.Body,
		"GCM":          string(gcm),
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
	})
	if err != nil {
		return "", err
	}
	return string(msg), nil
}

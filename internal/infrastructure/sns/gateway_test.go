package sns

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/edu-notify-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSNS struct{ mock.Mock }

func (m *mockSNS) CreatePlatformEndpoint(ctx context.Context, in *sns.CreatePlatformEndpointInput, _ ...func(*sns.Options)) (*sns.CreatePlatformEndpointOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.CreatePlatformEndpointOutput)
	return out, args.Error(1)
}

func (m *mockSNS) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.PublishOutput)
	return out, args.Error(1)
}

func (m *mockSNS) CreateTopic(ctx context.Context, in *sns.CreateTopicInput, _ ...func(*sns.Options)) (*sns.CreateTopicOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.CreateTopicOutput)
	return out, args.Error(1)
}

func (m *mockSNS) Subscribe(ctx context.Context, in *sns.SubscribeInput, _ ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.SubscribeOutput)
	return out, args.Error(1)
}

func (m *mockSNS) ListSubscriptionsByTopic(ctx context.Context, in *sns.ListSubscriptionsByTopicInput, _ ...func(*sns.Options)) (*sns.ListSubscriptionsByTopicOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.ListSubscriptionsByTopicOutput)
	return out, args.Error(1)
}

func (m *mockSNS) Unsubscribe(ctx context.Context, in *sns.UnsubscribeInput, _ ...func(*sns.Options)) (*sns.UnsubscribeOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*sns.UnsubscribeOutput)
	return out, args.Error(1)
}

func newTestGateway(client snsAPI) *Gateway {
	return newGateway(client, "arn:aws:sns:us-east-1:1:app/GCM/edu", "edu-", time.Second, zap.NewNop())
}

func endpointFor(m *mockSNS, token, arn string) {
	m.On("CreatePlatformEndpoint", mock.Anything, mock.MatchedBy(func(in *sns.CreatePlatformEndpointInput) bool {
		return aws.ToString(in.Token) == token
	})).Return(&sns.CreatePlatformEndpointOutput{EndpointArn: aws.String(arn)}, nil)
}

var payload = domain.PushPayload{Title: "Approved", Body: "You are now a lecturer", Data: map[string]string{"type": "lecturer_approved"}}

func TestGateway_SendToMultipleDevices_EmptyTokensSkipsProvider(t *testing.T) {
	m := new(mockSNS)
	g := newTestGateway(m)

	res, err := g.SendToMultipleDevices(context.Background(), nil, payload)

	require.NoError(t, err)
	assert.Equal(t, domain.BatchResult{}, res)
	m.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	m.AssertNotCalled(t, "CreatePlatformEndpoint", mock.Anything, mock.Anything)
}

func TestGateway_Disabled_IsNoop(t *testing.T) {
	g := newGateway(nil, "", "edu-", time.Second, zap.NewNop())

	res, err := g.SendToDevice(context.Background(), "tok", payload)
	require.NoError(t, err)
	assert.Empty(t, res.MessageID)

	batch, err := g.SendToMultipleDevices(context.Background(), []string{"a", "b"}, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchResult{}, batch)

	_, err = g.SendToTopic(context.Background(), domain.TopicAllUsers, payload)
	assert.NoError(t, err)
	assert.NoError(t, g.SubscribeToTopic(context.Background(), []string{"a"}, domain.TopicAdmins))
	assert.NoError(t, g.UnsubscribeFromTopic(context.Background(), []string{"a"}, domain.TopicAdmins))
	assert.False(t, g.Enabled())
}

func TestGateway_SendToDevice_PublishesJSONStructure(t *testing.T) {
	m := new(mockSNS)
	endpointFor(m, "tok1", "arn:endpoint/1")
	m.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var msg map[string]string
		if err := json.Unmarshal([]byte(aws.ToString(in.Message)), &msg); err != nil {
			return false
		}
		return aws.ToString(in.TargetArn) == "arn:endpoint/1" &&
			aws.ToString(in.MessageStructure) == "json" &&
			msg["default"] == payload.Body && msg["GCM"] != ""
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	g := newTestGateway(m)
	res, err := g.SendToDevice(context.Background(), "tok1", payload)

	require.NoError(t, err)
	assert.Equal(t, "m-1", res.MessageID)
}

func TestGateway_SendToDevice_ReusesEndpoint(t *testing.T) {
	m := new(mockSNS)
	endpointFor(m, "tok1", "arn:endpoint/1")
	m.On("Publish", mock.Anything, mock.Anything).Return(&sns.PublishOutput{MessageId: aws.String("m")}, nil)

	g := newTestGateway(m)
	_, err := g.SendToDevice(context.Background(), "tok1", payload)
	require.NoError(t, err)
	_, err = g.SendToDevice(context.Background(), "tok1", payload)
	require.NoError(t, err)

	m.AssertNumberOfCalls(t, "CreatePlatformEndpoint", 1)
}

func TestGateway_SendToMultipleDevices_CountsOutcomes(t *testing.T) {
	m := new(mockSNS)
	endpointFor(m, "good", "arn:endpoint/good")
	endpointFor(m, "bad", "arn:endpoint/bad")
	m.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.TargetArn) == "arn:endpoint/bad"
	})).Return(nil, errors.New("endpoint disabled"))
	m.On("Publish", mock.Anything, mock.Anything).Return(&sns.PublishOutput{MessageId: aws.String("m")}, nil)

	g := newTestGateway(m)
	res, err := g.SendToMultipleDevices(context.Background(), []string{"good", "bad"}, payload)

	require.NoError(t, err)
	assert.Equal(t, domain.BatchResult{SuccessCount: 1, FailureCount: 1}, res)
}

func TestGateway_SendToMultipleDevices_AllFailedReturnsError(t *testing.T) {
	m := new(mockSNS)
	m.On("CreatePlatformEndpoint", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	g := newTestGateway(m)
	res, err := g.SendToMultipleDevices(context.Background(), []string{"a", "b"}, payload)

	assert.Error(t, err)
	assert.Equal(t, 2, res.FailureCount)
}

func TestGateway_SendToTopic_CachesTopicARN(t *testing.T) {
	m := new(mockSNS)
	m.On("CreateTopic", mock.Anything, mock.MatchedBy(func(in *sns.CreateTopicInput) bool {
		return aws.ToString(in.Name) == "edu-learners"
	})).Return(&sns.CreateTopicOutput{TopicArn: aws.String("arn:topic/learners")}, nil)
	m.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.TopicArn) == "arn:topic/learners"
	})).Return(&sns.PublishOutput{MessageId: aws.String("m")}, nil)

	g := newTestGateway(m)
	for i := 0; i < 2; i++ {
		_, err := g.SendToTopic(context.Background(), domain.TopicLearners, payload)
		require.NoError(t, err)
	}
	m.AssertNumberOfCalls(t, "CreateTopic", 1)
}

func TestGateway_SubscribeToTopic(t *testing.T) {
	m := new(mockSNS)
	m.On("CreateTopic", mock.Anything, mock.Anything).Return(&sns.CreateTopicOutput{TopicArn: aws.String("arn:topic/all")}, nil)
	endpointFor(m, "tok1", "arn:endpoint/1")
	m.On("Subscribe", mock.Anything, mock.MatchedBy(func(in *sns.SubscribeInput) bool {
		return aws.ToString(in.Protocol) == "application" && aws.ToString(in.Endpoint) == "arn:endpoint/1"
	})).Return(&sns.SubscribeOutput{}, nil)

	g := newTestGateway(m)
	require.NoError(t, g.SubscribeToTopic(context.Background(), []string{"tok1"}, domain.TopicAllUsers))
	m.AssertExpectations(t)
}

func TestGateway_UnsubscribeFromTopic_OnlyMatchingEndpoints(t *testing.T) {
	m := new(mockSNS)
	m.On("CreateTopic", mock.Anything, mock.Anything).Return(&sns.CreateTopicOutput{TopicArn: aws.String("arn:topic/admins")}, nil)
	endpointFor(m, "tok1", "arn:endpoint/1")
	m.On("ListSubscriptionsByTopic", mock.Anything, mock.Anything).Return(&sns.ListSubscriptionsByTopicOutput{
		Subscriptions: []types.Subscription{
			{SubscriptionArn: aws.String("sub/1"), Endpoint: aws.String("arn:endpoint/1")},
			{SubscriptionArn: aws.String("sub/2"), Endpoint: aws.String("arn:endpoint/other")},
		},
	}, nil)
	m.On("Unsubscribe", mock.Anything, mock.MatchedBy(func(in *sns.UnsubscribeInput) bool {
		return aws.ToString(in.SubscriptionArn) == "sub/1"
	})).Return(&sns.UnsubscribeOutput{}, nil)

	g := newTestGateway(m)
	require.NoError(t, g.UnsubscribeFromTopic(context.Background(), []string{"tok1"}, domain.TopicAdmins))
	m.AssertNumberOfCalls(t, "Unsubscribe", 1)
}

package hooks

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/yunqi/lighthouse/internal/hooks/mocks"
	"github.com/yunqi/lighthouse/internal/message"
)

func TestDefaultRegistryAllowsEverything(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.Authenticator.Authenticate(&ConnectInfo{ClientID: "c1"}))
	assert.True(t, r.Authorizer.CanPublish("c1", "a/b"))
	assert.True(t, r.Authorizer.CanSubscribe("c1", "a/+"))
}

func TestDenyAllAuthenticator(t *testing.T) {
	assert.False(t, DenyAllAuthenticator{}.Authenticate(&ConnectInfo{}))
}

func TestFireNotifiesAllListeners(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	l1 := mocks.NewMockEventListener(ctrl)
	l2 := mocks.NewMockEventListener(ctrl)
	msg := &message.ApplicationMessage{Topic: "a/b"}

	l1.EXPECT().OnEvent(MessagePublishing, "c1", msg)
	l2.EXPECT().OnEvent(MessagePublishing, "c1", msg)

	r := NewRegistry()
	r.AddListener(l1)
	r.AddListener(l2)
	r.Fire(MessagePublishing, "c1", msg)
}

func TestMockAuthorizerDenies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	authz := mocks.NewMockAuthorizer(ctrl)
	authz.EXPECT().CanPublish("c1", "restricted/topic").Return(false)

	assert.False(t, authz.CanPublish("c1", "restricted/topic"))
}

func TestEventStringUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", Event(200).String())
	assert.Equal(t, "MessagePublished", MessagePublished.String())
}

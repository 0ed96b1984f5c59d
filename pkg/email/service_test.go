package email

import (
	"bytes"
	"testing"
	"time"

	"github.com/jordanlanch/crmleads/pkg/logger"
	"github.com/stretchr/testify/assert"
)

func TestNewService_ConsoleMode(t *testing.T) {
	svc := NewService("from@example.com", "CRM", "", nil)
	assert.False(t, svc.useSendGrid)
	assert.Equal(t, "from@example.com", svc.fromEmail)
	assert.Equal(t, "CRM", svc.fromName)
}

func TestNewService_SendGridMode(t *testing.T) {
	svc := NewService("from@example.com", "CRM", "SG.test-key", nil)
	assert.True(t, svc.useSendGrid)
	assert.Equal(t, "SG.test-key", svc.sendGridKey)
}

func TestSendVerificationCode_ConsoleMode(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService("from@example.com", "CRM", "", logger.NewWithWriter(&buf, "info"))

	err := svc.SendVerificationCode("user@example.com", "Test User", "042917", 10*time.Minute)
	assert.NoError(t, err, "Console mode should not error")
	assert.Contains(t, buf.String(), "042917")
	assert.Contains(t, buf.String(), `"expires_in_minutes":10`)
}

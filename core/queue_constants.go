package core

import "time"

// Redis キーと可視タイムアウトのデフォルト値をまとめた定数。
const (
	MailPendingKey    = "mail:pending"
	MailProcessingKey = "mail:processing"
	MailRetryKey      = "mail:retries"
	// DefaultVisibilityTimeout はワーカーがジョブを保持する可視タイムアウト。
	DefaultVisibilityTimeout = 30 * time.Second
	// MaxMailRetries を超えたジョブは破棄する。
	MaxMailRetries = 3

	sessionKeyPrefix = "session:"
	loginAttemptKey  = "login:attempts:"
	loginLockKey     = "login:lock:"
)

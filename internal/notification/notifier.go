package notification

import (
	"fmt"
)

// Notifier 抽象了外部通知渠道。
// 所有调用都是尽力而为：失败只记录日志，绝不回滚或重试业务操作。
type Notifier interface {
	NotifyUser(userID string, notifyType string, payload map[string]interface{}) error
}

// 通知类型
const (
	TypeWinner          = "lottery_winner"
	TypePurchaseSuccess = "purchase_success"
	TypePurchaseFailed  = "purchase_failed"
)

// LogNotifier 是默认的通知实现，把通知写到标准输出。
// 接入真实的邮件/短信渠道时替换这里即可。
type LogNotifier struct{}

// NewLogNotifier 创建一个日志通知器。
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyUser 输出一条通知日志。
func (n *LogNotifier) NotifyUser(userID string, notifyType string, payload map[string]interface{}) error {
	fmt.Printf("通知: 用户=%s 类型=%s 内容=%v\n", userID, notifyType, payload)
	return nil
}

// Dispatch 以fire-and-forget方式发送通知，内部吞掉所有错误。
func Dispatch(n Notifier, userID string, notifyType string, payload map[string]interface{}) {
	if n == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("警告: 通知发送时发生panic: %v\n", r)
			}
		}()
		if err := n.NotifyUser(userID, notifyType, payload); err != nil {
			fmt.Printf("警告: 通知发送失败 (用户=%s 类型=%s): %v\n", userID, notifyType, err)
		}
	}()
}

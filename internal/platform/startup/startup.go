package startup

import (
	"fmt"

	"github.com/SlpAus/pyramid-lottery-backend/internal/campaign"
	"github.com/SlpAus/pyramid-lottery-backend/internal/lottery"
	"github.com/SlpAus/pyramid-lottery-backend/internal/purchase"
	"github.com/SlpAus/pyramid-lottery-backend/internal/user"
)

// InitializeApplication 是应用首次启动时执行的总入口
// 按依赖顺序迁移各模块的表结构
func InitializeApplication() error {
	fmt.Println("开始应用初始化...")

	if err := user.PrimeModule(); err != nil {
		return err
	}
	if err := campaign.PrimeModule(); err != nil {
		return err
	}
	if err := purchase.PrimeModule(); err != nil {
		return err
	}
	if err := lottery.PrimeModule(); err != nil {
		return err
	}

	fmt.Println("应用初始化完成！")
	return nil
}

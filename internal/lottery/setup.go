package lottery

import (
	"fmt"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
)

// PrimeModule 负责初始化lottery模块的数据库表结构
func PrimeModule() error {
	if err := database.DB.AutoMigrate(&PrizeTier{}, &LotteryResult{}, &DrawLock{}); err != nil {
		return fmt.Errorf("无法迁移lottery表: %w", err)
	}
	fmt.Println("Lottery数据库表迁移成功。")
	return nil
}

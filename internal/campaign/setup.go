package campaign

import (
	"fmt"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
)

// PrimeModule 负责初始化campaign模块的数据库表结构
func PrimeModule() error {
	if err := database.DB.AutoMigrate(&Campaign{}, &Layer{}, &Position{}); err != nil {
		return fmt.Errorf("无法迁移campaign相关表: %w", err)
	}
	fmt.Println("Campaign数据库表迁移成功。")
	return nil
}

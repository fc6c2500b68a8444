package purchase

import (
	"fmt"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
)

// PrimeModule 负责初始化purchase模块的数据库表结构
func PrimeModule() error {
	if err := database.DB.AutoMigrate(&Purchase{}); err != nil {
		return fmt.Errorf("无法迁移purchase表: %w", err)
	}
	fmt.Println("Purchase数据库表迁移成功。")
	return nil
}

package database

import (
	"fmt"
	"log"
	"os"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/config"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 是一个全局的GORM实例，供项目其他部分使用
var DB *gorm.DB

// InitDB 初始化数据库连接
// 生产环境使用PostgreSQL，本地开发与测试可以切换到SQLite
func InitDB(cfg config.DatabaseConfig) {
	var err error

	// GORM日志配置
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 0,
			LogLevel:      logger.Silent, // 在生产环境中可以设为Silent
			Colorful:      true,
		},
	)

	gormCfg := &gorm.Config{Logger: newLogger}

	switch cfg.Driver {
	case "postgres":
		DB, err = gorm.Open(postgres.Open(cfg.Postgres.DSN), gormCfg)
	default:
		DB, err = gorm.Open(sqlite.Open(cfg.Sqlite.Path), gormCfg)
	}

	if err != nil {
		fmt.Println("连接数据库失败", err)
		panic(err)
	}

	fmt.Printf("数据库连接成功！(driver=%s)\n", DB.Dialector.Name())
}

// SupportsRowLocking 报告当前数据库方言是否支持行级锁语法。
// SQLite是单写者引擎，FOR UPDATE语法不被接受，也无此必要。
func SupportsRowLocking() bool {
	if DB == nil {
		return false
	}
	return DB.Dialector.Name() == "postgres"
}

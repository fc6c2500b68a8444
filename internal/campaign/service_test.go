package campaign

import (
	"errors"
	"testing"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/config"
	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 用内存SQLite替换全局数据库连接。
// 单连接保证内存库在整个测试期间存活。
func setupTestDB(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("无法打开测试数据库: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("无法获取底层连接: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	database.DB = db
	database.UpdateStatus(false, "")
	config.Cfg = &config.Config{}
	config.Cfg.Lottery.MinLayerPrice = 100

	if err := database.DB.AutoMigrate(&Campaign{}, &Layer{}, &Position{}); err != nil {
		t.Fatalf("无法迁移测试表: %v", err)
	}
}

func TestCreateCampaignGeneratesTriangularGrid(t *testing.T) {
	setupTestDB(t)

	c, err := CreateCampaign(CreateParams{
		Title:       "测试活动",
		BaseLength:  3,
		LayerPrices: []int64{300, 200, 100},
	})
	if err != nil {
		t.Fatalf("创建活动失败: %v", err)
	}
	if c.PositionsTotal != 6 {
		t.Fatalf("底边3的总仓位数应为6, 实际 %d", c.PositionsTotal)
	}
	if c.Status != StatusDraft {
		t.Fatalf("新活动状态应为draft, 实际 %s", c.Status)
	}

	positions, err := GetPositions(c.ID)
	if err != nil {
		t.Fatalf("查询仓位失败: %v", err)
	}
	if len(positions) != 6 {
		t.Fatalf("仓位行数应为6, 实际 %d", len(positions))
	}

	// 层L应恰好有L个仓位，价格取对应层定价，编号从1连续
	layerCount := map[int]int{}
	for i, p := range positions {
		layerCount[p.Layer]++
		if p.Number != i+1 {
			t.Errorf("仓位编号应连续: 期望 %d, 实际 %d", i+1, p.Number)
		}
		if p.Status != PositionAvailable {
			t.Errorf("新仓位应为available, 实际 %s", p.Status)
		}
	}
	wantPrices := map[int]int64{1: 300, 2: 200, 3: 100}
	for _, p := range positions {
		if p.Price != wantPrices[p.Layer] {
			t.Errorf("层%d仓位价格应为%d, 实际 %d", p.Layer, wantPrices[p.Layer], p.Price)
		}
	}
	for layer := 1; layer <= 3; layer++ {
		if layerCount[layer] != layer {
			t.Errorf("层%d应有%d个仓位, 实际 %d", layer, layer, layerCount[layer])
		}
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	setupTestDB(t)

	cases := []struct {
		name    string
		params  CreateParams
		wantErr error
	}{
		{"底边为0", CreateParams{BaseLength: 0, LayerPrices: []int64{}}, ErrInvalidBaseLength},
		{"底边超上限", CreateParams{BaseLength: 101, LayerPrices: make([]int64, 101)}, ErrInvalidBaseLength},
		{"定价数量不匹配", CreateParams{BaseLength: 3, LayerPrices: []int64{100, 100}}, ErrLayerPriceCount},
		{"定价低于下限", CreateParams{BaseLength: 2, LayerPrices: []int64{100, 99}}, ErrLayerPriceTooLow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := CreateCampaign(tc.params); !errors.Is(err, tc.wantErr) {
				t.Fatalf("期望错误 %v, 实际 %v", tc.wantErr, err)
			}
		})
	}
}

func TestStatusAdvancesForwardOnly(t *testing.T) {
	setupTestDB(t)

	c, err := CreateCampaign(CreateParams{
		Title:       "状态机",
		BaseLength:  1,
		LayerPrices: []int64{100},
	})
	if err != nil {
		t.Fatalf("创建活动失败: %v", err)
	}

	// 草稿不能直接关闭
	if _, err := CloseCampaign(c.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("草稿关闭应返回ErrInvalidTransition, 实际 %v", err)
	}

	published, err := PublishCampaign(c.ID)
	if err != nil {
		t.Fatalf("发布失败: %v", err)
	}
	if published.Status != StatusPublished {
		t.Fatalf("发布后状态应为published, 实际 %s", published.Status)
	}

	// 重复发布是非法转换
	if _, err := PublishCampaign(c.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("重复发布应返回ErrInvalidTransition, 实际 %v", err)
	}

	closed, err := CloseCampaign(c.ID)
	if err != nil {
		t.Fatalf("关闭失败: %v", err)
	}
	if closed.Status != StatusClosed {
		t.Fatalf("关闭后状态应为closed, 实际 %s", closed.Status)
	}
}

func TestAdjustPositionsSoldGuards(t *testing.T) {
	setupTestDB(t)

	c, err := CreateCampaign(CreateParams{
		Title:       "计数守卫",
		BaseLength:  2,
		LayerPrices: []int64{100, 100},
	})
	if err != nil {
		t.Fatalf("创建活动失败: %v", err)
	}

	// 超过总数的上调必须被拒绝
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		return AdjustPositionsSold(tx, c.ID, c.PositionsTotal+1)
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("越界上调应返回ErrInvalidTransition, 实际 %v", err)
	}

	// 跌破零的下调同样被拒绝
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		return AdjustPositionsSold(tx, c.ID, -1)
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("负值下调应返回ErrInvalidTransition, 实际 %v", err)
	}

	// 合法调整不受影响
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		if err := AdjustPositionsSold(tx, c.ID, 3); err != nil {
			return err
		}
		return AdjustPositionsSold(tx, c.ID, -3)
	})
	if err != nil {
		t.Fatalf("合法调整失败: %v", err)
	}
}

package lottery

import (
	"errors"
	"testing"
	"time"

	"github.com/SlpAus/pyramid-lottery-backend/internal/platform/database"
)

func TestAcquireDrawLockIsExclusive(t *testing.T) {
	setupTestDB(t)

	first, err := acquireDrawLock(1, time.Minute)
	if err != nil {
		t.Fatalf("首次加锁失败: %v", err)
	}
	if first == nil {
		t.Fatal("空闲的锁应能立即获取")
	}

	second, err := acquireDrawLock(1, time.Minute)
	if err != nil {
		t.Fatalf("竞争加锁报错: %v", err)
	}
	if second != nil {
		t.Fatal("未过期的锁不应被第二个持有者抢到")
	}

	// 不同活动的锁互不影响
	other, err := acquireDrawLock(2, time.Minute)
	if err != nil || other == nil {
		t.Fatalf("其他活动的锁应可获取, lock=%v err=%v", other, err)
	}

	releaseDrawLock(first)
	reacquired, err := acquireDrawLock(1, time.Minute)
	if err != nil || reacquired == nil {
		t.Fatalf("释放后应可重新获取, lock=%v err=%v", reacquired, err)
	}
}

func TestStaleReleaseDoesNotRemoveTakenOverLock(t *testing.T) {
	setupTestDB(t)
	engine := newTestEngine()
	c := newPublishedCampaign(t, 1)
	sellPositions(t, c.ID, 1)

	// 第一个持有者拿到锁后超时
	first, err := acquireDrawLock(c.ID, time.Minute)
	if err != nil || first == nil {
		t.Fatalf("首次加锁失败: lock=%v err=%v", first, err)
	}
	err = database.DB.Model(&DrawLock{}).
		Where("campaign_id = ?", c.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error
	if err != nil {
		t.Fatalf("无法使锁过期: %v", err)
	}

	// 第二个持有者接管
	second, err := acquireDrawLock(c.ID, time.Minute)
	if err != nil || second == nil {
		t.Fatalf("过期锁应可被接管: lock=%v err=%v", second, err)
	}
	if second.Holder == first.Holder {
		t.Fatal("接管后持有者令牌应更新")
	}

	// 姗姗来迟的旧持有者释放：不得删掉接管者的锁
	releaseDrawLock(first)

	var count int64
	database.DB.Model(&DrawLock{}).Where("campaign_id = ?", c.ID).Count(&count)
	if count != 1 {
		t.Fatalf("接管者的锁应仍然存在, 实际 %d 行", count)
	}
	if _, err := engine.DrawLottery(c.ID); !errors.Is(err, ErrDrawInProgress) {
		t.Fatalf("锁仍被持有时开奖应返回ErrDrawInProgress, 实际 %v", err)
	}

	// 真正的持有者释放后一切恢复正常
	releaseDrawLock(second)
	if _, err := engine.DrawLottery(c.ID); err != nil {
		t.Fatalf("锁释放后开奖应成功: %v", err)
	}
}

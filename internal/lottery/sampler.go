package lottery

import (
	"errors"
	"math/rand"

	"github.com/SlpAus/pyramid-lottery-backend/pkg/tree"
)

var errPoolExhausted = errors.New("候选池已抽空")

// samplePool 是一次开奖使用的不放回抽样池。
// 底层是等权重的线段树：每个叶子对应一个候选仓位，
// 抽中后权重清零，后续抽取自然不会再命中它。
type samplePool struct {
	tree      *tree.SegmentTree
	remaining int
}

func newSamplePool(size int) (*samplePool, error) {
	st, err := tree.NewSegmentTree(size)
	if err != nil {
		return nil, err
	}
	weights := make([]float64, size)
	for i := range weights {
		weights[i] = 1.0
	}
	if err := st.Rebuild(weights); err != nil {
		return nil, err
	}
	return &samplePool{tree: st, remaining: size}, nil
}

// draw 均匀随机地抽出一个尚未被抽中的候选索引。
func (p *samplePool) draw(rng *rand.Rand) (int, error) {
	if p.remaining <= 0 {
		return -1, errPoolExhausted
	}

	value := rng.Float64() * p.tree.TotalSum()
	index, err := p.tree.Find(value)
	if err != nil {
		return -1, err
	}

	// value恰好落在权重边界时Find可能停在已清零的叶子上，顺移到下一个有效叶子
	weight, err := p.tree.Query(index)
	if err != nil {
		return -1, err
	}
	for weight == 0 {
		index++
		weight, err = p.tree.Query(index)
		if err != nil {
			return -1, err
		}
	}

	if err := p.tree.Update(index, 0); err != nil {
		return -1, err
	}
	p.remaining--
	return index, nil
}

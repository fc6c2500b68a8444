package lottery

import (
	"errors"
	"math/rand"
	"testing"
)

func TestSamplePoolDrawsWithoutReplacement(t *testing.T) {
	const size = 17
	pool, err := newSamplePool(size)
	if err != nil {
		t.Fatalf("无法创建抽样池: %v", err)
	}
	rng := rand.New(rand.NewSource(42))

	seen := make(map[int]bool)
	for i := 0; i < size; i++ {
		index, err := pool.draw(rng)
		if err != nil {
			t.Fatalf("第%d次抽取失败: %v", i+1, err)
		}
		if index < 0 || index >= size {
			t.Fatalf("抽出的索引越界: %d", index)
		}
		if seen[index] {
			t.Fatalf("索引 %d 被重复抽中", index)
		}
		seen[index] = true
	}

	// 池子抽空后继续抽取必须报错
	if _, err := pool.draw(rng); !errors.Is(err, errPoolExhausted) {
		t.Fatalf("抽空后应返回errPoolExhausted, 实际 %v", err)
	}
}

func TestSamplePoolCoversAllIndices(t *testing.T) {
	// 多个不同种子下，单次抽取都应能命中任意索引
	const size = 4
	hits := make(map[int]bool)
	for seed := int64(0); seed < 64; seed++ {
		pool, err := newSamplePool(size)
		if err != nil {
			t.Fatalf("无法创建抽样池: %v", err)
		}
		index, err := pool.draw(rand.New(rand.NewSource(seed)))
		if err != nil {
			t.Fatalf("抽取失败: %v", err)
		}
		hits[index] = true
	}
	for i := 0; i < size; i++ {
		if !hits[i] {
			t.Errorf("索引 %d 从未被抽中，抽样可能存在偏向", i)
		}
	}
}

package aggregator

import "errors"

var (
	// ErrPayloadTooLarge 聚合字节数超过上限
	ErrPayloadTooLarge = errors.New("aggregator: payload too large")

	// ErrAlreadyDelivered 负载已交付，不再接收数据
	ErrAlreadyDelivered = errors.New("aggregator: payload already delivered")

	// ErrDiscarded 聚合已被丢弃
	ErrDiscarded = errors.New("aggregator: aggregation discarded")
)

package metrics

// Label 指标标签，为指标添加维度信息
//
// 标签值应相对稳定，避免使用 key、id 等高基数取值。
// storekit 使用的标签：backend、name、operation、outcome。
type Label struct {
	Key   string
	Value string
}

// L 便捷构造函数，创建一个 Label 实例
//
//	counter.Inc(ctx, metrics.L("backend", "keyvalue"), metrics.L("operation", "get"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

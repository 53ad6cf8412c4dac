package store

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
)

// 已知集合
const (
	CollectionPosts        = "posts"
	CollectionCampaigns    = "campaigns"
	CollectionUserProfiles = "user_profiles"
)

// 索引方向与特殊索引类型
const (
	Ascending   = 1
	Descending  = -1
	Text        = "text"
	Geo2DSphere = "2dsphere"
)

// IndexKey 索引中的一个字段，Order 为 Ascending、Descending、Text 或 Geo2DSphere
type IndexKey struct {
	Field string
	Order any
}

// IndexSpec 一个集合上的一个索引
type IndexSpec struct {
	Collection string
	Keys       []IndexKey
	Unique     bool
}

// IndexPlan EnsureIndexes 声明的全部索引
type IndexPlan []IndexSpec

// DefaultIndexPlan 返回 posts、campaigns、user_profiles 三个集合的默认索引
func DefaultIndexPlan() IndexPlan {
	return IndexPlan{
		// posts
		{Collection: CollectionPosts, Keys: []IndexKey{{"platform", Ascending}, {"timestamp", Descending}}},
		{Collection: CollectionPosts, Keys: []IndexKey{{"user_id", Ascending}, {"timestamp", Descending}}},
		{Collection: CollectionPosts, Keys: []IndexKey{{"analysis_results.sentiment", Ascending}, {"timestamp", Descending}}},
		{Collection: CollectionPosts, Keys: []IndexKey{{"analysis_results.risk_score", Descending}}},
		{Collection: CollectionPosts, Keys: []IndexKey{{"content", Text}}},
		{Collection: CollectionPosts, Keys: []IndexKey{{"geolocation.coordinates", Geo2DSphere}}},

		// campaigns
		{Collection: CollectionCampaigns, Keys: []IndexKey{{"status", Ascending}, {"detection_date", Descending}}},
		{Collection: CollectionCampaigns, Keys: []IndexKey{{"coordination_score", Descending}}},
		{Collection: CollectionCampaigns, Keys: []IndexKey{{"participants", Ascending}}},

		// user_profiles
		{Collection: CollectionUserProfiles, Keys: []IndexKey{{"platform", Ascending}, {"user_id", Ascending}}, Unique: true},
		{Collection: CollectionUserProfiles, Keys: []IndexKey{{"bot_probability", Descending}}},
		{Collection: CollectionUserProfiles, Keys: []IndexKey{{"username", Ascending}}},
	}
}

// models 按集合分组生成索引模型，集合顺序与计划中首次出现的顺序一致
func (p IndexPlan) models() ([]string, map[string][]mongo.IndexModel) {
	var order []string
	grouped := make(map[string][]mongo.IndexModel)
	for _, spec := range p {
		if _, ok := grouped[spec.Collection]; !ok {
			order = append(order, spec.Collection)
		}
		keys := make(bson.D, 0, len(spec.Keys))
		for _, k := range spec.Keys {
			keys = append(keys, bson.E{Key: k.Field, Value: k.Order})
		}
		model := mongo.IndexModel{Keys: keys}
		if spec.Unique {
			model.Options = mongoopts.Index().SetUnique(true)
		}
		grouped[spec.Collection] = append(grouped[spec.Collection], model)
	}
	return order, grouped
}

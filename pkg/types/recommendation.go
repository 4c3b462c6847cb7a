package types

// RankedProduct is a product ID with the score that ranked it. The score's
// meaning depends on the query: cosine similarity for related products,
// weighted event counts for trending, pair counts for frequently-bought-with.
type RankedProduct struct {
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
}

// RecommendationSource identifies which signal produced a recommendation
// list, including whether a fallback path was taken.
type RecommendationSource string

const (
	// SourceSimilarity means the list came from embedding cosine ranking.
	SourceSimilarity RecommendationSource = "similarity"

	// SourceTrending means the list came from the trending snapshot.
	SourceTrending RecommendationSource = "trending"

	// SourceCoOccurrence means the list came from order pair counts.
	SourceCoOccurrence RecommendationSource = "co_occurrence"

	// SourceRecency means the list came from the recently-viewed log.
	SourceRecency RecommendationSource = "recency"

	// SourceCategoryFallback means vector ranking was unavailable and the
	// list fell back to same-category products ordered by trending score.
	SourceCategoryFallback RecommendationSource = "category_fallback"
)

// RecommendationSet is the result of one orchestrator query: ranked product
// IDs plus the source that produced them, for the calling layer to hydrate
// into full product DTOs.
type RecommendationSet struct {
	Products []RankedProduct      `json:"products"`
	Source   RecommendationSource `json:"source"`
}

package survey

// Wire names of the fields the core reasons about.
const (
	FieldInterest       = "interest"
	FieldMarketObstacle = "market_obstacle"
	FieldBusinessType   = "business_type"
)

// Interest categories.
const (
	InterestYes     = "yes"
	InterestNo      = "no"
	InterestNotSure = "not_sure"
)

// Market obstacle categories.
const (
	ObstacleConnections   = "connections"
	ObstacleQualityVolume = "quality_volume"
	ObstacleTransportCost = "transport_cost"
	ObstacleCompetition   = "competition"
	ObstacleBranding      = "branding"
)

// InterestCategories lists the interest values in display order.
var InterestCategories = []string{InterestYes, InterestNo, InterestNotSure}

// MarketObstacleCategories lists the market obstacle values in display order.
var MarketObstacleCategories = []string{
	ObstacleConnections,
	ObstacleQualityVolume,
	ObstacleTransportCost,
	ObstacleCompetition,
	ObstacleBranding,
}

// RatingFields are the five 1-5 rating questions summarised on the dashboard.
var RatingFields = []string{
	"rating_market_access",
	"rating_price_fairness",
	"rating_transport",
	"rating_buyer_trust",
	"rating_digital_tools",
}

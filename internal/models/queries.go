package models

// Persisted-query hashes for the platform GraphQL API. The live values
// can be overridden by the web-app version probe; these are the known
// defaults.
const (
	QueryHomeQuery              = "HomeQuery"
	QueryLatestBattleHistories  = "LatestBattleHistories"
	QueryRegularBattleHistories = "RegularBattleHistories"
	QueryBankaraBattleHistories = "BankaraBattleHistories"
	QueryPrivateBattleHistories = "PrivateBattleHistories"
	QueryCoopResult             = "CoopResult"
	QueryVsHistoryDetail        = "VsHistoryDetail"
	QueryCoopHistoryDetail      = "CoopHistoryDetail"
)

// DefaultQueryHashes maps query names to their persisted-query sha256
// hashes.
var DefaultQueryHashes = map[string]string{
	QueryHomeQuery:              "dba47124d5ec3090c97ba17db5d2f4b3",
	QueryLatestBattleHistories:  "7d8b560e31617e981cf7c8aa1ca13a00",
	QueryRegularBattleHistories: "f6e7e0277e03ff14edfef3b41f70cd33",
	QueryBankaraBattleHistories: "c1553ac75de0a3ea497cdbafaa93e95b",
	QueryPrivateBattleHistories: "38e0529de8bc77189504d26c7a14e0b8",
	QueryCoopResult:             "817618ce39bcf5570f52a97d73301b30",
	QueryVsHistoryDetail:        "2b085984f729cd51938fc069ceef784a",
	QueryCoopHistoryDetail:      "f3799a033f0a7ad4b1b396f9a3bafb1e",
}

// ListingQueries are the query names a JobConfig may enable for
// harvesting.
var ListingQueries = []string{
	QueryLatestBattleHistories,
	QueryRegularBattleHistories,
	QueryBankaraBattleHistories,
	QueryPrivateBattleHistories,
	QueryCoopResult,
}

// IsListingQuery reports whether name is a known listing query.
func IsListingQuery(name string) bool {
	for _, q := range ListingQueries {
		if q == name {
			return true
		}
	}
	return false
}

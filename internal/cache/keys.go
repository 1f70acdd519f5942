package cache

func BalanceKey(classID string) string {
	return "balance:" + classID
}

func RecapKey(classID string) string {
	return "rekap:" + classID
}

func DashboardKey(classID string) string {
	return "dashboard:bendahara:" + classID
}

func StudentSummaryKey(userID string) string {
	return "dashboard:student:" + userID
}

func invalidatedKey(key string) string {
	return "invalidated:" + key
}

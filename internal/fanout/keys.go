package fanout

// Penamaan channel dipakai bersama oleh hub, bridge redis, dan pembuat
// effect. Channel user bersifat privat per user; channel shop butuh bukti
// kepemilikan saat join.

const (
	userChannelPrefix = "user:"
	shopChannelPrefix = "shop:"

	// Channel redis pub/sub tempat semua event antar-proses lewat.
	BrokerChannel = "marketplace:events"
)

func UserChannel(userID string) string { return userChannelPrefix + userID }
func ShopChannel(shopID string) string { return shopChannelPrefix + shopID }

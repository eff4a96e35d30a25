package constants

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleAffiliate Role = "AFFILIATE"
	RoleMember    Role = "MEMBER"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderCallbackToken  = "x-callback-token"
	HeaderCronSecret     = "X-Cron-Secret"

	QueryReferral = "ref"

	PaymentProviderXendit = "XENDIT"
	PaymentProviderManual = "MANUAL"

	Currency = "IDR"
)

// Payment channels accepted at checkout.
const (
	ChannelInvoice        = "INVOICE"
	ChannelVirtualAccount = "VIRTUAL_ACCOUNT"
	ChannelEWallet        = "EWALLET"
	ChannelQRIS           = "QRIS"
)

var VirtualAccountBanks = map[string]bool{
	"BCA":     true,
	"BNI":     true,
	"BRI":     true,
	"MANDIRI": true,
	"PERMATA": true,
	"BSI":     true,
}

var EWalletProviders = map[string]string{
	"OVO":       "ID_OVO",
	"DANA":      "ID_DANA",
	"SHOPEEPAY": "ID_SHOPEEPAY",
	"LINKAJA":   "ID_LINKAJA",
}

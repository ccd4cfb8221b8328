package config

// EnvPrefix is handed to envconfig; every field carries its full name in the tag.
const EnvPrefix = "MERCH"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "MERCH_APP_ENV"
	EnvPort     = "MERCH_APP_PORT"
	EnvLogLevel = "MERCH_LOG_LEVEL"

	EnvDBDSN  = "MERCH_DB_DSN"
	EnvDBHost = "MERCH_DB_HOST"
	EnvDBUser = "MERCH_DB_USER"
	EnvDBName = "MERCH_DB_NAME"

	EnvRedisURL     = "MERCH_REDIS_URL"
	EnvRedisCartTTL = "MERCH_REDIS_CART_TTL"

	EnvPricingFreeDeliveryThreshold = "MERCH_PRICING_FREE_DELIVERY_THRESHOLD"
	EnvPricingFlatDeliveryFee       = "MERCH_PRICING_FLAT_DELIVERY_FEE"
	EnvPricingUPIDiscount           = "MERCH_PRICING_UPI_DISCOUNT"
	EnvPricingCODHandlingFee        = "MERCH_PRICING_COD_HANDLING_FEE"

	EnvCheckoutLockTTL = "MERCH_CHECKOUT_LOCK_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv      = "STOREFRONT_APP_ENV"
	EnvPort        = "STOREFRONT_APP_PORT"
	EnvDBDSN       = "STOREFRONT_DB_DSN"
	EnvDBHost      = "STOREFRONT_DB_HOST"
	EnvDBUser      = "STOREFRONT_DB_USER"
	EnvDBName      = "STOREFRONT_DB_NAME"
	EnvRedisURL    = "STOREFRONT_REDIS_URL"
	EnvJWTSecret   = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer   = "STOREFRONT_JWT_ISSUER"
	EnvUseSQLite   = "STOREFRONT_USE_SQLITE"
	EnvTaxRate     = "STOREFRONT_TAX_RATE"
	EnvShippingFee = "STOREFRONT_SHIPPING_FEE_CENTS"
	EnvFreeShip    = "STOREFRONT_FREE_SHIPPING_THRESHOLD_CENTS"
	EnvMaxQty      = "STOREFRONT_CART_MAX_QTY_PER_ITEM"
	EnvUnpaidTTL   = "STOREFRONT_ORDERS_UNPAID_TTL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

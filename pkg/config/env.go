package config

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv = "STOREFRONT_APP_ENV"
	EnvPort   = "STOREFRONT_APP_PORT"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL  = "STOREFRONT_REDIS_URL"
	EnvJWTSecret = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer = "STOREFRONT_JWT_ISSUER"

	EnvCheckoutShippingFee = "STOREFRONT_CHECKOUT_SHIPPING_FEE"
	EnvCheckoutTaxRate     = "STOREFRONT_CHECKOUT_TAX_RATE"
	EnvCheckoutClampTotal  = "STOREFRONT_CHECKOUT_CLAMP_TOTAL"
	EnvCheckoutMaxLineQty  = "STOREFRONT_CHECKOUT_MAX_LINE_QTY"
	EnvUseSQLite           = "STOREFRONT_USE_SQLITE"
	EnvProtectedPrefixes   = "STOREFRONT_ROUTE_PROTECTED_PREFIXES"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

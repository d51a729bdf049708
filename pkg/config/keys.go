package config

const EnvPrefix = "MIAUHOME"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	GuestStoreRedis = "redis"
	GuestStoreSQL   = "sql"
	GuestStoreFile  = "file"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	LoginPolicyReplace = "replace"
	LoginPolicyMerge   = "merge"
)

const (
	EnvAppEnv          = "MIAUHOME_APP_ENV"
	EnvPort            = "MIAUHOME_APP_PORT"
	EnvBackendBaseURL  = "MIAUHOME_BACKEND_BASE_URL"
	EnvBackendTimeout  = "MIAUHOME_BACKEND_TIMEOUT"
	EnvGuestStore      = "MIAUHOME_GUEST_STORE"
	EnvGuestFileDir    = "MIAUHOME_GUEST_FILE_DIR"
	EnvRedisURL        = "MIAUHOME_REDIS_URL"
	EnvRedisAddr       = "MIAUHOME_REDIS_ADDR"
	EnvDBDSN           = "MIAUHOME_DB_DSN"
	EnvDBDriver        = "MIAUHOME_DB_DRIVER"
	EnvCartLoginPolicy = "MIAUHOME_CART_LOGIN_POLICY"
	EnvCORSOrigins     = "MIAUHOME_CORS_ORIGINS"
)

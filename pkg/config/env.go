package config

const EnvPrefix = "ZEROHUNGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "ZEROHUNGER_APP_ENV"
	EnvPort     = "ZEROHUNGER_APP_PORT"
	EnvLogLevel = "ZEROHUNGER_LOG_LEVEL"

	EnvDBDSN  = "ZEROHUNGER_DB_DSN"
	EnvDBHost = "ZEROHUNGER_DB_HOST"
	EnvDBUser = "ZEROHUNGER_DB_USER"
	EnvDBName = "ZEROHUNGER_DB_NAME"

	EnvRedisURL = "ZEROHUNGER_REDIS_URL"

	EnvJWTSecret = "ZEROHUNGER_JWT_SECRET"
	EnvJWTIssuer = "ZEROHUNGER_JWT_ISSUER"

	EnvClaimLockTimeout       = "ZEROHUNGER_CLAIM_LOCK_TIMEOUT"
	EnvProximityDefaultRadius = "ZEROHUNGER_PROXIMITY_DEFAULT_RADIUS_KM"
	EnvProximityMaxRadius     = "ZEROHUNGER_PROXIMITY_MAX_RADIUS_KM"
	EnvClaimRateWindow        = "ZEROHUNGER_CLAIM_RATE_LIMIT_WINDOW"
	EnvClaimRateUser          = "ZEROHUNGER_CLAIM_RATE_LIMIT_USER"

	EnvGCPProjectID = "ZEROHUNGER_GCP_PROJECT_ID"

	EnvPubSubDonationTopic    = "ZEROHUNGER_PUBSUB_DONATION_TOPIC"
	EnvPubSubNotificationSub  = "ZEROHUNGER_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubImpactSub        = "ZEROHUNGER_PUBSUB_IMPACT_SUBSCRIPTION"
	EnvPubSubAnalyticsSub     = "ZEROHUNGER_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvBigQueryDonationsTable = "ZEROHUNGER_BIGQUERY_DONATION_EVENTS_TABLE"
)


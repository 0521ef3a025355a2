package component

// Component names
const (
	ComponentConfig     = "config"
	ComponentLogger     = "logger"
	ComponentRedis      = "redis"
	ComponentHTTPServer = "http_server"
	ComponentQuota      = "quota"
	ComponentTierStore  = "tierstore" // tier policies and subscriptions in SQL
	ComponentKafka      = "kafka"     // violation stream
)

package domain

import "time"

const (
	DefaultProfile                    = ProfileProduction
	ProfileEnvVar                     = "CAPGATE_ENV"
	EnvPrefix                         = "CAPGATE"
	DefaultObservabilityListenAddress = "127.0.0.1:9090"
	DefaultThrashWindow               = time.Minute
	DefaultThrashThreshold            = 3
	DefaultRecommendationLimit        = 8
	DefaultSearchLimit                = 25
	DirectOwner                       = "direct"
)

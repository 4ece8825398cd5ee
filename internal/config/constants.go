package config

// Application constants
const (
	AppName = "ivfeatures"

	// EnvPrefix namespaces every environment variable, e.g. IVF_SERVER_PORT
	EnvPrefix = "IVF"

	DefaultPort      = 8080
	DefaultDataDir   = "data"
	DefaultLogFile   = "logs/ivfeatures.log"
	DefaultExtension = ".ibw"

	// Rate Limiting
	DefaultRateLimit = 20 // requests per second
	DefaultBurstSize = 40
)

var configLocations = []string{
	"ivfeatures.yaml",
	"configs/ivfeatures.yaml",
}

package redis

const (
	// KeyPrefix namespaces every key written by this service.
	KeyPrefix = "tenders:"

	// KeyStats caches the last computed TenderStats.
	KeyStats = KeyPrefix + "stats"
	// KeyLastCycle holds the last search cycle report.
	KeyLastCycle = KeyPrefix + "report:cycle"
	// KeyLastSweep holds the last retention sweep report.
	KeyLastSweep = KeyPrefix + "report:sweep"
)

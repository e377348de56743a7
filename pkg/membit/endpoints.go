package membit

// DefaultBaseURL is the production rewards API.
const DefaultBaseURL = "https://api-hunter.membit.ai"

// API endpoints consumed by the node runner.
const (
	EndpointWhoami            = "/auth/whoami"
	EndpointNextEpoch         = "/points/next_epoch"
	EndpointGenerateUploadURL = "/posts/generate_upload_url"
	EndpointSubmitPost        = "/posts/submit"
	EndpointSubmitEngagements = "/engagements/submit"
)

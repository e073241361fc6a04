package chi

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type predictionResponse struct {
	PredictedClass      string              `json:"predicted_class"`
	SustainabilityScore int                 `json:"sustainability_score"`
	Confidence          float64             `json:"confidence"`
	TopPredictions      []candidateResponse `json:"top_predictions,omitempty"`
}

type candidateResponse struct {
	Class               string  `json:"class"`
	SustainabilityScore int     `json:"sustainability_score"`
	Probability         float64 `json:"probability"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type modelResponse struct {
	State      string        `json:"state"`
	Name       string        `json:"name,omitempty"`
	Version    string        `json:"version,omitempty"`
	Digest     string        `json:"digest,omitempty"`
	Labels     []string      `json:"labels,omitempty"`
	InputShape []int64       `json:"input_shape,omitempty"`
	Layout     string        `json:"layout,omitempty"`
	LoadedAt   *string       `json:"loaded_at,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	Build      buildResponse `json:"build"`
}

type buildResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

package catalog

// Supported task filters.
const (
	TaskTextGeneration             = "text-generation"
	TaskTextClassification         = "text-classification"
	TaskQuestionAnswering          = "question-answering"
	TaskSummarization              = "summarization"
	TaskTranslation                = "translation"
	TaskImageClassification        = "image-classification"
	TaskObjectDetection            = "object-detection"
	TaskTextToImage                = "text-to-image"
	TaskAutomaticSpeechRecognition = "automatic-speech-recognition"
	TaskTextToSpeech               = "text-to-speech"
)

// Tasks lists the task identifiers accepted by Search, in schema order.
var Tasks = []string{
	TaskTextGeneration,
	TaskTextClassification,
	TaskQuestionAnswering,
	TaskSummarization,
	TaskTranslation,
	TaskImageClassification,
	TaskObjectDetection,
	TaskTextToImage,
	TaskAutomaticSpeechRecognition,
	TaskTextToSpeech,
}

// ValidTask reports whether task is one of Tasks.
func ValidTask(task string) bool {
	for _, t := range Tasks {
		if t == task {
			return true
		}
	}
	return false
}

const (
	// DefaultLimit is used when the caller does not ask for a limit.
	DefaultLimit = 5

	// MaxLimit caps the number of models requested upstream.
	MaxLimit = 20
)

// SearchInput is the model search request.
type SearchInput struct {
	Query string `json:"query"`
	Task  string `json:"task,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// Model is a normalized catalog entry.
type Model struct {
	ID        string `json:"id"`
	Downloads int64  `json:"downloads"`
	Likes     int64  `json:"likes"`
	Task      string `json:"task,omitempty"`
}

// SearchResult is the outcome of a search. Models are ordered by descending
// downloads as returned upstream.
type SearchResult struct {
	Models []Model `json:"models"`

	// Recommendation is advisory text for the model; callers should not parse it.
	Recommendation string `json:"recommendation"`
}

// apiModel mirrors one record of the upstream /api/models response.
type apiModel struct {
	ModelID     string `json:"modelId"`
	ID          string `json:"id"`
	Downloads   int64  `json:"downloads"`
	Likes       int64  `json:"likes"`
	PipelineTag string `json:"pipeline_tag"`
}

func (m apiModel) normalize() Model {
	id := m.ModelID
	if id == "" {
		id = m.ID
	}
	return Model{
		ID:        id,
		Downloads: m.Downloads,
		Likes:     m.Likes,
		Task:      m.PipelineTag,
	}
}

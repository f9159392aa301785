package model

import "log/slog"

// UploadedMedia is a client upload owned by a single request. ID is the
// token in the stored temp filename.
type UploadedMedia struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
}

// LogValue implements slog.LogValuer.
func (m *UploadedMedia) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", m.ID),
		slog.String("filename", m.Filename),
		slog.String("content_type", m.ContentType),
		slog.Int64("size", m.Size),
	)
}

// Classification is one ranked label produced by an image classifier.
type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Sentiment is the transcript of an audio clip and its sentiment label.
type Sentiment struct {
	Transcription string `json:"transcription"`
	Sentiment     string `json:"sentiment"`
}

// Answer is the result of a spoken question.
// AudioFile names the synthesized reply even when AudioAvailable is false.
type Answer struct {
	Question       string `json:"question"`
	Answer         string `json:"answer"`
	AudioFile      string `json:"audio_file"`
	AudioAvailable bool   `json:"audio_available"`
}

// Translation is the response of the translate endpoint.
type Translation struct {
	TranslatedText string `json:"translated_text"`
}

// Generation is the response of the generate-text endpoint.
type Generation struct {
	GeneratedText string `json:"generated_text"`
}
